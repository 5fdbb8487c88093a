package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

func fill(txHash string, logIndex int, orderID, maker, price string) model.FillEvent {
	return model.FillEvent{
		OrderKind: model.OrderKindBlend,
		OrderID:   orderID,
		OrderSide: model.OrderSideBuy,
		Maker:     maker,
		Taker:     "0xtaker",
		Price:     price,
		Currency:  "0x0000000000000000000000000000000000000000",
		Contract:  "0xcafe",
		TokenID:   "42",
		Amount:    "1",
		BaseEventParams: model.BaseEventParams{
			TxHash:   txHash,
			LogIndex: logIndex,
		},
	}
}

func TestCompareFills_IdenticalSetsMatch(t *testing.T) {
	replay := []model.FillEvent{
		fill("0xaaa", 1, "order-1", "0xmaker", "1000"),
		fill("0xbbb", 3, "order-2", "0xmaker", "2000"),
	}
	db := []model.FillEvent{
		fill("0xbbb", 3, "order-2", "0xMAKER", "2000"), // case differences are not drift
		fill("0xaaa", 1, "order-1", "0xmaker", "1000"),
	}

	result := compareFills(replay, db)

	assert.False(t, result.HasMismatch())
	assert.Equal(t, []string{"0xaaa:1:0", "0xbbb:3:0"}, result.Matching)
}

func TestCompareFills_MissingAndExtra(t *testing.T) {
	replay := []model.FillEvent{fill("0xaaa", 1, "order-1", "0xmaker", "1000")}
	db := []model.FillEvent{fill("0xbbb", 3, "order-2", "0xmaker", "2000")}

	result := compareFills(replay, db)

	require.True(t, result.HasMismatch())
	assert.Equal(t, []string{"0xaaa:1:0"}, result.Missing)
	assert.Equal(t, []string{"0xbbb:3:0"}, result.Extra)
	assert.Empty(t, result.Matching)
}

func TestCompareFills_FieldDivergence(t *testing.T) {
	replay := []model.FillEvent{fill("0xaaa", 1, "order-1", "0xmaker", "1000")}
	db := []model.FillEvent{fill("0xaaa", 1, "order-1", "0xmaker", "999")}

	result := compareFills(replay, db)

	require.True(t, result.HasMismatch())
	require.Len(t, result.Divergent, 1)
	assert.Equal(t, "price", result.Divergent[0].Field)
	assert.Equal(t, "1000", result.Divergent[0].ReplayValue)
	assert.Equal(t, "999", result.Divergent[0].DBValue)
	assert.Empty(t, result.Matching, "a divergent fill does not also count as matching")
}

func TestCompareFills_BatchIndexDistinguishesFills(t *testing.T) {
	a := fill("0xaaa", 1, "order-1", "0xmaker", "1000")
	b := a
	b.BaseEventParams.BatchIndex = 1
	b.OrderID = "order-2"

	result := compareFills([]model.FillEvent{a, b}, []model.FillEvent{a, b})

	assert.False(t, result.HasMismatch())
	assert.Len(t, result.Matching, 2)
}

func TestPrintJSONReport(t *testing.T) {
	result := compareFills(
		[]model.FillEvent{fill("0xaaa", 1, "order-1", "0xmaker", "1000")},
		nil,
	)

	var buf bytes.Buffer
	require.NoError(t, printJSONReport(&buf, "batches.json", 1, 0, result))

	var report struct {
		Result  string `json:"result"`
		Compare struct {
			Missing []string `json:"missing"`
		} `json:"compare"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, "MISMATCH", report.Result)
	assert.Equal(t, []string{"0xaaa:1:0"}, report.Compare.Missing)
}
