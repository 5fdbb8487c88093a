package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

const (
	contractA = "0xaAa0000000000000000000000000000000000001"
	contractB = "0xbbb0000000000000000000000000000000000002"
)

func params(contract, txHash string) model.BaseEventParams {
	return model.BaseEventParams{Address: contract, TxHash: txHash, Block: 100}
}

func sampleBatch() *OnChainData {
	data := New()
	data.NftTransferEvents = append(data.NftTransferEvents, model.NftTransferEvent{
		Kind: "erc721", From: "0xf1", To: "0xf2", TokenID: "1", Amount: "1",
		BaseEventParams: params(contractA, "0xtx1"),
	})
	data.FillEvents = append(data.FillEvents, model.FillEvent{
		OrderKind: model.OrderKindBlend, OrderID: "0xorder", Contract: contractA,
		TokenID: "1", Amount: "1", BaseEventParams: params("0xexchange", "0xtx1"),
	})
	// payment leg in the same transaction
	data.FtTransferEvents = append(data.FtTransferEvents, model.FtTransferEvent{
		From: "0xf2", To: "0xf1", Amount: "1000",
		BaseEventParams: params("0xweth", "0xtx1"),
	})
	// unrelated ft transfer
	data.FtTransferEvents = append(data.FtTransferEvents, model.FtTransferEvent{
		From: "0xz1", To: "0xz2", Amount: "5",
		BaseEventParams: params("0xweth", "0xtx9"),
	})
	data.CancelEvents = append(data.CancelEvents, model.CancelEvent{
		OrderKind: model.OrderKindBlend, OrderID: "0xcancelled",
		BaseEventParams: params("0xexchange", "0xtx2"),
	})
	data.PermitInfos = append(data.PermitInfos, model.PermitInfo{Kind: "eip2612", PermitID: "p1", Contract: contractA})
	data.Swaps = append(data.Swaps, model.Swap{
		Wallet: "0xf2", FromToken: "0xweth", ToToken: "0xusdc",
		BaseEventParams: params("0xpool", "0xtx1"),
	})
	return data
}

func TestFilterByCollection_KeepsFocusAndCompanions(t *testing.T) {
	data := sampleBatch()

	// case-insensitive contract match
	out := FilterByCollection(data, "0xAAA0000000000000000000000000000000000001")

	assert.Len(t, out.NftTransferEvents, 1)
	assert.Len(t, out.FillEvents, 1)
	// companion ft transfer + swap from tx1 survive, unrelated tx9 does not
	assert.Len(t, out.FtTransferEvents, 1)
	assert.Equal(t, "0xtx1", out.FtTransferEvents[0].BaseEventParams.TxHash)
	assert.Len(t, out.Swaps, 1)
	// cancels are never filtered in focus mode
	assert.Len(t, out.CancelEvents, 1)
	// permits are dropped unconditionally
	assert.Empty(t, out.PermitInfos)
}

func TestFilterByCollection_DropsUnrelatedContract(t *testing.T) {
	data := sampleBatch()

	out := FilterByCollection(data, contractB)

	assert.Empty(t, out.NftTransferEvents)
	assert.Empty(t, out.FillEvents)
	assert.Empty(t, out.FtTransferEvents)
	assert.Empty(t, out.Swaps)
	// no-op-safe kinds still pass through
	assert.Len(t, out.CancelEvents, 1)
}

func TestFilterByCollection_InputUntouched(t *testing.T) {
	data := sampleBatch()
	_ = FilterByCollection(data, contractB)

	// filtering returns a new batch; the input batch keeps its events
	assert.Len(t, data.NftTransferEvents, 1)
	assert.Len(t, data.FtTransferEvents, 2)
	assert.Len(t, data.PermitInfos, 1)
}

func TestAllFills_Order(t *testing.T) {
	data := New()
	data.FillEvents = []model.FillEvent{{OrderID: "full"}}
	data.FillEventsPartial = []model.FillEvent{{OrderID: "partial"}}
	data.FillEventsOnChain = []model.FillEvent{{OrderID: "onchain"}}

	all := data.AllFills()
	assert.Equal(t, []string{"full", "partial", "onchain"}, []string{all[0].OrderID, all[1].OrderID, all[2].OrderID})
}
