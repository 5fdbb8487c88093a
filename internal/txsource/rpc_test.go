package txsource

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestRPCSource(t *testing.T, handler func(method string, params []interface{}) string) *RPCSource {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := NewRPCSource(RPCSourceConfig{
		URL: "http://rpc.local",
		Routers: map[string]string{
			"0x0000000000000000000000000000000000RoUTeR": "aggregator-x",
		},
	}, logger)
	src.httpClient = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			body, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			var rpcReq rpcRequest
			require.NoError(t, json.Unmarshal(body, &rpcReq))
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(handler(rpcReq.Method, rpcReq.Params))),
				Header:     make(http.Header),
			}, nil
		}),
	}
	return src
}

func rpcResult(result string) string {
	return `{"jsonrpc":"2.0","id":1,"result":` + result + `}`
}

func TestRPCSource_FetchTransactionTrace(t *testing.T) {
	src := newTestRPCSource(t, func(method string, params []interface{}) string {
		require.Equal(t, "debug_traceTransaction", method)
		require.Len(t, params, 2)
		assert.Equal(t, "0xabc", params[0])
		tracer := params[1].(map[string]interface{})
		assert.Equal(t, "callTracer", tracer["tracer"])
		return rpcResult(`{"type":"CALL","from":"0xaa","to":"0xbb","input":"0x","calls":[]}`)
	})

	raw, err := src.FetchTransactionTrace(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"CALL"`)
}

func TestRPCSource_TraceNotFoundIsNilNil(t *testing.T) {
	src := newTestRPCSource(t, func(method string, params []interface{}) string {
		return `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"transaction not found"}}`
	})

	raw, err := src.FetchTransactionTrace(context.Background(), "0xmissing")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestRPCSource_FetchTransactionDecodesHexFields(t *testing.T) {
	src := newTestRPCSource(t, func(method string, params []interface{}) string {
		switch method {
		case "eth_getTransactionByHash":
			return rpcResult(`{
				"hash": "0xABC",
				"blockNumber": "0x112a880",
				"blockHash": "0xblock",
				"from": "0xAA",
				"to": "0xBB",
				"value": "0xde0b6b3a7640000",
				"input": "0xdeadbeef",
				"gasPrice": "0x3b9aca00"
			}`)
		case "eth_getTransactionReceipt":
			return rpcResult(`{"gasUsed":"0x5208","effectiveGasPrice":"0x77359400"}`)
		default:
			t.Fatalf("unexpected method %s", method)
			return ""
		}
	})

	tx, err := src.FetchTransaction(context.Background(), "0xabc")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, "0xabc", tx.Hash)
	assert.Equal(t, "0xaa", tx.From)
	assert.Equal(t, "0xbb", tx.To)
	assert.Equal(t, "1000000000000000000", tx.Value)
	assert.Equal(t, "0xdeadbeef", tx.Data)
	assert.Equal(t, int64(18_000_000), tx.BlockNumber)
	require.NotNil(t, tx.GasUsed)
	assert.Equal(t, "21000", *tx.GasUsed)
	require.NotNil(t, tx.GasPrice)
	assert.Equal(t, "2000000000", *tx.GasPrice, "receipt effective gas price wins over the tx gas price")
}

func TestRPCSource_FetchTransactionUnknownHash(t *testing.T) {
	src := newTestRPCSource(t, func(method string, params []interface{}) string {
		return rpcResult(`null`)
	})

	tx, err := src.FetchTransaction(context.Background(), "0xmissing")
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestRPCSource_AttributionThroughKnownRouter(t *testing.T) {
	src := newTestRPCSource(t, func(method string, params []interface{}) string {
		switch method {
		case "eth_getTransactionByHash":
			return rpcResult(`{
				"hash": "0xabc",
				"blockNumber": "0x1",
				"blockHash": "0xblock",
				"from": "0xTAKER",
				"to": "0x0000000000000000000000000000000000router",
				"value": "0x0",
				"input": "0x"
			}`)
		case "eth_getTransactionReceipt":
			return rpcResult(`null`)
		default:
			t.Fatalf("unexpected method %s", method)
			return ""
		}
	})

	attr, err := src.ExtractAttribution(context.Background(), "0xabc", model.OrderKindBlend, "0xorder")
	require.NoError(t, err)
	require.NotNil(t, attr.Taker)
	assert.Equal(t, "0xtaker", *attr.Taker)
	require.NotNil(t, attr.FillSourceID)
	assert.Equal(t, "aggregator-x", *attr.FillSourceID)
	require.NotNil(t, attr.AggregatorSourceID)
	assert.Equal(t, "aggregator-x", *attr.AggregatorSourceID)
}

func TestRPCSource_AttributionDirectFillIsEmpty(t *testing.T) {
	src := newTestRPCSource(t, func(method string, params []interface{}) string {
		switch method {
		case "eth_getTransactionByHash":
			return rpcResult(`{
				"hash": "0xabc",
				"blockNumber": "0x1",
				"blockHash": "0xblock",
				"from": "0xtaker",
				"to": "0xexchange",
				"value": "0x0",
				"input": "0x"
			}`)
		default:
			return rpcResult(`null`)
		}
	})

	attr, err := src.ExtractAttribution(context.Background(), "0xabc", model.OrderKindBlend, "0xorder")
	require.NoError(t, err)
	assert.Nil(t, attr.Taker)
	assert.Nil(t, attr.FillSourceID)
}
