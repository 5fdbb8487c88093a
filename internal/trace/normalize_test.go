package trace

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

const directTrace = `{
	"type": "CALL",
	"from": "0xaaa0000000000000000000000000000000000001",
	"to": "0xbbb0000000000000000000000000000000000002",
	"input": "0xe7efc178deadbeef",
	"calls": [
		{"type": "STATICCALL", "from": "0xbbb0000000000000000000000000000000000002", "to": "0xccc0000000000000000000000000000000000003"}
	]
}`

func TestNormalize_DirectShape(t *testing.T) {
	root, err := Normalize(json.RawMessage(directTrace))
	require.NoError(t, err)

	assert.Equal(t, "0xbbb0000000000000000000000000000000000002", root.To)
	assert.Equal(t, "0xe7efc178deadbeef", root.Input)
	require.Len(t, root.Calls, 1)
	// omitted input is defaulted, subtree preserved
	assert.Equal(t, "0x", root.Calls[0].Input)
}

func TestNormalize_WrappedShapeIsShapeInvariant(t *testing.T) {
	wrapped := `{"hash": "0x1234", "calls": [` + directTrace + `]}`

	direct, err := Normalize(json.RawMessage(directTrace))
	require.NoError(t, err)
	unwrapped, err := Normalize(json.RawMessage(wrapped))
	require.NoError(t, err)

	assert.Equal(t, direct, unwrapped)
}

func TestNormalize_WrapperWithExplicitResult(t *testing.T) {
	wrapped := `{"hash": "0x1234", "calls": [], "result": ` + directTrace + `}`

	root, err := Normalize(json.RawMessage(wrapped))
	require.NoError(t, err)
	assert.Equal(t, "0xbbb0000000000000000000000000000000000002", root.To)
}

func TestNormalize_WrapperWithEmptyCalls(t *testing.T) {
	root, err := Normalize(json.RawMessage(`{"hash": "0x1234", "calls": []}`))
	require.NoError(t, err)
	assert.Equal(t, "0x", root.Input)
	assert.Empty(t, root.Calls)
}

func TestNormalize_MalformedPayload(t *testing.T) {
	_, err := Normalize(json.RawMessage(`"not a trace"`))
	assert.Error(t, err)
}

func TestSanitize_Idempotent(t *testing.T) {
	node := &model.TraceCall{
		Calls: []*model.TraceCall{
			{Input: "0xabcdef"},
			{Calls: []*model.TraceCall{{}}},
		},
	}

	once := Sanitize(node)
	twice := Sanitize(once)

	assert.Equal(t, once, twice)
	assert.Equal(t, "0x", twice.Input)
	assert.Equal(t, "0xabcdef", twice.Calls[0].Input)
	assert.Equal(t, "0x", twice.Calls[1].Calls[0].Input)
	// no subtree dropped
	assert.Len(t, twice.Calls, 2)
}
