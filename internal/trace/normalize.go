package trace

import (
	"encoding/json"
	"fmt"

	"github.com/d347h-eth/indexer-public/internal/domain/model"
)

// emptyInput marks a call whose input was omitted by the trace provider.
const emptyInput = "0x"

// Normalize resolves a raw trace payload into a single tree rooted at the
// actual execution root. Two wire shapes are accepted:
//
//  1. direct node response: {type, from, to, input, calls: [...]}
//  2. stored wrapper: {hash, result?, calls: [rootTrace]} where the
//     top-level calls field is an array of trace roots
//
// The shape is resolved exactly once here; downstream code only ever sees
// a sanitized *model.TraceCall.
func Normalize(raw json.RawMessage) (*model.TraceCall, error) {
	var probe struct {
		Hash  string          `json:"hash"`
		Calls json.RawMessage `json:"calls"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode trace: %w", err)
	}

	if probe.Hash != "" && probe.Calls != nil {
		return normalizeStored(raw)
	}

	var root model.TraceCall
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode trace root: %w", err)
	}
	return Sanitize(&root), nil
}

func normalizeStored(raw json.RawMessage) (*model.TraceCall, error) {
	var stored model.StoredTrace
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode stored trace: %w", err)
	}

	if stored.Result != nil {
		return Sanitize(stored.Result), nil
	}

	// Some storage layers collapse a single-root trace into a one-element
	// calls array; the first element is the true root.
	if len(stored.Calls) > 0 {
		var root model.TraceCall
		if err := json.Unmarshal(stored.Calls[0], &root); err != nil {
			return nil, fmt.Errorf("decode stored trace root: %w", err)
		}
		return Sanitize(&root), nil
	}

	// Empty-root stand-in.
	return Sanitize(&model.TraceCall{Input: emptyInput}), nil
}

// Sanitize fills missing input fields depth-first. It is idempotent and
// never discards a subtree.
func Sanitize(node *model.TraceCall) *model.TraceCall {
	if node == nil {
		return nil
	}
	if node.Input == "" {
		node.Input = emptyInput
	}
	for _, child := range node.Calls {
		Sanitize(child)
	}
	return node
}
