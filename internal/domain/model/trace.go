package model

import "encoding/json"

// TraceCall is one node in a transaction call-trace tree. Calls may be
// absent, empty, or nested arbitrarily deep.
type TraceCall struct {
	Type   string       `json:"type"`
	From   string       `json:"from"`
	To     string       `json:"to"`
	Input  string       `json:"input"`
	Output string       `json:"output,omitempty"`
	Value  string       `json:"value,omitempty"`
	Gas    string       `json:"gas,omitempty"`
	Error  string       `json:"error,omitempty"`
	Calls  []*TraceCall `json:"calls,omitempty"`
}

// StoredTrace is the wrapped wire shape some storage layers produce: the
// top-level Calls field is an array of trace roots rather than children of
// a root node, and Result optionally carries the true root.
type StoredTrace struct {
	Hash   string            `json:"hash"`
	Result *TraceCall        `json:"result,omitempty"`
	Calls  []json.RawMessage `json:"calls,omitempty"`
}
