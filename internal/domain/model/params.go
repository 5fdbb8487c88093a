package model

// BaseEventParams identifies a single on-chain log. The triple
// (TxHash, LogIndex, BatchIndex) is unique across the whole chain history;
// BatchIndex disambiguates multiple domain events derived from one log
// (eg. ERC1155 batch transfers).
type BaseEventParams struct {
	Address    string `json:"address"`
	Block      int64  `json:"block"`
	BlockHash  string `json:"blockHash"`
	TxHash     string `json:"txHash"`
	TxIndex    int    `json:"txIndex"`
	LogIndex   int    `json:"logIndex"`
	BatchIndex int    `json:"batchIndex"`
	Timestamp  int64  `json:"timestamp"`
}

// LogKey is the identity portion of BaseEventParams, used for cross
// referencing events that originate from the same log.
type LogKey struct {
	TxHash     string
	LogIndex   int
	BatchIndex int
}

func (p BaseEventParams) Key() LogKey {
	return LogKey{TxHash: p.TxHash, LogIndex: p.LogIndex, BatchIndex: p.BatchIndex}
}

// EventKind is the coarse classification assigned by the chain scanner.
type EventKind string

const (
	EventKindTransfer EventKind = "transfer"
	EventKindApproval EventKind = "approval"
	EventKindExchange EventKind = "exchange"
)

// EventSubKind identifies the exact protocol event (eg. "blend-buy-locked").
type EventSubKind string

// RawLog carries the undecoded log payload alongside its topics.
type RawLog struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

// EnhancedEvent is a classified log produced by the chain scanner and
// consumed by protocol handlers.
type EnhancedEvent struct {
	Kind            EventKind
	SubKind         EventSubKind
	BaseEventParams BaseEventParams
	Log             RawLog
}
