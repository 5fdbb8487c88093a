package model

import "encoding/json"

// FillInfo feeds the fill-updates job (last sale tracking). Context is a
// deduplication key derived from (orderId, txHash, logIndex).
type FillInfo struct {
	Context   string
	OrderID   string
	OrderSide OrderSide
	Contract  string
	TokenID   string
	Amount    string
	Price     string
	Timestamp int64
	Maker     string
	Taker     string
}

// MintInfo feeds the token mint job.
type MintInfo struct {
	Contract string
	TokenID  string
	MintedAt int64
}

// MintDetails feeds the mints-process job with the raw mint payload.
type MintDetails struct {
	Contract        string
	TxHash          string
	Details         json.RawMessage
	BaseEventParams BaseEventParams
}

// OrderInfoTrigger names the on-chain fact that caused a revalidation.
type OrderInfoTrigger struct {
	Kind       string // "new-order" | "sale" | "cancel" | "balance-change" | "approval-change"
	TxHash     string
	LogIndex   int
	BatchIndex int
}

// OrderInfo requests revalidation of one order by id.
type OrderInfo struct {
	Context string
	ID      string
	Trigger OrderInfoTrigger
}

// MakerInfo requests revalidation of all orders of a maker touching a
// token set.
type MakerInfo struct {
	Context string
	Maker   string
	Trigger OrderInfoTrigger
	Data    json.RawMessage
}

// PermitInfo requests revalidation of an off-chain payment permit.
type PermitInfo struct {
	Kind     string
	PermitID string
	Contract string
}

// GenericOrderInfo is the payload accepted by the order ingestion queue.
type GenericOrderInfo struct {
	Kind             OrderKind       `json:"kind"`
	Info             OrderIngestInfo `json:"info"`
	ValidateBidValue bool            `json:"validateBidValue"`
	IngestMethod     string          `json:"ingestMethod"` // "websocket" | "rest"
}

// OrderIngestInfo wraps protocol-encoded order parameters plus source
// metadata for the orderbook.
type OrderIngestInfo struct {
	OrderParams        json.RawMessage     `json:"orderParams"`
	Metadata           OrderMetadata       `json:"metadata"`
	IsOpenSea          bool                `json:"isOpenSea,omitempty"`
	OpenSeaOrderParams *OpenSeaOrderParams `json:"openSeaOrderParams,omitempty"`
}

type OrderMetadata struct {
	OriginatedAt string `json:"originatedAt,omitempty"`
	Source       string `json:"source,omitempty"`
}

// OpenSeaOrderParams carries the listing coordinates reported by the
// external listings endpoint.
type OpenSeaOrderParams struct {
	Kind           string  `json:"kind"` // "single-token" | "contract-wide"
	Side           string  `json:"side"`
	Hash           string  `json:"hash"`
	Contract       string  `json:"contract"`
	TokenID        *string `json:"tokenId,omitempty"`
	CollectionSlug string  `json:"collectionSlug"`
}
