package model

import "encoding/json"

// Transaction is the subset of transaction data persisted in focus mode
// for retained events.
type Transaction struct {
	Hash        string          `db:"hash"`
	From        string          `db:"from_address"`
	To          string          `db:"to_address"`
	Value       string          `db:"value"`
	Data        string          `db:"data"`
	BlockNumber int64           `db:"block_number"`
	BlockHash   string          `db:"block_hash"`
	GasUsed     *string         `db:"gas_used"`
	GasPrice    *string         `db:"gas_price"`
	ChainData   json.RawMessage `db:"chain_data"`
}

// PendingListing is one collection listing-refresh request queued for the
// snapshot fetch job. Duplicates are tolerated and simply reprocessed.
type PendingListing struct {
	Slug       string `json:"slug"`
	Contract   string `json:"contract"`
	Collection string `json:"collection"`
}
