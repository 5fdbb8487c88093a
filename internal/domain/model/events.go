package model

// OrderKind names the marketplace protocol an order belongs to.
type OrderKind string

const (
	OrderKindBlend OrderKind = "blend"
)

// OrderSide is the side of the order book an order sits on.
type OrderSide string

const (
	OrderSideSell OrderSide = "sell"
	OrderSideBuy  OrderSide = "buy"
)

// FillEvent records that an order was executed. All amounts are decimal
// strings (NUMERIC(78,0) in storage).
type FillEvent struct {
	OrderKind          OrderKind
	OrderID            string
	OrderSide          OrderSide
	Maker              string
	Taker              string
	Price              string // native currency
	Currency           string
	CurrencyPrice      string // raw currency amount
	USDPrice           *string
	Contract           string
	TokenID            string
	Amount             string
	OrderSourceID      *string
	AggregatorSourceID *string
	FillSourceID       *string
	MintComment        *string
	BaseEventParams    BaseEventParams
}

// CancelEvent records explicit invalidation of a single order.
type CancelEvent struct {
	OrderKind       OrderKind
	OrderID         string
	BaseEventParams BaseEventParams
}

// BulkCancelEvent invalidates every order of a maker below a minimum nonce.
type BulkCancelEvent struct {
	OrderKind       OrderKind
	Maker           string
	MinNonce        string
	AcrossAll       bool
	BaseEventParams BaseEventParams
}

// NonceCancelEvent invalidates all orders of a maker signed at one nonce.
type NonceCancelEvent struct {
	OrderKind       OrderKind
	Maker           string
	Nonce           string
	BaseEventParams BaseEventParams
}

// NftApprovalEvent records an operator approval on an NFT contract.
type NftApprovalEvent struct {
	Owner           string
	Operator        string
	Approved        bool
	BaseEventParams BaseEventParams
}

// FtTransferEvent is a fungible-token transfer, usually the payment side
// of a sale happening in the same transaction.
type FtTransferEvent struct {
	From            string
	To              string
	Amount          string
	BaseEventParams BaseEventParams
}

// NftTransferEvent is a non-fungible token transfer. The contract is the
// log-emitting address in BaseEventParams.
type NftTransferEvent struct {
	Kind            string // "erc721" | "erc1155"
	From            string
	To              string
	TokenID         string
	Amount          string
	BaseEventParams BaseEventParams
}

// Swap records a token-for-token exchange observed in a transaction.
type Swap struct {
	Wallet          string
	FromToken       string
	FromAmount      string
	ToToken         string
	ToAmount        string
	BaseEventParams BaseEventParams
}

// MintComment carries the on-chain comment attached to a mint.
type MintComment struct {
	Token           string
	TokenID         *string
	Quantity        int
	Comment         string
	BaseEventParams BaseEventParams
}
