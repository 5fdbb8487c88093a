package blend

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type Fee struct {
	Rate      uint16
	Recipient common.Address
}

type SellOffer struct {
	Borrower       common.Address
	LienId         *big.Int
	Price          *big.Int
	ExpirationTime *big.Int
	Salt           *big.Int
	Oracle         common.Address
	Fees           []Fee
}

type Lien struct {
	Lender            common.Address
	Borrower          common.Address
	Collection        common.Address
	TokenId           *big.Int
	Amount            *big.Int
	StartTime         *big.Int
	Rate              *big.Int
	AuctionStartBlock *big.Int
	AuctionDuration   *big.Int
}

type LoanOffer struct {
	Lender          common.Address
	Collection      common.Address
	TotalAmount     *big.Int
	MinAmount       *big.Int
	MaxAmount       *big.Int
	AuctionDuration *big.Int
	Salt            *big.Int
	ExpirationTime  *big.Int
	Rate            *big.Int
	Oracle          common.Address
}

type sellInput struct {
	Offer     SellOffer
	Signature []byte
}

type loanInput struct {
	Offer     LoanOffer
	Signature []byte
}

// CallData is a decoded locked-buyout call with the sell offer and its
// signature hoisted out of the sellInput nesting where applicable.
type CallData struct {
	Method    string
	Lien      Lien
	LienId    *big.Int
	Offer     SellOffer
	Signature []byte
}

var methodBySelector = map[string]string{
	SelectorBuyLocked:            "buyLocked",
	SelectorBuyLockedETH:         "buyLockedETH",
	SelectorBuyToBorrowLocked:    "buyToBorrowLocked",
	SelectorBuyToBorrowLockedETH: "buyToBorrowLockedETH",
}

// DecodeCalldata decodes the hex calldata of a locked-buyout call.
func DecodeCalldata(input string) (*CallData, error) {
	if len(input) < 10 {
		return nil, fmt.Errorf("calldata too short: %q", input)
	}
	selector := strings.ToLower(input[:10])
	name, ok := methodBySelector[selector]
	if !ok {
		return nil, fmt.Errorf("unknown selector %s", selector)
	}

	data, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(input, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("decode calldata hex: %w", err)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("calldata too short: %d bytes", len(data))
	}

	parsed, err := ExchangeABI()
	if err != nil {
		return nil, fmt.Errorf("parse exchange abi: %w", err)
	}
	method, ok := parsed.Methods[name]
	if !ok {
		return nil, fmt.Errorf("method %s missing from abi", name)
	}

	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack %s calldata: %w", name, err)
	}

	switch name {
	case "buyLocked", "buyLockedETH":
		var out struct {
			Lien      Lien
			LienId    *big.Int
			Offer     SellOffer
			Signature []byte
		}
		if err := method.Inputs.Copy(&out, values); err != nil {
			return nil, fmt.Errorf("copy %s args: %w", name, err)
		}
		return &CallData{
			Method:    name,
			Lien:      out.Lien,
			LienId:    out.LienId,
			Offer:     out.Offer,
			Signature: out.Signature,
		}, nil

	case "buyToBorrowLocked", "buyToBorrowLockedETH":
		var out struct {
			Lien       Lien
			LienId     *big.Int
			SellInput  sellInput
			LoanInput  loanInput
			LoanAmount *big.Int
		}
		if err := method.Inputs.Copy(&out, values); err != nil {
			return nil, fmt.Errorf("copy %s args: %w", name, err)
		}
		return &CallData{
			Method:    name,
			Lien:      out.Lien,
			LienId:    out.LienId,
			Offer:     out.SellInput.Offer,
			Signature: out.SellInput.Signature,
		}, nil

	default:
		return nil, fmt.Errorf("unhandled method %s", name)
	}
}
