package blend

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Calldata selectors of the locked-buyout entrypoints. The buyToBorrow*
// variants nest the sell offer and its signature inside a sellInput tuple.
const (
	SelectorBuyLocked            = "0xe7efc178"
	SelectorBuyLockedETH         = "0x8553b234"
	SelectorBuyToBorrowLocked    = "0x2e2fb18b"
	SelectorBuyToBorrowLockedETH = "0xb2a0bb86"
)

// Selectors lists every entrypoint that settles a locked buyout.
func Selectors() []string {
	return []string{
		SelectorBuyLocked,
		SelectorBuyLockedETH,
		SelectorBuyToBorrowLocked,
		SelectorBuyToBorrowLockedETH,
	}
}

const lienComponents = `[
      {"internalType": "address", "name": "lender", "type": "address"},
      {"internalType": "address", "name": "borrower", "type": "address"},
      {"internalType": "address", "name": "collection", "type": "address"},
      {"internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"internalType": "uint256", "name": "amount", "type": "uint256"},
      {"internalType": "uint256", "name": "startTime", "type": "uint256"},
      {"internalType": "uint256", "name": "rate", "type": "uint256"},
      {"internalType": "uint256", "name": "auctionStartBlock", "type": "uint256"},
      {"internalType": "uint256", "name": "auctionDuration", "type": "uint256"}
    ]`

const sellOfferComponents = `[
      {"internalType": "address", "name": "borrower", "type": "address"},
      {"internalType": "uint256", "name": "lienId", "type": "uint256"},
      {"internalType": "uint256", "name": "price", "type": "uint256"},
      {"internalType": "uint256", "name": "expirationTime", "type": "uint256"},
      {"internalType": "uint256", "name": "salt", "type": "uint256"},
      {"internalType": "address", "name": "oracle", "type": "address"},
      {"internalType": "tuple[]", "name": "fees", "type": "tuple[]", "components": [
        {"internalType": "uint16", "name": "rate", "type": "uint16"},
        {"internalType": "address", "name": "recipient", "type": "address"}
      ]}
    ]`

const loanOfferComponents = `[
      {"internalType": "address", "name": "lender", "type": "address"},
      {"internalType": "address", "name": "collection", "type": "address"},
      {"internalType": "uint256", "name": "totalAmount", "type": "uint256"},
      {"internalType": "uint256", "name": "minAmount", "type": "uint256"},
      {"internalType": "uint256", "name": "maxAmount", "type": "uint256"},
      {"internalType": "uint256", "name": "auctionDuration", "type": "uint256"},
      {"internalType": "uint256", "name": "salt", "type": "uint256"},
      {"internalType": "uint256", "name": "expirationTime", "type": "uint256"},
      {"internalType": "uint256", "name": "rate", "type": "uint256"},
      {"internalType": "address", "name": "oracle", "type": "address"}
    ]`

var exchangeABIJSON = `[
  {
    "inputs": [
      {"internalType": "tuple", "name": "lien", "type": "tuple", "components": ` + lienComponents + `},
      {"internalType": "uint256", "name": "lienId", "type": "uint256"},
      {"internalType": "tuple", "name": "offer", "type": "tuple", "components": ` + sellOfferComponents + `},
      {"internalType": "bytes", "name": "signature", "type": "bytes"}
    ],
    "name": "buyLocked",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "tuple", "name": "lien", "type": "tuple", "components": ` + lienComponents + `},
      {"internalType": "uint256", "name": "lienId", "type": "uint256"},
      {"internalType": "tuple", "name": "offer", "type": "tuple", "components": ` + sellOfferComponents + `},
      {"internalType": "bytes", "name": "signature", "type": "bytes"}
    ],
    "name": "buyLockedETH",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "tuple", "name": "lien", "type": "tuple", "components": ` + lienComponents + `},
      {"internalType": "uint256", "name": "lienId", "type": "uint256"},
      {"internalType": "tuple", "name": "sellInput", "type": "tuple", "components": [
        {"internalType": "tuple", "name": "offer", "type": "tuple", "components": ` + sellOfferComponents + `},
        {"internalType": "bytes", "name": "signature", "type": "bytes"}
      ]},
      {"internalType": "tuple", "name": "loanInput", "type": "tuple", "components": [
        {"internalType": "tuple", "name": "offer", "type": "tuple", "components": ` + loanOfferComponents + `},
        {"internalType": "bytes", "name": "signature", "type": "bytes"}
      ]},
      {"internalType": "uint256", "name": "loanAmount", "type": "uint256"}
    ],
    "name": "buyToBorrowLocked",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "tuple", "name": "lien", "type": "tuple", "components": ` + lienComponents + `},
      {"internalType": "uint256", "name": "lienId", "type": "uint256"},
      {"internalType": "tuple", "name": "sellInput", "type": "tuple", "components": [
        {"internalType": "tuple", "name": "offer", "type": "tuple", "components": ` + sellOfferComponents + `},
        {"internalType": "bytes", "name": "signature", "type": "bytes"}
      ]},
      {"internalType": "tuple", "name": "loanInput", "type": "tuple", "components": [
        {"internalType": "tuple", "name": "offer", "type": "tuple", "components": ` + loanOfferComponents + `},
        {"internalType": "bytes", "name": "signature", "type": "bytes"}
      ]},
      {"internalType": "uint256", "name": "loanAmount", "type": "uint256"}
    ],
    "name": "buyToBorrowLockedETH",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "newNonce", "type": "uint256"}
    ],
    "name": "NonceIncremented",
    "type": "event"
  }
]`

var (
	exchangeABI     abi.ABI
	exchangeABIOnce sync.Once
	exchangeABIErr  error
)

// ExchangeABI returns the parsed exchange ABI.
func ExchangeABI() (abi.ABI, error) {
	exchangeABIOnce.Do(func() {
		exchangeABI, exchangeABIErr = abi.JSON(strings.NewReader(exchangeABIJSON))
	})
	return exchangeABI, exchangeABIErr
}
