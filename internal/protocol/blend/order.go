package blend

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	sellOfferTypeHash = crypto.Keccak256Hash([]byte(
		"SellOffer(address borrower,uint256 lienId,uint256 price,uint256 expirationTime,uint256 salt,address oracle,Fee[] fees,uint256 nonce)" +
			"Fee(uint16 rate,address recipient)"))
	feeTypeHash = crypto.Keccak256Hash([]byte(
		"Fee(uint16 rate,address recipient)"))
	domainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	domainNameHash    = crypto.Keccak256Hash([]byte("Blend"))
	domainVersionHash = crypto.Keccak256Hash([]byte("1.0"))
)

// Order is a signed locked-buyout sell offer. The nonce is not part of
// the calldata; it is recovered by walking the maker's nonce history.
type Order struct {
	Borrower       common.Address
	LienID         *big.Int
	Price          *big.Int
	ExpirationTime *big.Int
	Salt           *big.Int
	Oracle         common.Address
	Fees           []Fee
	Nonce          *big.Int
	Signature      []byte
}

// OrderFromOffer builds an Order from decoded calldata plus a nonce
// candidate and the offer signature.
func OrderFromOffer(offer SellOffer, nonce *big.Int, signature []byte) *Order {
	return &Order{
		Borrower:       offer.Borrower,
		LienID:         offer.LienId,
		Price:          offer.Price,
		ExpirationTime: offer.ExpirationTime,
		Salt:           offer.Salt,
		Oracle:         offer.Oracle,
		Fees:           offer.Fees,
		Nonce:          nonce,
		Signature:      signature,
	}
}

// Hash returns the EIP-712 struct hash of the order. It is used as the
// content-addressed order id.
func (o *Order) Hash() common.Hash {
	return crypto.Keccak256Hash(
		sellOfferTypeHash.Bytes(),
		padAddress(o.Borrower),
		padBig(o.LienID),
		padBig(o.Price),
		padBig(o.ExpirationTime),
		padBig(o.Salt),
		padAddress(o.Oracle),
		hashFees(o.Fees).Bytes(),
		padBig(o.Nonce),
	)
}

// Digest returns the EIP-712 signing digest of the order for the given
// domain (chain id + exchange contract).
func (o *Order) Digest(chainID *big.Int, exchange common.Address) common.Hash {
	domainSeparator := crypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		domainNameHash.Bytes(),
		domainVersionHash.Bytes(),
		padBig(chainID),
		padAddress(exchange),
	)
	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		domainSeparator.Bytes(),
		o.Hash().Bytes(),
	)
}

// CheckSignature recovers the signer of the order digest and compares it
// to the borrower.
func (o *Order) CheckSignature(chainID *big.Int, exchange common.Address) error {
	if len(o.Signature) != 65 {
		return fmt.Errorf("signature must be 65 bytes, got %d", len(o.Signature))
	}

	sig := make([]byte, 65)
	copy(sig, o.Signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	digest := o.Digest(chainID, exchange)
	pubkey, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return fmt.Errorf("recover signer: %w", err)
	}

	signer := crypto.PubkeyToAddress(*pubkey)
	if !strings.EqualFold(signer.Hex(), o.Borrower.Hex()) {
		return fmt.Errorf("signer %s does not match borrower %s", signer.Hex(), o.Borrower.Hex())
	}
	return nil
}

func hashFees(fees []Fee) common.Hash {
	encoded := make([]byte, 0, len(fees)*32)
	for _, fee := range fees {
		feeHash := crypto.Keccak256Hash(
			feeTypeHash.Bytes(),
			padBig(new(big.Int).SetUint64(uint64(fee.Rate))),
			padAddress(fee.Recipient),
		)
		encoded = append(encoded, feeHash.Bytes()...)
	}
	return crypto.Keccak256Hash(encoded)
}

func padBig(v *big.Int) []byte {
	if v == nil {
		v = new(big.Int)
	}
	return common.LeftPadBytes(v.Bytes(), 32)
}

func padAddress(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}
