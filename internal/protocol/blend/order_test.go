package blend

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testExchange = common.HexToAddress("0x29469395eaf6f95920e59f858042f0e28d98a20b")

func testOffer(borrower common.Address) SellOffer {
	return SellOffer{
		Borrower:       borrower,
		LienId:         big.NewInt(42),
		Price:          big.NewInt(1_500_000_000_000_000_000),
		ExpirationTime: big.NewInt(1_900_000_000),
		Salt:           big.NewInt(777),
		Oracle:         common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Fees: []Fee{
			{Rate: 50, Recipient: common.HexToAddress("0x00000000000000000000000000000000000000fe")},
		},
	}
}

func TestOrderHash_Deterministic(t *testing.T) {
	borrower := common.HexToAddress("0x00000000000000000000000000000000000000b0")

	a := OrderFromOffer(testOffer(borrower), big.NewInt(5), nil)
	b := OrderFromOffer(testOffer(borrower), big.NewInt(5), nil)
	assert.Equal(t, a.Hash(), b.Hash())

	c := OrderFromOffer(testOffer(borrower), big.NewInt(4), nil)
	assert.NotEqual(t, a.Hash(), c.Hash(), "nonce is part of the struct hash")

	d := OrderFromOffer(testOffer(borrower), big.NewInt(5), nil)
	d.Price = big.NewInt(1)
	assert.NotEqual(t, a.Hash(), d.Hash())
}

func TestOrderCheckSignature_ValidAndInvalid(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	borrower := crypto.PubkeyToAddress(key.PublicKey)

	chainID := big.NewInt(1)
	order := OrderFromOffer(testOffer(borrower), big.NewInt(3), nil)

	sig, err := crypto.Sign(order.Digest(chainID, testExchange).Bytes(), key)
	require.NoError(t, err)
	order.Signature = sig

	assert.NoError(t, order.CheckSignature(chainID, testExchange))

	// Contract-style recovery byte (27/28) is accepted too.
	shifted := make([]byte, len(sig))
	copy(shifted, sig)
	shifted[64] += 27
	order.Signature = shifted
	assert.NoError(t, order.CheckSignature(chainID, testExchange))

	// A different nonce changes the digest, so the signature no longer
	// recovers the borrower.
	order.Nonce = big.NewInt(4)
	assert.Error(t, order.CheckSignature(chainID, testExchange))

	order.Nonce = big.NewInt(3)
	order.Signature = sig[:64]
	assert.Error(t, order.CheckSignature(chainID, testExchange), "truncated signature")
}

func TestOrderCheckSignature_WrongSigner(t *testing.T) {
	borrowerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	strangerKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	chainID := big.NewInt(1)
	order := OrderFromOffer(testOffer(crypto.PubkeyToAddress(borrowerKey.PublicKey)), big.NewInt(0), nil)

	sig, err := crypto.Sign(order.Digest(chainID, testExchange).Bytes(), strangerKey)
	require.NoError(t, err)
	order.Signature = sig

	assert.Error(t, order.CheckSignature(chainID, testExchange))
}
