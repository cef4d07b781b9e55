package replenish

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type fakeChain struct {
	nonce   uint64
	chainID uint64
	sent    []byte
	sendErr error
}

func (f *fakeChain) EthNonce(ctx context.Context, addr common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeChain) EthChainID(ctx context.Context) (uint64, error) {
	return f.chainID, nil
}

func (f *fakeChain) EvmSendRaw(ctx context.Context, rawTx []byte) (string, error) {
	f.sent = rawTx
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "0xhash", nil
}

func TestNewDerivesSenderAddress(t *testing.T) {
	chain := &fakeChain{}
	c, err := New(chain, testPrivateKey, "0x000000000000000000000000000000000000aa", "deadbeef", 1_000_000_000, 200_000)
	require.NoError(t, err)

	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)
	assert.Equal(t, want, c.SenderAddress())
}

func TestRequestSubmitsSignedLegacyTransaction(t *testing.T) {
	chain := &fakeChain{nonce: 7, chainID: 314159}
	c, err := New(chain, testPrivateKey, "0x000000000000000000000000000000000000aa", "deadbeef", 1_000_000_000, 200_000)
	require.NoError(t, err)

	txHash, err := c.Request(context.Background(), 1024)
	require.NoError(t, err)
	assert.Equal(t, "0xhash", txHash)
	require.NotEmpty(t, chain.sent)

	var decoded signedLegacyTx
	require.NoError(t, rlp.DecodeBytes(chain.sent, &decoded))
	assert.Equal(t, uint64(7), decoded.Nonce)
	assert.Equal(t, uint64(200_000), decoded.GasLimit)
	assert.Equal(t, int64(1_000_000_000), decoded.GasPrice.Int64())

	wantV := decoded.V.Uint64()
	assert.True(t, wantV == 314159*2+35 || wantV == 314159*2+36)

	// calldata is at least as long as the 4-byte addVerifiedClient selector.
	require.True(t, len(decoded.Data) >= 4)
}

func TestRequestUsesProvidedSpentQuotaAsAmount(t *testing.T) {
	chain := &fakeChain{nonce: 1, chainID: 314159}
	c, err := New(chain, testPrivateKey, "0x000000000000000000000000000000000000aa", "deadbeef", 1_000_000_000, 200_000)
	require.NoError(t, err)

	_, err = c.Request(context.Background(), 2048)
	require.NoError(t, err)

	var decoded signedLegacyTx
	require.NoError(t, rlp.DecodeBytes(chain.sent, &decoded))

	unpacked, err := c.method.Inputs.Unpack(decoded.Data[4:])
	require.NoError(t, err)
	require.Len(t, unpacked, 2)
	amount, ok := unpacked[1].(*big.Int)
	require.True(t, ok)
	assert.Equal(t, uint64(2048), amount.Uint64())
}
