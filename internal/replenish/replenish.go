// Package replenish implements the Replenishment Client: after a successful
// auction round it asks the upstream meta-allocator contract, on the EVM
// side, to top up the bot wallet's DataCap reserve.
package replenish

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// addVerifiedClientABI is the minimal ABI fragment for the single method the
// meta-allocator contract exposes to this bot.
const addVerifiedClientABI = `[{"name":"addVerifiedClient","type":"function","inputs":[{"name":"clientPayload","type":"bytes"},{"name":"amount","type":"uint256"}],"outputs":[]}]`

// Chain is the subset of the Chain Client the replenishment client depends
// on, declared locally so it can be exercised without a live node.
type Chain interface {
	EthNonce(ctx context.Context, addr common.Address) (uint64, error)
	EthChainID(ctx context.Context) (uint64, error)
	EvmSendRaw(ctx context.Context, rawTx []byte) (string, error)
}

// Client is the Replenishment Client component.
type Client struct {
	chain         Chain
	privateKey    *ecdsa.PrivateKey
	senderAddr    common.Address
	contract      common.Address
	clientPayload []byte
	gasPrice      int64
	gasLimit      int64
	method        abi.Method
}

// New builds a Client. privateKeyHex and clientPayloadHex are hex strings,
// with or without a leading "0x".
func New(chain Chain, privateKeyHex, contractHex, clientPayloadHex string, gasPrice, gasLimit int64) (*Client, error) {
	privKey, err := crypto.HexToECDSA(strip0x(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("parsing replenishment private key: %w", err)
	}

	payload, err := hex.DecodeString(strip0x(clientPayloadHex))
	if err != nil {
		return nil, fmt.Errorf("parsing client payload: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(addVerifiedClientABI))
	if err != nil {
		return nil, fmt.Errorf("parsing addVerifiedClient ABI: %w", err)
	}

	pub, ok := privKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("replenishment key has no ECDSA public key")
	}

	return &Client{
		chain:         chain,
		privateKey:    privKey,
		senderAddr:    crypto.PubkeyToAddress(*pub),
		contract:      common.HexToAddress(contractHex),
		clientPayload: payload,
		gasPrice:      gasPrice,
		gasLimit:      gasLimit,
		method:        parsed.Methods["addVerifiedClient"],
	}, nil
}

// Request implements §4.7: it assembles, signs, and submits a legacy EVM
// transaction calling addVerifiedClient(clientPayload, spentQuota).
func (c *Client) Request(ctx context.Context, spentQuota uint64) (string, error) {
	nonce, err := c.chain.EthNonce(ctx, c.senderAddr)
	if err != nil {
		return "", fmt.Errorf("fetching evm nonce: %w", err)
	}

	calldata, err := c.method.Inputs.Pack(c.clientPayload, new(big.Int).SetUint64(spentQuota))
	if err != nil {
		return "", fmt.Errorf("packing addVerifiedClient calldata: %w", err)
	}
	calldata = append(c.method.ID, calldata...)

	chainID, err := c.chain.EthChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching evm chain id: %w", err)
	}

	rawTx, err := c.signLegacyTx(nonce, chainID, calldata)
	if err != nil {
		return "", err
	}

	return c.chain.EvmSendRaw(ctx, rawTx)
}

// legacyTxForSigning is the EIP-155 tuple hashed before signing:
// (nonce, gasPrice, gasLimit, to, value, data, chainId, 0, 0).
type legacyTxForSigning struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       common.Address
	Value    *big.Int
	Data     []byte
	ChainID  uint64
	Zero1    uint64
	Zero2    uint64
}

// signedLegacyTx is the final transmitted tuple:
// (nonce, gasPrice, gasLimit, to, value, data, v, r, s).
type signedLegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       common.Address
	Value    *big.Int
	Data     []byte
	V        *big.Int
	R        *big.Int
	S        *big.Int
}

func (c *Client) signLegacyTx(nonce, chainID uint64, calldata []byte) ([]byte, error) {
	unsigned := legacyTxForSigning{
		Nonce:    nonce,
		GasPrice: big.NewInt(c.gasPrice),
		GasLimit: uint64(c.gasLimit),
		To:       c.contract,
		Value:    big.NewInt(0),
		Data:     calldata,
		ChainID:  chainID,
	}

	encoded, err := rlp.EncodeToBytes(unsigned)
	if err != nil {
		return nil, fmt.Errorf("rlp-encoding unsigned replenishment tx: %w", err)
	}
	hash := crypto.Keccak256(encoded)

	sig, err := crypto.Sign(hash, c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("signing replenishment tx: %w", err)
	}

	recoveryID := uint64(sig[64])
	v := new(big.Int).SetUint64(chainID*2 + 35 + recoveryID)
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])

	signed := signedLegacyTx{
		Nonce:    unsigned.Nonce,
		GasPrice: unsigned.GasPrice,
		GasLimit: unsigned.GasLimit,
		To:       unsigned.To,
		Value:    unsigned.Value,
		Data:     unsigned.Data,
		V:        v,
		R:        r,
		S:        s,
	}

	return rlp.EncodeToBytes(signed)
}

// SenderAddress returns the EVM address that will sign replenishment
// requests, derived from the configured private key.
func (c *Client) SenderAddress() common.Address {
	return c.senderAddr
}

func strip0x(s string) string {
	return strings.TrimPrefix(s, "0x")
}
