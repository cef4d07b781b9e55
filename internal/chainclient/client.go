// Package chainclient wraps the chain node's JSON-RPC API behind the
// operation set the core actually needs, translating lotus's wire types to
// this module's own domain types and collapsing transport/API errors into
// the typed kinds in internal/apperr.
package chainclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-jsonrpc"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/lotus/api"
	"github.com/filecoin-project/lotus/api/client"
	"github.com/filecoin-project/lotus/chain/types"
	"github.com/filecoin-project/lotus/chain/types/ethtypes"
	cid "github.com/ipfs/go-cid"

	"github.com/CELtd/filplus-autocap/internal/apperr"
)

// Message pairs a chain message with the cid it was included under, mirroring
// the {cid, message} records MessagesAt returns.
type Message struct {
	Cid     cid.Cid
	Message *types.Message
}

// Receipt is the outcome of a message landing on chain.
type Receipt struct {
	ExitCode int64
}

// Client is the Chain Client component.
type Client struct {
	node   api.FullNode
	closer jsonrpc.ClientCloser
}

// Dial connects to the chain node's JSON-RPC endpoint, attaching a bearer
// token if jwt is non-empty.
func Dial(ctx context.Context, rpcURL, jwt string) (*Client, error) {
	header := http.Header{}
	if jwt != "" {
		header.Set("Authorization", "Bearer "+jwt)
	}

	node, closer, err := client.NewFullNodeRPCV1(ctx, rpcURL, header)
	if err != nil {
		return nil, &apperr.ChainUnreachable{Op: "dial", Err: err}
	}
	return &Client{node: node, closer: closer}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// HeadHeight returns the current chain epoch.
func (c *Client) HeadHeight(ctx context.Context) (abi.ChainEpoch, error) {
	ts, err := c.node.ChainHead(ctx)
	if err != nil {
		return 0, &apperr.ChainUnreachable{Op: "ChainHead", Err: err}
	}
	return ts.Height(), nil
}

// MessagesAt returns the messages included in the tipset at height.
func (c *Client) MessagesAt(ctx context.Context, height abi.ChainEpoch) ([]Message, error) {
	ts, err := c.node.ChainGetTipSetByHeight(ctx, height, types.EmptyTSK)
	if err != nil {
		return nil, &apperr.ChainUnreachable{Op: "ChainGetTipSetByHeight", Err: err}
	}
	if ts == nil || ts.Height() != height {
		return nil, &apperr.HeightUnavailable{Height: int64(height)}
	}

	msgs, err := c.node.ChainGetMessagesInTipset(ctx, ts.Key())
	if err != nil {
		return nil, &apperr.ChainUnreachable{Op: "ChainGetMessagesInTipset", Err: err}
	}

	out := make([]Message, len(msgs))
	for i, m := range msgs {
		msg := m.Message
		out[i] = Message{Cid: m.Cid, Message: msg}
	}
	return out, nil
}

// Nonce returns the next pending sequence number for addr.
func (c *Client) Nonce(ctx context.Context, addr address.Address) (uint64, error) {
	n, err := c.node.MpoolGetNonce(ctx, addr)
	if err != nil {
		return 0, &apperr.ChainUnreachable{Op: "MpoolGetNonce", Err: err}
	}
	return n, nil
}

// Balance returns addr's native-unit balance as a decimal string.
func (c *Client) Balance(ctx context.Context, addr address.Address) (string, error) {
	bal, err := c.node.WalletBalance(ctx, addr)
	if err != nil {
		return "", &apperr.ChainUnreachable{Op: "WalletBalance", Err: err}
	}
	return bal.String(), nil
}

// ResolveId resolves addr to its numeric actor id form.
func (c *Client) ResolveId(ctx context.Context, addr address.Address) (abi.ActorID, error) {
	resolved, err := c.node.StateLookupID(ctx, addr, types.EmptyTSK)
	if err != nil {
		return 0, &apperr.ChainUnreachable{Op: "StateLookupID", Err: err}
	}
	if resolved.Protocol() != address.ID {
		return 0, &apperr.NotIdAddress{Addr: addr.String()}
	}
	id, err := address.IDFromAddress(resolved)
	if err != nil {
		return 0, &apperr.NotIdAddress{Addr: addr.String()}
	}
	return abi.ActorID(id), nil
}

// DataCapStatus returns addr's current verified-client quota, 0 if unset.
func (c *Client) DataCapStatus(ctx context.Context, addr address.Address) (uint64, error) {
	dcap, err := c.node.StateVerifiedClientStatus(ctx, addr, types.EmptyTSK)
	if err != nil {
		return 0, &apperr.ChainUnreachable{Op: "StateVerifiedClientStatus", Err: err}
	}
	if dcap == nil {
		return 0, nil
	}
	return big.Int(*dcap).Uint64(), nil
}

// EstimateGasPremium estimates a gas premium for a message sent by from with
// the given gas limit.
func (c *Client) EstimateGasPremium(ctx context.Context, from address.Address, gasLimit int64) (big.Int, error) {
	premium, err := c.node.GasEstimateGasPremium(ctx, 1, from, gasLimit, types.EmptyTSK)
	if err != nil {
		return big.Zero(), &apperr.ChainUnreachable{Op: "GasEstimateGasPremium", Err: err}
	}
	return premium, nil
}

// EstimateFeeCap estimates a fee cap for msg.
func (c *Client) EstimateFeeCap(ctx context.Context, msg *types.Message) (big.Int, error) {
	feeCap, err := c.node.GasEstimateFeeCap(ctx, msg, 20, types.EmptyTSK)
	if err != nil {
		return big.Zero(), &apperr.ChainUnreachable{Op: "GasEstimateFeeCap", Err: err}
	}
	return feeCap, nil
}

// Submit pushes a signed message to the mempool, returning its cid.
func (c *Client) Submit(ctx context.Context, smsg *types.SignedMessage) (cid.Cid, error) {
	c2, err := c.node.MpoolPush(ctx, smsg)
	if err != nil {
		return cid.Undef, &apperr.MempoolRejected{Reason: err.Error()}
	}
	return c2, nil
}

// WaitReceipt blocks until the message at msgCid is on chain at the given
// confirmation depth, then reports its exit code.
func (c *Client) WaitReceipt(ctx context.Context, msgCid cid.Cid, confidence uint64) (Receipt, error) {
	lookup, err := c.node.StateWaitMsg(ctx, msgCid, confidence, api.LookbackNoLimit, true)
	if err != nil {
		return Receipt{}, &apperr.ChainUnreachable{Op: "StateWaitMsg", Err: err}
	}
	if lookup == nil {
		return Receipt{}, &apperr.ChainUnreachable{Op: "StateWaitMsg", Err: fmt.Errorf("nil lookup for %s", msgCid)}
	}
	return Receipt{ExitCode: int64(lookup.Receipt.ExitCode)}, nil
}

// EvmSendRaw submits a raw RLP-encoded EVM transaction, returning its hash.
func (c *Client) EvmSendRaw(ctx context.Context, rawTx []byte) (string, error) {
	hash, err := c.node.EthSendRawTransaction(ctx, rawTx)
	if err != nil {
		return "", &apperr.MempoolRejected{Reason: err.Error()}
	}
	return hash.String(), nil
}

// EthChainID returns the chain id reported by the node's EVM-compatible
// surface, used once per replenishment request.
func (c *Client) EthChainID(ctx context.Context) (uint64, error) {
	id, err := c.node.EthChainId(ctx)
	if err != nil {
		return 0, &apperr.ChainUnreachable{Op: "EthChainId", Err: err}
	}
	return uint64(id), nil
}

// EthNonce returns the next transaction count for an Ethereum-form address.
func (c *Client) EthNonce(ctx context.Context, ethAddr ethtypes.EthAddress) (uint64, error) {
	n, err := c.node.EthGetTransactionCount(ctx, ethAddr, ethtypes.NewEthBlockNumberOrHashFromPredefined("pending"))
	if err != nil {
		return 0, &apperr.ChainUnreachable{Op: "EthGetTransactionCount", Err: err}
	}
	return uint64(n), nil
}
