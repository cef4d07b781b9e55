// Package txbuilder factors the "acquire nonce, estimate gas, sign, submit"
// flow shared by the Auction Engine's burn transfer and the Allocation
// Dispatcher's per-bid transfer, so that sequence is implemented once.
package txbuilder

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/filecoin-project/lotus/chain/types"
	cid "github.com/ipfs/go-cid"

	"github.com/CELtd/filplus-autocap/internal/chainclient"
	"github.com/CELtd/filplus-autocap/internal/signer"
)

// Request describes a single signed-message send.
type Request struct {
	From     address.Address
	To       address.Address
	Method   abi.MethodNum
	Params   []byte
	Value    big.Int
	GasLimit int64
}

// Send acquires a nonce, estimates gas, signs the resulting message with id,
// and submits it. It returns the message cid on successful mempool
// acceptance.
func Send(ctx context.Context, cc *chainclient.Client, id signer.Identity, req Request) (cid.Cid, error) {
	nonce, err := cc.Nonce(ctx, req.From)
	if err != nil {
		return cid.Undef, err
	}

	msg := &types.Message{
		Version:  0,
		From:     req.From,
		To:       req.To,
		Nonce:    nonce,
		Value:    req.Value,
		Method:   req.Method,
		Params:   req.Params,
		GasLimit: req.GasLimit,
	}

	premium, err := cc.EstimateGasPremium(ctx, req.From, req.GasLimit)
	if err != nil {
		return cid.Undef, err
	}
	msg.GasPremium = premium

	feeCap, err := cc.EstimateFeeCap(ctx, msg)
	if err != nil {
		return cid.Undef, err
	}
	msg.GasFeeCap = feeCap

	sig, err := signer.Sign(id, msg.Cid().Bytes())
	if err != nil {
		return cid.Undef, err
	}

	smsg := &types.SignedMessage{
		Message: *msg,
		Signature: crypto.Signature{
			Type: sig.Type,
			Data: sig.Data,
		},
	}

	return cc.Submit(ctx, smsg)
}
