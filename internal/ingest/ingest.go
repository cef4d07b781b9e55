// Package ingest implements the Bid Ingestor: for each new block, it filters
// messages addressed to the bot wallet, confirms each succeeded on-chain,
// decodes its Metadata, and appends a Bid to the open round.
package ingest

import (
	"context"
	"log"
	"math/big"
	"strings"

	"github.com/filecoin-project/go-state-types/abi"
	cid "github.com/ipfs/go-cid"

	"github.com/CELtd/filplus-autocap/internal/bid"
	"github.com/CELtd/filplus-autocap/internal/chainclient"
	"github.com/CELtd/filplus-autocap/internal/codec"
	"github.com/CELtd/filplus-autocap/internal/round"
)

// attoPerToken is the number of smallest units per whole native token.
const attoPerToken = 1e18

// ChainReader is the subset of the Chain Client the ingestor depends on.
// Declared here, satisfied structurally by *chainclient.Client, so tests can
// supply a fake without a mock-generation dependency.
type ChainReader interface {
	MessagesAt(ctx context.Context, height abi.ChainEpoch) ([]chainclient.Message, error)
	WaitReceipt(ctx context.Context, msgCid cid.Cid, confidence uint64) (chainclient.Receipt, error)
}

// Ingestor is the Bid Ingestor component.
type Ingestor struct {
	chain         ChainReader
	round         *round.State
	walletAddr    string
	testnetWallet string
	debug         bool
}

// New builds an Ingestor that recognizes bids addressed to walletAddr in
// either its mainnet or testnet prefix form.
func New(chain ChainReader, rs *round.State, walletAddr, mainnetPrefix, testnetPrefix string, debug bool) *Ingestor {
	testnetForm := walletAddr
	if strings.HasPrefix(walletAddr, mainnetPrefix) {
		testnetForm = testnetPrefix + strings.TrimPrefix(walletAddr, mainnetPrefix)
	}
	return &Ingestor{
		chain:         chain,
		round:         rs,
		walletAddr:    walletAddr,
		testnetWallet: testnetForm,
		debug:         debug,
	}
}

// IngestBlock runs the §4.4 algorithm for the tipset at height.
func (i *Ingestor) IngestBlock(ctx context.Context, height abi.ChainEpoch) error {
	msgs, err := i.chain.MessagesAt(ctx, height)
	if err != nil {
		return err
	}

	for _, m := range msgs {
		to := m.Message.To.String()
		if to != i.walletAddr && to != i.testnetWallet {
			continue
		}

		receipt, err := i.chain.WaitReceipt(ctx, m.Cid, 0)
		if err != nil {
			log.Printf("[ingest] WARN: could not confirm message %s: %v", m.Cid, err)
			continue
		}
		if receipt.ExitCode != 0 {
			log.Printf("[ingest] WARN: message %s exited with code %d, dropping bid", m.Cid, receipt.ExitCode)
			continue
		}

		if len(m.Message.Params) == 0 {
			continue
		}

		metadata, err := codec.Decode(m.Message.Params)
		if err != nil {
			log.Printf("[ingest] WARN: could not decode metadata for %s: %v", m.Cid, err)
			continue
		}

		b := bid.Bid{
			Cid:      m.Cid.String(),
			From:     m.Message.From.String(),
			To:       m.Message.To.String(),
			ValueFil: toFloatTokens(m.Message.Value.Int),
			Block:    uint64(height),
			Metadata: *metadata,
		}

		if err := i.round.Append(b); err != nil {
			return err
		}
		if i.debug {
			log.Printf("[ingest] appended bid cid=%s from=%s stake=%.6f", b.Cid, b.From, b.ValueFil)
		}
	}

	return nil
}

func toFloatTokens(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v)
	f.Quo(f, big.NewFloat(attoPerToken))
	out, _ := f.Float64()
	return out
}
