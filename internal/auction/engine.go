// Package auction implements the Auction Engine: proportional reward
// computation, ledger updates, dispatch of allocations, the protocol burn
// transfer, and round reset.
package auction

import (
	"context"
	"log"
	"math/big"

	"github.com/CELtd/filplus-autocap/internal/bid"
	"github.com/CELtd/filplus-autocap/internal/ledger"
	"github.com/CELtd/filplus-autocap/internal/round"
)

// attoPerToken is the number of smallest units per whole native token.
const attoPerToken = 1e18

// Dispatcher drains the closed round's bids and returns the total quota it
// spent. Declared here so the engine can be tested without a full chain.
type Dispatcher interface {
	Dispatch(ctx context.Context, bids []bid.Bid) (uint64, error)
}

// Burner sends the protocol burn transfer. amountAtto is in the chain's
// smallest unit.
type Burner interface {
	SendBurn(ctx context.Context, amountAtto *big.Int) (string, error)
}

// Engine is the Auction Engine component.
type Engine struct {
	round            *round.State
	ledger           *ledger.Ledger
	dispatcher       Dispatcher
	burner           Burner
	issuancePerRound uint64
	burnFeeBps       int
}

// New builds an Engine. burnFeeBps is the protocol burn fee in basis points
// of total round stake (5000 = 0.50).
func New(rs *round.State, l *ledger.Ledger, dispatcher Dispatcher, burner Burner, issuancePerRound uint64, burnFeeBps int) *Engine {
	return &Engine{
		round:            rs,
		ledger:           l,
		dispatcher:       dispatcher,
		burner:           burner,
		issuancePerRound: issuancePerRound,
		burnFeeBps:       burnFeeBps,
	}
}

// RunAuction implements §4.5. closingBlock is the block the round is closing
// at; Round State's opening block is advanced to it on reset.
func (e *Engine) RunAuction(ctx context.Context, closingBlock uint64) (uint64, error) {
	bids := e.round.Bids()
	if len(bids) == 0 {
		log.Printf("[auction] round at block %d has no bids, resetting", closingBlock)
		if err := e.round.Reset(closingBlock); err != nil {
			return 0, err
		}
		return 0, nil
	}

	records := ComputeRewards(bids, e.issuancePerRound)
	if len(records) > 0 {
		if err := e.ledger.ApplyRewards(closingBlock, SumByAddr(records)); err != nil {
			return 0, err
		}
		log.Printf("[auction] credited %d reward record(s) for round at block %d", len(records), closingBlock)
	} else {
		log.Printf("[auction] total stake is zero for round at block %d, no rewards credited", closingBlock)
	}

	spentQuota, err := e.dispatcher.Dispatch(ctx, bids)
	if err != nil {
		return 0, err
	}

	e.burnFee(ctx, bids)

	if err := e.round.Reset(closingBlock); err != nil {
		return 0, err
	}

	return spentQuota, nil
}

// burnFee sends BurnFee × totalStake of native token to the protocol burn
// address. A failure is logged but never rolls back the round.
func (e *Engine) burnFee(ctx context.Context, bids []bid.Bid) {
	total := 0.0
	for _, b := range bids {
		total += b.ValueFil
	}
	if total <= 0 {
		return
	}

	burnTokens := total * float64(e.burnFeeBps) / 10000.0
	amountAtto := tokensToAtto(burnTokens)

	txHash, err := e.burner.SendBurn(ctx, amountAtto)
	if err != nil {
		log.Printf("[auction] WARN: burn transfer failed: %v", err)
		return
	}
	log.Printf("[auction] burned %.6f tokens, tx=%s", burnTokens, txHash)
}

// tokensToAtto converts a whole-token float amount to the chain's smallest
// unit, rounded to nearest integer.
func tokensToAtto(tokens float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(tokens), big.NewFloat(attoPerToken))
	f.Add(f, big.NewFloat(0.5))
	i, _ := f.Int(nil)
	return i
}
