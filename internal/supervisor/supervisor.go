// Package supervisor drives the bot's top-level state machine: poll the
// chain head, ingest new blocks, and run an auction every AuctionInterval
// blocks, requesting replenishment whenever a round actually spends quota.
package supervisor

import (
	"context"
	"log"

	"github.com/filecoin-project/go-state-types/abi"
)

// ChainHead reports the current chain epoch.
type ChainHead interface {
	HeadHeight(ctx context.Context) (abi.ChainEpoch, error)
}

// BlockIngestor processes a single newly observed block.
type BlockIngestor interface {
	IngestBlock(ctx context.Context, height abi.ChainEpoch) error
}

// AuctionRunner closes the open round and reports how much quota it spent.
type AuctionRunner interface {
	RunAuction(ctx context.Context, closingBlock uint64) (uint64, error)
}

// Replenisher requests a DataCap top-up proportional to spent quota.
type Replenisher interface {
	Request(ctx context.Context, spentQuota uint64) (string, error)
}

// state names the supervisor's position in the §4.8 state machine.
type state int

const (
	stateIdle state = iota
	statePolling
	stateIngesting
	stateAuctioning
)

// Supervisor is the top-level component wiring the Chain Client, Bid
// Ingestor, Auction Engine, and Replenishment Client together.
type Supervisor struct {
	chain       ChainHead
	ingestor    BlockIngestor
	auction     AuctionRunner
	replenisher Replenisher

	auctionInterval uint64

	state      state
	lastHeight abi.ChainEpoch
	firstIter  bool
	blocksLeft uint64
}

// New builds a Supervisor. auctionInterval is the number of newly ingested
// blocks between auction rounds (§4.8's AuctionInterval).
func New(chain ChainHead, ingestor BlockIngestor, auction AuctionRunner, replenisher Replenisher, auctionInterval uint64) *Supervisor {
	return &Supervisor{
		chain:           chain,
		ingestor:        ingestor,
		auction:         auction,
		replenisher:     replenisher,
		auctionInterval: auctionInterval,
		state:           stateIdle,
		firstIter:       true,
		blocksLeft:      auctionInterval,
	}
}

// Run drives the state machine until ctx is cancelled. There is no terminal
// state; the supervisor loops Polling → Ingesting → (Auctioning) → Polling
// indefinitely.
func (s *Supervisor) Run(ctx context.Context) error {
	s.state = statePolling

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		switch s.state {
		case statePolling:
			height, err := s.chain.HeadHeight(ctx)
			if err != nil {
				log.Printf("[supervisor] WARN: could not read chain head: %v", err)
				continue
			}
			if s.firstIter || height > s.lastHeight {
				s.lastHeight = height
				s.firstIter = false
				s.state = stateIngesting
			}

		case stateIngesting:
			if err := s.ingestor.IngestBlock(ctx, s.lastHeight); err != nil {
				log.Printf("[supervisor] WARN: ingest failed at height %d: %v", s.lastHeight, err)
			}
			if s.blocksLeft > 0 {
				s.blocksLeft--
			}
			if s.blocksLeft > 0 {
				s.state = statePolling
			} else {
				s.state = stateAuctioning
			}

		case stateAuctioning:
			spentQuota, err := s.auction.RunAuction(ctx, uint64(s.lastHeight))
			if err != nil {
				log.Printf("[supervisor] WARN: auction failed at height %d: %v", s.lastHeight, err)
			} else if spentQuota > 0 {
				txHash, err := s.replenisher.Request(ctx, spentQuota)
				if err != nil {
					log.Printf("[supervisor] WARN: replenishment request failed: %v", err)
				} else {
					log.Printf("[supervisor] replenishment requested for %d bytes, tx=%s", spentQuota, txHash)
				}
			}
			s.blocksLeft = s.auctionInterval
			s.state = statePolling
		}
	}
}
