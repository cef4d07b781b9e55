// Package round holds the durable Round State: the currently open auction's
// opening block and the bids accumulated since it opened. Round State is
// always open; Reset clears it, it is never destroyed.
package round

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/CELtd/filplus-autocap/internal/apperr"
	"github.com/CELtd/filplus-autocap/internal/bid"
	"github.com/CELtd/filplus-autocap/internal/durable"
)

// document is the on-disk JSON shape: {"block_number", "transactions"}.
type document struct {
	BlockNumber  uint64    `json:"block_number"`
	Transactions []bid.Bid `json:"transactions"`
}

// State is the Round State component. It owns the file at path and
// serializes every mutation to disk before returning.
type State struct {
	path string
	mu   sync.Mutex
	doc  document
}

// Open loads Round State from path, creating a fresh document opened at
// block 0 if the file does not yet exist.
func Open(path string) (*State, error) {
	s := &State{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.doc = document{BlockNumber: 0, Transactions: []bid.Bid{}}
			if err := s.persistLocked(); err != nil {
				return nil, err
			}
			return s, nil
		}
		return nil, fmt.Errorf("reading round state %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing round state %s: %w", path, err)
	}
	if doc.Transactions == nil {
		doc.Transactions = []bid.Bid{}
	}
	s.doc = doc
	return s, nil
}

// OpeningBlock returns the block number the current round opened at.
func (s *State) OpeningBlock() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.BlockNumber
}

// Bids returns a copy of the bids accumulated since the round opened.
func (s *State) Bids() []bid.Bid {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bid.Bid, len(s.doc.Transactions))
	copy(out, s.doc.Transactions)
	return out
}

// Append adds b to the round and flushes to disk before returning, so a
// crash between append and the next read never loses an acknowledged bid.
func (s *State) Append(b bid.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Transactions = append(s.doc.Transactions, b)
	return s.persistLocked()
}

// Reset clears the accumulated bids and advances the opening block to
// closingBlock, then persists.
func (s *State) Reset(closingBlock uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.BlockNumber = closingBlock
	s.doc.Transactions = []bid.Bid{}
	return s.persistLocked()
}

func (s *State) persistLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling round state: %w", err)
	}
	if err := durable.WriteFileAtomic(s.path, data); err != nil {
		return &apperr.PersistenceFailure{Path: s.path, Err: err}
	}
	return nil
}
