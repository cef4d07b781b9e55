// Package ledger holds the durable Credit Ledger: a mapping of SP address to
// non-negative credit (bytes), plus the block number it was last applied at.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/CELtd/filplus-autocap/internal/apperr"
	"github.com/CELtd/filplus-autocap/internal/durable"
)

// document is the on-disk JSON shape: {"block_number", "credits"}.
type document struct {
	BlockNumber uint64            `json:"block_number"`
	Credits     map[string]uint64 `json:"credits"`
}

// Ledger is the Credit Ledger component.
type Ledger struct {
	path string
	mu   sync.Mutex
	doc  document
}

// Open loads the Credit Ledger from path, creating an empty ledger at block
// 0 if the file does not yet exist.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.doc = document{BlockNumber: 0, Credits: map[string]uint64{}}
			if err := l.persistLocked(); err != nil {
				return nil, err
			}
			return l, nil
		}
		return nil, fmt.Errorf("reading credit ledger %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing credit ledger %s: %w", path, err)
	}
	if doc.Credits == nil {
		doc.Credits = map[string]uint64{}
	}
	l.doc = doc
	return l, nil
}

// Balance returns the current credit for addr, 0 if absent.
func (l *Ledger) Balance(addr string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doc.Credits[addr]
}

// BlockNumber returns the block number the ledger was last applied at.
func (l *Ledger) BlockNumber() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doc.BlockNumber
}

// ApplyRewards adds each reward to its address's credit (creating the entry
// at 0 if absent), sets the ledger's block number, and persists atomically.
// This is the §4.5.2 ledger update: it always runs before any allocation in
// the same round can consume the new credit.
func (l *Ledger) ApplyRewards(blockNumber uint64, rewards map[string]uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for addr, amount := range rewards {
		l.doc.Credits[addr] += amount
	}
	l.doc.BlockNumber = blockNumber
	return l.persistLocked()
}

// Deduct subtracts amount from addr's credit. The caller must have already
// verified addr holds at least amount; Deduct never lets a balance go
// negative — on a shortfall it returns an error and leaves the balance
// unchanged.
func (l *Ledger) Deduct(addr string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	have := l.doc.Credits[addr]
	if have < amount {
		return fmt.Errorf("insufficient credit for %s: have %d, need %d", addr, have, amount)
	}
	l.doc.Credits[addr] = have - amount
	return l.persistLocked()
}

func (l *Ledger) persistLocked() error {
	data, err := json.MarshalIndent(l.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credit ledger: %w", err)
	}
	if err := durable.WriteFileAtomic(l.path, data); err != nil {
		return &apperr.PersistenceFailure{Path: l.path, Err: err}
	}
	return nil
}
