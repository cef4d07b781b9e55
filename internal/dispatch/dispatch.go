// Package dispatch implements the Allocation Dispatcher: it walks a closed
// round's bids, checks each bidder's credit, and emits a verified-registry
// DataCap transfer for every eligible, non-duplicate deal.
package dispatch

import (
	"context"
	"log"

	"github.com/filecoin-project/go-address"
	filbig "github.com/filecoin-project/go-state-types/big"
	cid "github.com/ipfs/go-cid"

	"github.com/CELtd/filplus-autocap/internal/bid"
	"github.com/CELtd/filplus-autocap/internal/codec"
)

// attoPerByte is the scale factor from padded bytes to the smallest token
// unit used for a DataCap transfer amount (§4.6: amount = need × 10^18).
const attoPerByte = 1e18

// VerifiedRegistryActorId is the recipient of every DataCap transfer.
const VerifiedRegistryActorId = 6

// CreditLedger is the subset of the Credit Ledger the dispatcher depends on.
type CreditLedger interface {
	Balance(addr string) uint64
	Deduct(addr string, amount uint64) error
}

// Sender submits a DataCap transfer for recipient's deal and returns the
// accepted message cid. Declared here so the dispatcher can be tested
// without a chain connection; the real adapter wraps internal/txbuilder.
type Sender interface {
	SendTransfer(ctx context.Context, params *codec.TransferParams) (cid.Cid, error)
}

// Dispatcher is the Allocation Dispatcher component.
type Dispatcher struct {
	ledger CreditLedger
	sender Sender
	debug  bool
}

// New builds a Dispatcher.
func New(l CreditLedger, sender Sender, debug bool) *Dispatcher {
	return &Dispatcher{ledger: l, sender: sender, debug: debug}
}

// Dispatch implements §4.6, walking bids in order and returning the total
// spentQuota (padded bytes) allocated.
func (d *Dispatcher) Dispatch(ctx context.Context, bids []bid.Bid) (uint64, error) {
	seen := make(map[string]struct{})
	var spentQuota uint64

	for _, b := range bids {
		dealCid := b.Metadata.Data.String()
		if _, ok := seen[dealCid]; ok {
			log.Printf("[dispatch] WARN: duplicate deal %s from %s in this round, skipping", dealCid, b.From)
			continue
		}

		need := uint64(b.Metadata.Size)
		have := d.ledger.Balance(b.From)
		if have < need {
			log.Printf("[dispatch] WARN: %s has insufficient credit for deal %s: have %d, need %d", b.From, dealCid, have, need)
			continue
		}

		allocation := codec.FromMetadata(&b.Metadata)
		operatorData, err := codec.EncodeAllocationRequests(&codec.AllocationRequests{
			Allocations: []codec.AllocationRequest{allocation},
		})
		if err != nil {
			log.Printf("[dispatch] WARN: could not encode allocation request for deal %s: %v", dealCid, err)
			continue
		}
		if d.debug {
			log.Printf("[dispatch] operator data for deal %s: %x", dealCid, operatorData)
		}

		recipient, err := address.NewIDAddress(VerifiedRegistryActorId)
		if err != nil {
			return spentQuota, err
		}

		params := &codec.TransferParams{
			Recipient:    recipient,
			Amount:       filbig.Mul(filbig.NewInt(int64(need)), filbig.NewInt(int64(attoPerByte))),
			OperatorData: operatorData,
		}

		msgCid, err := d.sender.SendTransfer(ctx, params)
		if err != nil {
			log.Printf("[dispatch] WARN: send failed for deal %s from %s: %v", dealCid, b.From, err)
			continue
		}

		if err := d.ledger.Deduct(b.From, need); err != nil {
			log.Printf("[dispatch] WARN: ledger deduct failed for %s after accepted send %s: %v", b.From, msgCid, err)
			continue
		}

		seen[dealCid] = struct{}{}
		spentQuota += need

		if d.debug {
			log.Printf("[dispatch] allocated %d bytes to %s, deal=%s, tx=%s", need, b.From, dealCid, msgCid)
		}
	}

	return spentQuota, nil
}
