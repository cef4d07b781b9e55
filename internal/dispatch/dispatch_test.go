package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/filecoin-project/go-address"
	cid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CELtd/filplus-autocap/internal/bid"
	"github.com/CELtd/filplus-autocap/internal/codec"
)

func mustActorID(t *testing.T, a address.Address) uint64 {
	t.Helper()
	id, err := address.IDFromAddress(a)
	require.NoError(t, err)
	return id
}

type fakeLedger struct {
	balances map[string]uint64
	deducted map[string]uint64
}

func newFakeLedger(balances map[string]uint64) *fakeLedger {
	return &fakeLedger{balances: balances, deducted: map[string]uint64{}}
}

func (f *fakeLedger) Balance(addr string) uint64 { return f.balances[addr] }

func (f *fakeLedger) Deduct(addr string, amount uint64) error {
	if f.balances[addr] < amount {
		return errors.New("insufficient")
	}
	f.balances[addr] -= amount
	f.deducted[addr] += amount
	return nil
}

type fakeSender struct {
	fail bool
	sent []*codec.TransferParams
}

func (f *fakeSender) SendTransfer(ctx context.Context, params *codec.TransferParams) (cid.Cid, error) {
	if f.fail {
		return cid.Undef, errors.New("send failed")
	}
	f.sent = append(f.sent, params)
	mh, _ := multihash.Sum([]byte{byte(len(f.sent))}, multihash.SHA2_256, -1)
	return cid.NewCidV1(cid.DagCBOR, mh), nil
}

func dealCid(t *testing.T, seed byte) cid.Cid {
	t.Helper()
	mh, err := multihash.Sum([]byte{seed}, multihash.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.DagCBOR, mh)
}

func TestDispatchAllocatesWhenCreditSufficient(t *testing.T) {
	ledger := newFakeLedger(map[string]uint64{"f0200": 2048})
	sender := &fakeSender{}
	d := New(ledger, sender, false)

	bids := []bid.Bid{
		{From: "f0200", Metadata: codec.Metadata{Size: 1024, Data: dealCid(t, 1)}},
	}

	spent, err := d.Dispatch(context.Background(), bids)
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), spent)
	assert.Equal(t, uint64(1024), ledger.balances["f0200"])
	require.Len(t, sender.sent, 1)
}

func TestDispatchSkipsDuplicateDealWithinRound(t *testing.T) {
	ledger := newFakeLedger(map[string]uint64{"f0200": 4096})
	sender := &fakeSender{}
	d := New(ledger, sender, false)

	deal := dealCid(t, 2)
	bids := []bid.Bid{
		{From: "f0200", Metadata: codec.Metadata{Size: 1024, Data: deal}},
		{From: "f0200", Metadata: codec.Metadata{Size: 1024, Data: deal}},
	}

	spent, err := d.Dispatch(context.Background(), bids)
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), spent)
	assert.Len(t, sender.sent, 1)
}

func TestDispatchSkipsInsufficientCredit(t *testing.T) {
	ledger := newFakeLedger(map[string]uint64{"f0200": 100})
	sender := &fakeSender{}
	d := New(ledger, sender, false)

	bids := []bid.Bid{
		{From: "f0200", Metadata: codec.Metadata{Size: 1024, Data: dealCid(t, 3)}},
	}

	spent, err := d.Dispatch(context.Background(), bids)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), spent)
	assert.Empty(t, sender.sent)
	assert.Equal(t, uint64(100), ledger.balances["f0200"])
}

func TestDispatchSendFailureLeavesCreditUntouched(t *testing.T) {
	ledger := newFakeLedger(map[string]uint64{"f0200": 4096})
	sender := &fakeSender{fail: true}
	d := New(ledger, sender, false)

	bids := []bid.Bid{
		{From: "f0200", Metadata: codec.Metadata{Size: 1024, Data: dealCid(t, 4)}},
	}

	spent, err := d.Dispatch(context.Background(), bids)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), spent)
	assert.Equal(t, uint64(4096), ledger.balances["f0200"])
}

func TestDispatchContinuesAfterASkippedBid(t *testing.T) {
	ledger := newFakeLedger(map[string]uint64{"f0200": 100, "f0201": 4096})
	sender := &fakeSender{}
	d := New(ledger, sender, false)

	bids := []bid.Bid{
		{From: "f0200", Metadata: codec.Metadata{Size: 1024, Data: dealCid(t, 5)}},
		{From: "f0201", Metadata: codec.Metadata{Size: 2048, Data: dealCid(t, 6)}},
	}

	spent, err := d.Dispatch(context.Background(), bids)
	require.NoError(t, err)
	assert.Equal(t, uint64(2048), spent)
	assert.Len(t, sender.sent, 1)
}

func TestDispatchTransferParamsCarryVerifiedRegistryRecipientAndEncodedAllocation(t *testing.T) {
	ledger := newFakeLedger(map[string]uint64{"f0200": 4096})
	sender := &fakeSender{}
	d := New(ledger, sender, false)

	deal := dealCid(t, 7)
	bids := []bid.Bid{
		{From: "f0200", Metadata: codec.Metadata{Size: 1024, Provider: 900, Data: deal}},
	}

	_, err := d.Dispatch(context.Background(), bids)
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	got := sender.sent[0]
	assert.Equal(t, uint64(6), mustActorID(t, got.Recipient))

	reqs, err := codec.DecodeAllocationRequests(got.OperatorData)
	require.NoError(t, err)
	require.Len(t, reqs.Allocations, 1)
	assert.Equal(t, uint64(900), reqs.Allocations[0].Provider)
	assert.Empty(t, reqs.Extensions)
}
