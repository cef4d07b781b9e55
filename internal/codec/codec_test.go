package codec

import (
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	cid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCid(t *testing.T, seed byte) cid.Cid {
	t.Helper()
	data := make([]byte, 32)
	for i := range data {
		data[i] = seed
	}
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.DagCBOR, mh)
}

func testMetadata(t *testing.T) *Metadata {
	return &Metadata{
		Provider:   1000,
		Data:       testCid(t, 0x11),
		Size:       abi.PaddedPieceSize(1 << 20),
		TermMin:    518400,
		TermMax:    5256000,
		Expiration: 1000000,
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	m := testMetadata(t)

	enc, err := Encode(m)
	require.NoError(t, err)

	dec, err := Decode(enc)
	require.NoError(t, err)

	assert.Equal(t, m, dec)
}

func TestMetadataRejectsTruncatedInput(t *testing.T) {
	m := testMetadata(t)
	enc, err := Encode(m)
	require.NoError(t, err)

	_, err = Decode(enc[:len(enc)-1])
	assert.Error(t, err)
}

func TestAllocationRequestFromMetadataCopiesFieldsVerbatim(t *testing.T) {
	m := testMetadata(t)
	req := FromMetadata(m)

	assert.Equal(t, m.Provider, req.Provider)
	assert.Equal(t, m.Data, req.Data)
	assert.Equal(t, m.Size, req.Size)
	assert.Equal(t, m.TermMin, req.TermMin)
	assert.Equal(t, m.TermMax, req.TermMax)
	assert.Equal(t, m.Expiration, req.Expiration)
}

func TestAllocationRequestsRoundTrip(t *testing.T) {
	m := testMetadata(t)
	reqs := &AllocationRequests{
		Allocations: []AllocationRequest{FromMetadata(m)},
		Extensions:  []AllocationRequest{},
	}

	enc, err := EncodeAllocationRequests(reqs)
	require.NoError(t, err)

	dec, err := DecodeAllocationRequests(enc)
	require.NoError(t, err)

	assert.Equal(t, reqs.Allocations, dec.Allocations)
	assert.Empty(t, dec.Extensions)
}

func TestAllocationRequestsExtensionsAlwaysEmpty(t *testing.T) {
	reqs := &AllocationRequests{}
	enc, err := EncodeAllocationRequests(reqs)
	require.NoError(t, err)

	dec, err := DecodeAllocationRequests(enc)
	require.NoError(t, err)
	assert.Len(t, dec.Extensions, 0)
	assert.Len(t, dec.Allocations, 0)
}

func TestTransferParamsRoundTrip(t *testing.T) {
	recipient, err := address.NewIDAddress(7)
	require.NoError(t, err)

	m := testMetadata(t)
	reqs := &AllocationRequests{Allocations: []AllocationRequest{FromMetadata(m)}}
	operatorData, err := EncodeAllocationRequests(reqs)
	require.NoError(t, err)

	params := &TransferParams{
		Recipient:    recipient,
		Amount:       big.NewInt(1 << 40),
		OperatorData: operatorData,
	}

	enc, err := EncodeTransferParams(params)
	require.NoError(t, err)

	dec, err := DecodeTransferParams(enc)
	require.NoError(t, err)

	assert.Equal(t, params.Recipient, dec.Recipient)
	assert.True(t, params.Amount.Equals(dec.Amount))
	assert.Equal(t, params.OperatorData, dec.OperatorData)

	decReqs, err := DecodeAllocationRequests(dec.OperatorData)
	require.NoError(t, err)
	assert.Equal(t, reqs.Allocations, decReqs.Allocations)
}

func TestMetadataNegativeEpochRoundTrips(t *testing.T) {
	m := testMetadata(t)
	m.TermMin = -5
	m.Expiration = -100

	enc, err := Encode(m)
	require.NoError(t, err)
	dec, err := Decode(enc)
	require.NoError(t, err)

	assert.Equal(t, m.TermMin, dec.TermMin)
	assert.Equal(t, m.Expiration, dec.Expiration)
}
