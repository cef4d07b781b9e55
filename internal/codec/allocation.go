package codec

import (
	"bufio"
	"bytes"
	"io"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/CELtd/filplus-autocap/internal/apperr"
)

// AllocationRequest is the verified-registry wire form of a bid's Metadata:
// identical fields, identical order.
type AllocationRequest struct {
	Provider   uint64
	Data       cid.Cid
	Size       abi.PaddedPieceSize
	TermMin    abi.ChainEpoch
	TermMax    abi.ChainEpoch
	Expiration abi.ChainEpoch
}

// FromMetadata copies a Metadata's fields through verbatim: term_min,
// term_max and expiration are never recomputed.
func FromMetadata(m *Metadata) AllocationRequest {
	return AllocationRequest{
		Provider:   m.Provider,
		Data:       m.Data,
		Size:       m.Size,
		TermMin:    m.TermMin,
		TermMax:    m.TermMax,
		Expiration: m.Expiration,
	}
}

func (t *AllocationRequest) MarshalCBOR(w io.Writer) error {
	if t == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}
	m := Metadata(*t)
	return (&m).MarshalCBOR(w)
}

func (t *AllocationRequest) UnmarshalCBOR(r io.Reader) error {
	var m Metadata
	if err := m.UnmarshalCBOR(r); err != nil {
		return err
	}
	*t = AllocationRequest(m)
	return nil
}

// AllocationRequests is the operator_data envelope carried by TransferParams.
// Extensions is always the empty sequence in this system.
type AllocationRequests struct {
	Allocations []AllocationRequest
	Extensions  []AllocationRequest
}

func (t *AllocationRequests) MarshalCBOR(w io.Writer) error {
	if t == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}
	if err := cbg.WriteMajorTypeHeader(w, cbg.MajArray, 2); err != nil {
		return err
	}
	if err := writeAllocationSlice(w, t.Allocations); err != nil {
		return err
	}
	return writeAllocationSlice(w, t.Extensions)
}

func (t *AllocationRequests) UnmarshalCBOR(r io.Reader) error {
	*t = AllocationRequests{}
	br := cbg.GetPeeker(r)
	scratch := make([]byte, 8)

	if err := readArrayHeader(br, scratch, 2); err != nil {
		return err
	}

	allocs, err := readAllocationSlice(br, scratch)
	if err != nil {
		return err
	}
	t.Allocations = allocs

	exts, err := readAllocationSlice(br, scratch)
	if err != nil {
		return err
	}
	t.Extensions = exts

	return nil
}

func writeAllocationSlice(w io.Writer, items []AllocationRequest) error {
	if err := cbg.WriteMajorTypeHeader(w, cbg.MajArray, uint64(len(items))); err != nil {
		return err
	}
	for i := range items {
		if err := items[i].MarshalCBOR(w); err != nil {
			return err
		}
	}
	return nil
}

func readAllocationSlice(br cbg.ByteReader, scratch []byte) ([]AllocationRequest, error) {
	maj, extra, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return nil, &apperr.CborDecode{Reason: err.Error()}
	}
	if maj != cbg.MajArray {
		return nil, &apperr.CborDecode{Reason: "expected array of allocation requests"}
	}

	out := make([]AllocationRequest, 0, extra)
	for i := uint64(0); i < extra; i++ {
		var a AllocationRequest
		if err := a.UnmarshalCBOR(br); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// TransferParams is the params field of a DataCapTransfer message:
// (recipient, amount, operator_data).
type TransferParams struct {
	Recipient    address.Address
	Amount       big.Int
	OperatorData []byte
}

func (t *TransferParams) MarshalCBOR(w io.Writer) error {
	if t == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}
	if err := cbg.WriteMajorTypeHeader(w, cbg.MajArray, 3); err != nil {
		return err
	}
	if err := t.Recipient.MarshalCBOR(w); err != nil {
		return err
	}
	if err := t.Amount.MarshalCBOR(w); err != nil {
		return err
	}
	return cbg.WriteByteArray(w, t.OperatorData)
}

func (t *TransferParams) UnmarshalCBOR(r io.Reader) error {
	*t = TransferParams{}
	br := cbg.GetPeeker(r)
	scratch := make([]byte, 8)

	if err := readArrayHeader(br, scratch, 3); err != nil {
		return err
	}

	if err := t.Recipient.UnmarshalCBOR(br); err != nil {
		return &apperr.CborDecode{Reason: err.Error()}
	}

	if err := t.Amount.UnmarshalCBOR(br); err != nil {
		return &apperr.CborDecode{Reason: err.Error()}
	}

	data, err := cbg.ReadByteArray(br, cbg.ByteArrayMaxLen)
	if err != nil {
		return &apperr.CborDecode{Reason: err.Error()}
	}
	t.OperatorData = data

	return nil
}

// EncodeTransferParams returns the CBOR byte encoding of t.
func EncodeTransferParams(t *TransferParams) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.MarshalCBOR(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeTransferParams parses b as CBOR-encoded TransferParams.
func DecodeTransferParams(b []byte) (*TransferParams, error) {
	var t TransferParams
	if err := t.UnmarshalCBOR(bufio.NewReader(bytes.NewReader(b))); err != nil {
		return nil, err
	}
	return &t, nil
}

// EncodeAllocationRequests returns the CBOR byte encoding of t.
func EncodeAllocationRequests(t *AllocationRequests) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.MarshalCBOR(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeAllocationRequests parses b as CBOR-encoded AllocationRequests.
func DecodeAllocationRequests(b []byte) (*AllocationRequests, error) {
	var t AllocationRequests
	if err := t.UnmarshalCBOR(bufio.NewReader(bytes.NewReader(b))); err != nil {
		return nil, err
	}
	return &t, nil
}
