package codec

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/filecoin-project/go-state-types/abi"
	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/CELtd/filplus-autocap/internal/apperr"
)

// Metadata is the bid payload a storage provider encodes into a message's
// parameter field. Field order is the wire order: provider, piece cid,
// padded size, term min, term max, expiration.
type Metadata struct {
	Provider   uint64
	Data       cid.Cid
	Size       abi.PaddedPieceSize
	TermMin    abi.ChainEpoch
	TermMax    abi.ChainEpoch
	Expiration abi.ChainEpoch
}

// MarshalCBOR writes the deterministic CBOR tuple form of Metadata.
func (t *Metadata) MarshalCBOR(w io.Writer) error {
	if t == nil {
		_, err := w.Write(cbg.CborNull)
		return err
	}

	if err := cbg.WriteMajorTypeHeader(w, cbg.MajArray, 6); err != nil {
		return err
	}

	if err := writeUint64(w, t.Provider); err != nil {
		return err
	}
	if err := cbg.WriteCid(w, t.Data); err != nil {
		return xerrWrap(err)
	}
	if err := writeUint64(w, uint64(t.Size)); err != nil {
		return err
	}
	if err := writeEpoch(w, int64(t.TermMin)); err != nil {
		return err
	}
	if err := writeEpoch(w, int64(t.TermMax)); err != nil {
		return err
	}
	if err := writeEpoch(w, int64(t.Expiration)); err != nil {
		return err
	}
	return nil
}

// UnmarshalCBOR parses the deterministic CBOR tuple form of Metadata.
func (t *Metadata) UnmarshalCBOR(r io.Reader) error {
	*t = Metadata{}

	br := cbg.GetPeeker(r)
	scratch := make([]byte, 8)

	if err := readArrayHeader(br, scratch, 6); err != nil {
		return err
	}

	provider, err := readUint64(br, scratch)
	if err != nil {
		return err
	}
	t.Provider = provider

	c, err := cbg.ReadCid(br)
	if err != nil {
		return &apperr.CidForm{Reason: err.Error()}
	}
	t.Data = c

	size, err := readUint64(br, scratch)
	if err != nil {
		return err
	}
	t.Size = abi.PaddedPieceSize(size)

	termMin, err := readEpoch(br, scratch)
	if err != nil {
		return err
	}
	t.TermMin = abi.ChainEpoch(termMin)

	termMax, err := readEpoch(br, scratch)
	if err != nil {
		return err
	}
	t.TermMax = abi.ChainEpoch(termMax)

	expiration, err := readEpoch(br, scratch)
	if err != nil {
		return err
	}
	t.Expiration = abi.ChainEpoch(expiration)

	return nil
}

// Encode returns the CBOR byte encoding of t.
func Encode(t *Metadata) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.MarshalCBOR(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses b as a CBOR-encoded Metadata.
func Decode(b []byte) (*Metadata, error) {
	var t Metadata
	if err := t.UnmarshalCBOR(bufio.NewReader(bytes.NewReader(b))); err != nil {
		return nil, err
	}
	return &t, nil
}

// metadataJSON mirrors the persisted Round State schema exactly:
// {"provider", "data", "size", "term_min", "term_max", "expiration"}.
type metadataJSON struct {
	Provider   uint64 `json:"provider"`
	Data       string `json:"data"`
	Size       uint64 `json:"size"`
	TermMin    int64  `json:"term_min"`
	TermMax    int64  `json:"term_max"`
	Expiration int64  `json:"expiration"`
}

// MarshalJSON renders Metadata in the persisted Round State schema, with the
// piece CID as its string form.
func (t Metadata) MarshalJSON() ([]byte, error) {
	dataStr := ""
	if t.Data.Defined() {
		dataStr = t.Data.String()
	}
	return json.Marshal(metadataJSON{
		Provider:   t.Provider,
		Data:       dataStr,
		Size:       uint64(t.Size),
		TermMin:    int64(t.TermMin),
		TermMax:    int64(t.TermMax),
		Expiration: int64(t.Expiration),
	})
}

// UnmarshalJSON parses Metadata from the persisted Round State schema.
func (t *Metadata) UnmarshalJSON(b []byte) error {
	var j metadataJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}

	var c cid.Cid
	var err error
	if j.Data != "" {
		c, err = cid.Parse(j.Data)
		if err != nil {
			return fmt.Errorf("parsing metadata piece cid %q: %w", j.Data, err)
		}
	}

	t.Provider = j.Provider
	t.Data = c
	t.Size = abi.PaddedPieceSize(j.Size)
	t.TermMin = abi.ChainEpoch(j.TermMin)
	t.TermMax = abi.ChainEpoch(j.TermMax)
	t.Expiration = abi.ChainEpoch(j.Expiration)
	return nil
}

func xerrWrap(err error) error {
	if err == nil {
		return nil
	}
	return &apperr.CidForm{Reason: err.Error()}
}
