package codec

import (
	"io"

	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/CELtd/filplus-autocap/internal/apperr"
)

// writeEpoch writes a signed epoch count using the same major-type-0/1
// split cbor-gen's generated code uses for signed integer fields.
func writeEpoch(w io.Writer, v int64) error {
	if v >= 0 {
		return cbg.WriteMajorTypeHeader(w, cbg.MajUnsignedInt, uint64(v))
	}
	return cbg.WriteMajorTypeHeader(w, cbg.MajNegativeInt, uint64(-v-1))
}

// readEpoch reads a signed integer encoded the way writeEpoch produces it.
func readEpoch(br cbg.ByteReader, scratch []byte) (int64, error) {
	maj, extra, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return 0, &apperr.CborDecode{Reason: err.Error()}
	}
	switch maj {
	case cbg.MajUnsignedInt:
		return int64(extra), nil
	case cbg.MajNegativeInt:
		return -1 - int64(extra), nil
	default:
		return 0, &apperr.CborDecode{Reason: "expected integer major type"}
	}
}

func writeUint64(w io.Writer, v uint64) error {
	return cbg.WriteMajorTypeHeader(w, cbg.MajUnsignedInt, v)
}

func readUint64(br cbg.ByteReader, scratch []byte) (uint64, error) {
	maj, extra, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return 0, &apperr.CborDecode{Reason: err.Error()}
	}
	if maj != cbg.MajUnsignedInt {
		return 0, &apperr.CborDecode{Reason: "expected unsigned integer major type"}
	}
	return extra, nil
}

func readArrayHeader(br cbg.ByteReader, scratch []byte, wantLen int) error {
	maj, extra, err := cbg.CborReadHeaderBuf(br, scratch)
	if err != nil {
		return &apperr.CborDecode{Reason: err.Error()}
	}
	if maj != cbg.MajArray {
		return &apperr.CborDecode{Reason: "cbor input should be of type array"}
	}
	if wantLen >= 0 && int(extra) != wantLen {
		return &apperr.CborDecode{Reason: "cbor input had wrong number of fields"}
	}
	return nil
}
