// Package bid defines the immutable record produced by ingestion for each
// accepted bid message.
package bid

import (
	"github.com/CELtd/filplus-autocap/internal/codec"
)

// Bid is immutable after insertion into a Round. It is created on ingestion
// and destroyed when the round it belongs to resets.
type Bid struct {
	Cid      string         `json:"cid"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	ValueFil float64        `json:"value_fil"`
	Block    uint64         `json:"block_number"`
	Metadata codec.Metadata `json:"metadata"`
}
