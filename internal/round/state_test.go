package round

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CELtd/filplus-autocap/internal/bid"
)

func TestOpenCreatesFreshDocumentWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "round.json")

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), s.OpeningBlock())
	assert.Empty(t, s.Bids())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestAppendPersistsBeforeReturning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "round.json")
	s, err := Open(path)
	require.NoError(t, err)

	b := bid.Bid{Cid: "bafy1", From: "f1aaa", To: "f1bbb", ValueFil: 1.5, Block: 10}
	require.NoError(t, s.Append(b))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Len(t, reopened.Bids(), 1)
	assert.Equal(t, "bafy1", reopened.Bids()[0].Cid)
}

func TestResetClearsBidsAndAdvancesBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "round.json")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Append(bid.Bid{Cid: "bafy1"}))
	require.NoError(t, s.Reset(42))

	assert.Equal(t, uint64(42), s.OpeningBlock())
	assert.Empty(t, s.Bids())

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), reopened.OpeningBlock())
	assert.Empty(t, reopened.Bids())
}

func TestOpenRejectsMalformedExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "round.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestDocumentRoundTripsThroughJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "round.json")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(bid.Bid{Cid: "bafy1", ValueFil: 2.0, Block: 5}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc document
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Len(t, doc.Transactions, 1)
	assert.Equal(t, 2.0, doc.Transactions[0].ValueFil)
}
