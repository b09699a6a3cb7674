package tradelog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVSinkWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")

	sink, err := NewCSVSink(path)
	require.NoError(t, err)

	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	require.NoError(t, sink.Record(Entry{
		Timestamp: ts,
		Action:    ActionBuy,
		Wallet:    "wallet1",
		Token:     "token1",
		AmountSOL: 0.05,
	}))
	require.NoError(t, sink.Record(Entry{
		Timestamp: ts,
		Action:    ActionSkip,
		Wallet:    "wallet1",
		Token:     "token2",
		AmountSOL: 0.01,
		Reason:    "Below minimum trade size",
	}))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Timestamp", "Action", "Wallet", "Token", "Amount (SOL)", "Reason"}, rows[0])
	assert.Equal(t, []string{"2025-03-14 09:26:53", "BUY", "wallet1", "token1", "0.05", ""}, rows[1])
	assert.Equal(t, "Below minimum trade size", rows[2][5])
}

func TestCSVSinkAppendsWithoutDuplicateHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")

	sink, err := NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Record(Entry{Timestamp: time.Now(), Action: ActionBuy, Wallet: "w", Token: "t", AmountSOL: 1}))
	require.NoError(t, sink.Close())

	// Reopen: the existing file keeps its single header.
	sink, err = NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Record(Entry{Timestamp: time.Now(), Action: ActionSell, Wallet: "w", Token: "t", AmountSOL: 1.2}))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, "Timestamp", rows[0][0])
	assert.Equal(t, "BUY", rows[1][1])
	assert.Equal(t, "SELL", rows[2][1])
}

type recordingSink struct {
	entries []Entry
	closed  bool
}

func (r *recordingSink) Record(e Entry) error { r.entries = append(r.entries, e); return nil }
func (r *recordingSink) Close() error         { r.closed = true; return nil }

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := MultiSink{a, b}

	require.NoError(t, m.Record(Entry{Action: ActionBuy}))
	require.NoError(t, m.Close())

	assert.Len(t, a.entries, 1)
	assert.Len(t, b.entries, 1)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
