package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordWithoutSession(t *testing.T) {
	j := newTestJournal(t)
	err := j.Record(context.Background(), Trade{Kind: KindBuy})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionSummary(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)

	id, err := j.StartSession(ctx, "rolling", 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, id, j.Session())

	require.NoError(t, j.Record(ctx, Trade{Kind: KindBuy, UnitPrice: 520, Count: 4980, Total: 2_589_600, Cost: 2_589_600}))
	require.NoError(t, j.Record(ctx, Trade{Kind: KindSell, UnitPrice: 600, Count: 1000, Total: 600_000, ExpectedRevenue: 570_000}))
	require.NoError(t, j.Record(ctx, Trade{Kind: KindSell, UnitPrice: 590, Count: 2000, Total: 1_180_000, ExpectedRevenue: 1_121_000}))
	require.NoError(t, j.Record(ctx, Trade{Kind: KindRound, Count: 3000, Profit: -898_600}))

	s, err := j.Summary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "rolling", s.Mode)
	assert.Equal(t, 1, s.Buys)
	assert.Equal(t, 2, s.Sells)
	assert.Equal(t, 4980, s.Bought)
	assert.Equal(t, 3000, s.Sold)
	assert.Equal(t, 2_589_600, s.Spent)
	assert.Equal(t, 1_691_000, s.Revenue)
	assert.Equal(t, -898_600, s.Profit)
	assert.True(t, s.AvgBuyPrice.Equal(decimal.NewFromFloat(863.2)), s.AvgBuyPrice.String())

	trades, err := j.Trades(ctx, id)
	require.NoError(t, err)
	require.Len(t, trades, 4)
	assert.Equal(t, KindRound, trades[3].Kind)
	assert.False(t, trades[0].At.IsZero())
}

func TestSummaryAveragesOverBoughtUnitsBeforeAnySale(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)
	id, err := j.StartSession(ctx, "hoarding", 1_000_000)
	require.NoError(t, err)

	require.NoError(t, j.Record(ctx, Trade{Kind: KindBuy, UnitPrice: 900, Count: 200, Total: 180_000, Cost: 180_000}))
	require.NoError(t, j.Record(ctx, Trade{Kind: KindBuy, UnitPrice: 1500, Count: 31, Total: 46_500, Cost: 46_500}))

	s, err := j.Summary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 231, s.Bought)
	assert.Zero(t, s.Sold)
	assert.Equal(t, 226_500, s.Spent)
	assert.Equal(t, -226_500, s.Profit)
	assert.True(t, s.AvgBuyPrice.Equal(decimal.RequireFromString("980.52")), s.AvgBuyPrice.String())
}

func TestEndSession(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)
	_, err := j.StartSession(ctx, "hoarding", 0)
	require.NoError(t, err)

	require.NoError(t, j.EndSession(ctx))
	assert.Empty(t, j.Session())
	assert.ErrorIs(t, j.Record(ctx, Trade{Kind: KindBuy}), ErrNoSession)
	require.NoError(t, j.EndSession(ctx))
}

func TestSummaryUnknownSession(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.Summary(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestEmptySessionSummary(t *testing.T) {
	ctx := context.Background()
	j := newTestJournal(t)
	id, err := j.StartSession(ctx, "hoarding", 5)
	require.NoError(t, err)

	s, err := j.Summary(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, s.Buys)
	assert.True(t, s.AvgBuyPrice.IsZero())
}
