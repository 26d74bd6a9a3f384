package trading

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/detector"
	"github.com/tootechautomation/dfmarketbot/internal/ledger"
	"github.com/tootechautomation/dfmarketbot/internal/strategy"
)

type mockHoardingDetector struct{ mock.Mock }

func (m *mockHoardingDetector) DetectPrice(convertible bool) (int, error) {
	args := m.Called(convertible)
	return args.Int(0), args.Error(1)
}

func (m *mockHoardingDetector) DetectBalance() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

func hoardingConfig() *config.Config {
	return &config.Config{
		Trading: config.TradingConfig{
			Mode:       config.ModeHoarding,
			IdealPrice: 1000,
			MaxPrice:   2000,
			ItemType:   config.ItemConvertible,
		},
		Delays: config.DefaultDelays(),
	}
}

func newTestHoarding(t *testing.T, h *harness, cfg *config.Config) (*Hoarding, *mockHoardingDetector) {
	t.Helper()
	det := &mockHoardingDetector{}
	det.On("DetectBalance").Return(5_000_000, nil).Maybe()
	m := NewHoarding(det, h.deps())
	require.NoError(t, m.Prepare(context.Background(), cfg))
	return m, det
}

func TestHoardingPrepare(t *testing.T) {
	h := newHarness()
	m, _ := newTestHoarding(t, h, hoardingConfig())

	assert.Equal(t, h.rec.pos, m.itemPos)
	assert.Equal(t, 5_000_000, m.currentBalance)
	assert.Equal(t, []string{moved(h.layout.Balance.Hover), clicked(h.rec.pos)}, h.rec.actions)
}

func TestHoardingPrepareBalanceRequired(t *testing.T) {
	h := newHarness()
	cfg := hoardingConfig()
	cfg.Trading.UseBalanceCalculation = true
	det := &mockHoardingDetector{}
	det.On("DetectBalance").Return(0, errors.New("unreadable"))

	err := NewHoarding(det, h.deps()).Prepare(context.Background(), cfg)
	assert.ErrorContains(t, err, "hoarding prepare")
}

func TestHoardingBulkBuy(t *testing.T) {
	h := newHarness()
	cfg := hoardingConfig()
	m, det := newTestHoarding(t, h, cfg)
	det.On("DetectPrice", true).Return(900, nil)

	cont, err := m.ExecuteCycle(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, cont)

	mk := h.layout.Market
	assert.Equal(t, 1, h.rec.count(clicked(mk.ConvertibleMax)))
	assert.Equal(t, 1, h.rec.count(clicked(mk.ConvertibleBuy)))
	require.Len(t, h.journal.trades, 1)
	assert.Equal(t, ledger.Trade{Kind: ledger.KindBuy, UnitPrice: 900, Count: 200, Total: 180_000, Cost: 180_000}, h.journal.trades[0])
	assert.Equal(t, 900, m.MarketData().CurrentPrice)
	assert.Equal(t, strategy.BulkQuantity, m.lastBuyQuantity)
}

func TestHoardingProbeBuy(t *testing.T) {
	h := newHarness()
	cfg := hoardingConfig()
	m, det := newTestHoarding(t, h, cfg)
	det.On("DetectPrice", true).Return(1500, nil)

	cont, err := m.ExecuteCycle(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, cont)

	mk := h.layout.Market
	assert.Equal(t, 1, h.rec.count(clicked(mk.ConvertibleMin)))
	assert.Equal(t, 0, h.rec.count(clicked(mk.ConvertibleMax)))
	assert.Equal(t, 1, h.rec.count(clicked(mk.ConvertibleBuy)))
	assert.Equal(t, strategy.ProbeQuantity, m.lastBuyQuantity)
}

func TestHoardingRefresh(t *testing.T) {
	h := newHarness()
	cfg := hoardingConfig()
	m, det := newTestHoarding(t, h, cfg)
	det.On("DetectPrice", true).Return(2500, nil)

	cont, err := m.ExecuteCycle(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, cont)
	assert.Equal(t, 1, h.rec.count("key esc"))
	assert.Equal(t, 0, h.rec.count(clicked(h.layout.Market.ConvertibleBuy)))
	assert.Empty(t, h.journal.trades)
}

func TestHoardingKeyMode(t *testing.T) {
	h := newHarness()
	cfg := hoardingConfig()
	cfg.Trading.KeyMode = true
	cfg.Trading.ItemType = config.ItemNonConvertible
	m, det := newTestHoarding(t, h, cfg)
	det.On("DetectPrice", false).Return(1800, nil)

	cont, err := m.ExecuteCycle(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, cont)

	mk := h.layout.Market
	assert.Equal(t, 0, h.rec.count(clicked(mk.NonConvertibleMax)))
	assert.Equal(t, 0, h.rec.count(clicked(mk.NonConvertibleMin)))
	assert.Equal(t, 1, h.rec.count(clicked(mk.NonConvertibleBuy)))
	require.Len(t, h.journal.trades, 1)
	assert.Equal(t, strategy.KeyQuantity, h.journal.trades[0].Count)
}

func TestHoardingImplausiblePrice(t *testing.T) {
	h := newHarness()
	cfg := hoardingConfig()
	m, det := newTestHoarding(t, h, cfg)
	det.On("DetectPrice", true).Return(42, nil)

	cont, err := m.ExecuteCycle(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, cont)
	assert.Empty(t, h.journal.trades)
}

func TestHoardingDetectionFailure(t *testing.T) {
	h := newHarness()
	cfg := hoardingConfig()
	m, det := newTestHoarding(t, h, cfg)
	det.On("DetectPrice", true).Return(0, errors.New("no digits"))

	cont, err := m.ExecuteCycle(context.Background(), cfg)
	assert.True(t, cont)
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, config.ModeHoarding, ce.Mode)
	assert.Equal(t, 1, ce.Cycle)
	// one enter for the cycle and one to reopen the item
	assert.Equal(t, 3, h.rec.count(clicked(h.rec.pos)))
}

func TestHoardingUnreadablePriceRefreshes(t *testing.T) {
	h := newHarness()
	cfg := hoardingConfig()
	m, det := newTestHoarding(t, h, cfg)
	det.On("DetectPrice", true).Return(0, &detector.DetectionError{Kind: detector.KindNotFound, Value: "price", Attempts: 30})

	cont, err := m.ExecuteCycle(context.Background(), cfg)
	assert.True(t, cont)
	assert.ErrorIs(t, err, detector.ErrPriceDetection)

	n := len(h.rec.actions)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, []string{"key esc", clicked(h.rec.pos)}, h.rec.actions[n-2:])
	assert.Equal(t, 1, h.rec.count("key esc"))
}

func TestHoardingCaptureFailureDoesNotRefresh(t *testing.T) {
	h := newHarness()
	cfg := hoardingConfig()
	m, det := newTestHoarding(t, h, cfg)
	det.On("DetectPrice", true).Return(0, &detector.DetectionError{Kind: detector.KindCapture, Value: "price", Attempts: 30})

	_, err := m.ExecuteCycle(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, 0, h.rec.count("key esc"))
}

func TestHoardingSessionSummary(t *testing.T) {
	ctx := context.Background()
	j, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	id, err := j.StartSession(ctx, "hoarding", 5_000_000)
	require.NoError(t, err)

	h := newHarness()
	deps := h.deps()
	deps.Journal = j
	cfg := hoardingConfig()
	det := &mockHoardingDetector{}
	det.On("DetectBalance").Return(5_000_000, nil).Maybe()
	det.On("DetectPrice", true).Return(900, nil)
	m := NewHoarding(det, deps)
	require.NoError(t, m.Prepare(ctx, cfg))

	for i := 0; i < 3; i++ {
		_, err := m.ExecuteCycle(ctx, cfg)
		require.NoError(t, err)
	}

	s, err := j.Summary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Buys)
	assert.Equal(t, 600, s.Bought)
	assert.Equal(t, 540_000, s.Spent)
	assert.Equal(t, -540_000, s.Profit)
	assert.True(t, s.AvgBuyPrice.Equal(decimal.NewFromInt(900)), s.AvgBuyPrice.String())
}

func TestHoardingInventoryFull(t *testing.T) {
	h := newHarness()
	cfg := hoardingConfig()
	cfg.Trading.UseBalanceCalculation = true
	m, det := newTestHoarding(t, h, cfg)
	det.On("DetectPrice", true).Return(900, nil)

	// the first buy has nothing to compare against, the next ten leave the
	// balance unchanged
	for i := 1; i <= maxFailedBuys; i++ {
		cont, err := m.ExecuteCycle(context.Background(), cfg)
		require.NoError(t, err, "cycle %d", i)
		require.True(t, cont, "cycle %d", i)
	}
	assert.Equal(t, maxFailedBuys-1, m.failedBuys)

	cont, err := m.ExecuteCycle(context.Background(), cfg)
	assert.False(t, cont)
	assert.ErrorIs(t, err, ErrInventoryFull)
	assert.True(t, IsHardStop(err))
}

func TestHoardingStopRequested(t *testing.T) {
	h := newHarness()
	cfg := hoardingConfig()
	m, det := newTestHoarding(t, h, cfg)
	h.stop.stop.Store(true)

	cont, err := m.ExecuteCycle(context.Background(), cfg)
	assert.NoError(t, err)
	assert.False(t, cont)
	det.AssertNotCalled(t, "DetectPrice", true)
}
