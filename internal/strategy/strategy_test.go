package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tootechautomation/dfmarketbot/internal/config"
)

func hoardingConfig() config.TradingConfig {
	return config.TradingConfig{Mode: config.ModeHoarding, IdealPrice: 1000, MaxPrice: 2000}
}

func TestHoardingBands(t *testing.T) {
	tests := []struct {
		price    int
		buy      bool
		refresh  bool
		probe    bool
		quantity int
	}{
		{999, true, false, false, 200},
		{1000, true, false, false, 200},
		{1500, true, false, true, 31},
		{2000, true, false, true, 31},
		{2001, false, true, false, 0},
	}
	s := NewHoarding(hoardingConfig())
	r := NewRefreshOnly(hoardingConfig())
	for _, tt := range tests {
		md := MarketData{CurrentPrice: tt.price}
		assert.Equal(t, tt.buy, s.ShouldBuy(md), "buy at %d", tt.price)
		assert.Equal(t, tt.refresh, s.ShouldRefresh(md), "refresh at %d", tt.price)
		assert.Equal(t, tt.probe, r.ShouldRefresh(md), "probe band at %d", tt.price)
		assert.Equal(t, tt.quantity, s.BuyQuantity(md), "quantity at %d", tt.price)
	}
}

func TestHoardingKeyMode(t *testing.T) {
	cfg := hoardingConfig()
	cfg.KeyMode = true
	assert.Equal(t, 1, NewHoarding(cfg).BuyQuantity(MarketData{CurrentPrice: 1500}))
}

func TestHoardingUnitPrice(t *testing.T) {
	cfg := hoardingConfig()
	cfg.UseBalanceCalculation = true
	s := NewHoarding(cfg)

	unit, ok := s.UnitPrice(MarketData{LastBalance: 1_000_000, Balance: 938_000, LastBuyQuantity: 31})
	require.True(t, ok)
	assert.True(t, unit.Equal(decimal.NewFromInt(2000)))

	for _, md := range []MarketData{
		{LastBalance: 0, Balance: 938_000, LastBuyQuantity: 31},
		{LastBalance: 1_000_000, Balance: 1_000_000, LastBuyQuantity: 31},
		{LastBalance: 1_000_000, Balance: 938_000, LastBuyQuantity: 0},
	} {
		_, ok := s.UnitPrice(md)
		assert.False(t, ok, "%+v", md)
	}

	_, ok = NewHoarding(hoardingConfig()).UnitPrice(MarketData{LastBalance: 10, Balance: 5, LastBuyQuantity: 1})
	assert.False(t, ok)
}

func TestHoardingPrefersUnitPrice(t *testing.T) {
	cfg := hoardingConfig()
	cfg.UseBalanceCalculation = true
	s := NewHoarding(cfg)

	// listed cheap but the last fill was 2500 a unit
	md := MarketData{CurrentPrice: 900, LastBalance: 1_000_000, Balance: 922_500, LastBuyQuantity: 31}
	assert.False(t, s.ShouldBuy(md))
	assert.Equal(t, 0, s.BuyQuantity(md))

	// fill of 900 a unit
	md = MarketData{CurrentPrice: 2500, LastBalance: 1_000_000, Balance: 820_000, LastBuyQuantity: 200}
	assert.True(t, s.ShouldBuy(md))
	assert.Equal(t, 200, s.BuyQuantity(md))

	md = MarketData{CurrentPrice: 2500, LastBalance: 1_000_000, Balance: 953_500, LastBuyQuantity: 31}
	assert.True(t, s.ShouldBuy(md))
	assert.Equal(t, 31, s.BuyQuantity(md))
}

func TestHoardingImplausibleUnitPriceFallsBack(t *testing.T) {
	cfg := hoardingConfig()
	cfg.UseBalanceCalculation = true
	s := NewHoarding(cfg)

	// 100 a unit is not above the plausibility floor
	md := MarketData{CurrentPrice: 1500, LastBalance: 10_000, Balance: 6_900, LastBuyQuantity: 31}
	assert.True(t, s.ShouldBuy(md))
	assert.Equal(t, 31, s.BuyQuantity(md))
}

func TestRollingBands(t *testing.T) {
	cfg := config.TradingConfig{
		Mode:           config.ModeRolling,
		RollingOptions: []config.RollingOption{{BuyPrice: 520, MinBuyPrice: 300, BuyCount: 4980}},
	}
	s := NewRolling(cfg)
	tests := []struct {
		price   int
		buy     bool
		refresh bool
	}{
		{1_494_000, false, false},
		{1_494_001, true, false},
		{2_589_600, true, false},
		{2_589_601, false, true},
	}
	for _, tt := range tests {
		md := MarketData{CurrentPrice: tt.price}
		assert.Equal(t, tt.buy, s.ShouldBuy(md), "buy at %d", tt.price)
		assert.Equal(t, tt.refresh, s.ShouldRefresh(md), "refresh at %d", tt.price)
	}
	assert.Equal(t, 4980, s.BuyQuantity(MarketData{}))
}

func TestRollingInvalidOption(t *testing.T) {
	cfg := config.TradingConfig{Mode: config.ModeRolling, RollingOption: 3,
		RollingOptions: []config.RollingOption{{BuyPrice: 520, MinBuyPrice: 300, BuyCount: 4980}}}
	s := NewRolling(cfg)
	md := MarketData{CurrentPrice: 2_000_000}
	assert.False(t, s.ShouldBuy(md))
	assert.False(t, s.ShouldRefresh(md))
	assert.Equal(t, 0, s.BuyQuantity(md))
}
