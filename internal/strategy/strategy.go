// Package strategy holds the buy/refresh decisions. Everything here is a
// pure function of the config snapshot and the cycle's market data.
package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tootechautomation/dfmarketbot/internal/config"
)

const (
	// ProbeQuantity is bought in the ideal..max band to learn the real fill price.
	ProbeQuantity = 31
	BulkQuantity  = 200
	KeyQuantity   = 1

	// plausibleUnitPrice is the smallest balance-derived unit price trusted.
	plausibleUnitPrice = 100
)

// MarketData is the snapshot of one cycle. Zero balances mean unknown.
type MarketData struct {
	CurrentPrice    int       `json:"current_price"`
	Balance         int       `json:"balance,omitempty"`
	LastBalance     int       `json:"last_balance,omitempty"`
	LastBuyQuantity int       `json:"last_buy_quantity,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Profit          int       `json:"profit"`
	Count           int       `json:"count"`
}

// Strategy decides what to do with the price shown this cycle.
type Strategy interface {
	ShouldBuy(md MarketData) bool
	ShouldRefresh(md MarketData) bool
	BuyQuantity(md MarketData) int
}

var (
	_ Strategy = Hoarding{}
	_ Strategy = RefreshOnly{}
	_ Strategy = Rolling{}
)

// =========================
// Hoarding
// =========================

type Hoarding struct {
	cfg config.TradingConfig
}

func NewHoarding(cfg config.TradingConfig) Hoarding { return Hoarding{cfg: cfg} }

// UnitPrice derives the price paid per unit from the balance drop of the
// previous buy. It is only calculable with balance tracking on, both
// balances known and different, and a previous buy quantity.
func (s Hoarding) UnitPrice(md MarketData) (decimal.Decimal, bool) {
	if !s.cfg.UseBalanceCalculation {
		return decimal.Zero, false
	}
	if md.LastBalance <= 0 || md.Balance <= 0 || md.LastBalance == md.Balance || md.LastBuyQuantity <= 0 {
		return decimal.Zero, false
	}
	spent := decimal.NewFromInt(int64(md.LastBalance - md.Balance))
	return spent.Div(decimal.NewFromInt(int64(md.LastBuyQuantity))), true
}

func (s Hoarding) plausibleUnitPrice(md MarketData) (decimal.Decimal, bool) {
	unit, ok := s.UnitPrice(md)
	if !ok || !unit.GreaterThan(decimal.NewFromInt(plausibleUnitPrice)) {
		return decimal.Zero, false
	}
	return unit, true
}

func (s Hoarding) ShouldBuy(md MarketData) bool {
	if unit, ok := s.plausibleUnitPrice(md); ok {
		return unit.LessThanOrEqual(decimal.NewFromInt(int64(s.cfg.MaxPrice)))
	}
	return md.CurrentPrice <= s.cfg.MaxPrice
}

func (s Hoarding) ShouldRefresh(md MarketData) bool {
	return md.CurrentPrice > s.cfg.MaxPrice
}

// BuyQuantity is 1 in key mode, otherwise 200 at or below the ideal price,
// a 31 unit probe up to the max price and nothing above it.
func (s Hoarding) BuyQuantity(md MarketData) int {
	if s.cfg.KeyMode {
		return KeyQuantity
	}
	ideal := decimal.NewFromInt(int64(s.cfg.IdealPrice))
	maxPrice := decimal.NewFromInt(int64(s.cfg.MaxPrice))
	price, ok := s.plausibleUnitPrice(md)
	if !ok {
		price = decimal.NewFromInt(int64(md.CurrentPrice))
	}
	switch {
	case price.GreaterThan(maxPrice):
		return 0
	case price.GreaterThan(ideal):
		return ProbeQuantity
	default:
		return BulkQuantity
	}
}

// =========================
// Refresh only
// =========================

// RefreshOnly flags the band worth a probe buy but not a full one.
type RefreshOnly struct {
	cfg config.TradingConfig
}

func NewRefreshOnly(cfg config.TradingConfig) RefreshOnly { return RefreshOnly{cfg: cfg} }

func (RefreshOnly) ShouldBuy(MarketData) bool { return false }

func (s RefreshOnly) ShouldRefresh(md MarketData) bool {
	return s.cfg.IdealPrice < md.CurrentPrice && md.CurrentPrice <= s.cfg.MaxPrice
}

func (RefreshOnly) BuyQuantity(MarketData) int { return ProbeQuantity }

// =========================
// Rolling
// =========================

type Rolling struct {
	cfg config.TradingConfig
}

func NewRolling(cfg config.TradingConfig) Rolling { return Rolling{cfg: cfg} }

// ShouldBuy is true inside (floor, target] of the selected option.
func (s Rolling) ShouldBuy(md MarketData) bool {
	opt, ok := s.cfg.SelectedOption()
	if !ok {
		return false
	}
	return opt.FloorPrice() < md.CurrentPrice && md.CurrentPrice <= opt.TargetPrice()
}

func (s Rolling) ShouldRefresh(md MarketData) bool {
	opt, ok := s.cfg.SelectedOption()
	if !ok {
		return false
	}
	return md.CurrentPrice > opt.TargetPrice()
}

func (s Rolling) BuyQuantity(MarketData) int {
	opt, ok := s.cfg.SelectedOption()
	if !ok {
		return 0
	}
	return opt.BuyCount
}
