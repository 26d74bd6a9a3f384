package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/layout"
	"github.com/tootechautomation/dfmarketbot/internal/ledger"
	"github.com/tootechautomation/dfmarketbot/internal/strategy"
)

const (
	// hoardingPriceFloor guards against a half-rendered price label.
	hoardingPriceFloor = 100
	maxFailedBuys      = 10
)

// Hoarding repeatedly buys one item from its market detail view.
type Hoarding struct {
	det   HoardingDetector
	deps  Deps
	pacer *Pacer
	log   zerolog.Logger

	itemPos         layout.Point
	lastBalance     int
	currentBalance  int
	lastBuyQuantity int
	failedBuys      int
	cycle           int

	mu     sync.Mutex
	market strategy.MarketData
}

func NewHoarding(det HoardingDetector, deps Deps) *Hoarding {
	deps.fill()
	return &Hoarding{
		det:   det,
		deps:  deps,
		pacer: NewPacer(config.ModeHoarding, deps.Sleep),
		log:   log.With().Str("component", "hoarding").Logger(),
	}
}

// Prepare remembers the mouse position as the item to reopen, samples the
// balance and opens the item.
func (h *Hoarding) Prepare(ctx context.Context, cfg *config.Config) error {
	h.pacer.Use(cfg.Delays)
	h.itemPos = h.deps.Executor.MousePosition()
	bal, err := h.detectBalance()
	if err != nil {
		if cfg.Trading.UseBalanceCalculation {
			return fmt.Errorf("hoarding prepare: %w", err)
		}
		h.log.Warn().Err(err).Msg("starting balance unreadable")
	}
	h.currentBalance = bal
	h.setMarket(strategy.MarketData{Balance: bal, Timestamp: time.Now()})
	h.log.Info().Int("x", h.itemPos.X).Int("y", h.itemPos.Y).Int("balance", bal).Msg("hoarding prepared")
	h.enter()
	h.pacer.Sleep("enter_action")
	return nil
}

func (h *Hoarding) ExecuteCycle(ctx context.Context, cfg *config.Config) (bool, error) {
	h.pacer.Use(cfg.Delays)
	h.cycle++
	if h.stopping(ctx) {
		h.log.Info().Msg("stop requested, leaving cycle")
		return false, nil
	}

	ok, err := h.run(ctx, cfg.Trading)
	if err == nil || IsHardStop(err) {
		return ok, err
	}
	if priceUnreadable(err) {
		h.log.Warn().Err(err).Msg("price unreadable, refreshing")
		h.refresh()
	}
	h.enter()
	return true, &CycleError{Mode: config.ModeHoarding, Cycle: h.cycle, Err: err}
}

func (h *Hoarding) run(ctx context.Context, tc config.TradingConfig) (bool, error) {
	h.enter()
	price, err := h.det.DetectPrice(tc.Convertible())
	if err != nil {
		return false, err
	}
	if price < hoardingPriceFloor {
		h.report(fmt.Sprintf("price %d looks wrong, skipping", price))
		return !h.stopping(ctx), nil
	}
	h.report(fmt.Sprintf("price %d", price))

	if tc.UseBalanceCalculation && h.lastBuyQuantity != 0 {
		bal, err := h.detectBalance()
		if err != nil {
			return false, err
		}
		h.currentBalance = bal
	}

	md := strategy.MarketData{
		CurrentPrice:    price,
		Balance:         h.currentBalance,
		LastBalance:     h.lastBalance,
		LastBuyQuantity: h.lastBuyQuantity,
		Timestamp:       time.Now(),
	}
	h.setMarket(md)

	if tc.UseBalanceCalculation && h.lastBuyQuantity != 0 && h.lastBalance == h.currentBalance {
		h.failedBuys++
		h.log.Warn().Int("failed", h.failedBuys).Int("balance", h.currentBalance).Msg("last buy did not change the balance")
	} else {
		h.failedBuys = 0
	}
	if h.failedBuys >= maxFailedBuys {
		h.report(fmt.Sprintf("%d failed buys in a row, inventory is probably full", h.failedBuys))
		return false, ErrInventoryFull
	}

	buy := strategy.NewHoarding(tc)
	probe := strategy.NewRefreshOnly(tc)
	switch {
	case buy.ShouldBuy(md):
		qty := buy.BuyQuantity(md)
		if unit, ok := buy.UnitPrice(md); ok {
			h.log.Info().Str("unit_price", unit.StringFixed(1)).Msg("last fill")
		}
		h.report(fmt.Sprintf("buying %d at %d", qty, price))
		h.buy(ctx, tc, price, qty)
		h.lastBuyQuantity = qty
		if tc.KeyMode {
			h.report("key bought, stopping")
			return false, nil
		}
	case probe.ShouldRefresh(md):
		qty := buy.BuyQuantity(md)
		h.report(fmt.Sprintf("refresh buy %d at %d", qty, price))
		h.buy(ctx, tc, price, qty)
		h.lastBuyQuantity = probe.BuyQuantity(md)
	case buy.ShouldRefresh(md):
		h.log.Debug().Int("price", price).Int("max", tc.MaxPrice).Msg("refresh")
		h.refresh()
		h.lastBuyQuantity = 0
	}

	if tc.UseBalanceCalculation {
		h.lastBalance = h.currentBalance
	}
	return !h.stopping(ctx), nil
}

func (h *Hoarding) buy(ctx context.Context, tc config.TradingConfig, price, qty int) {
	if qty == 0 {
		return
	}
	m := h.deps.Layout.Market
	convertible := tc.Convertible()
	if !tc.KeyMode {
		h.deps.Executor.Click(m.QuantityButton(convertible, qty != strategy.ProbeQuantity))
	}
	h.deps.Executor.Click(m.BuyButton(convertible))
	h.log.Info().Int("quantity", qty).Int("price", price).Msg("buy")

	total := price * qty
	err := h.deps.Journal.Record(ctx, ledger.Trade{Kind: ledger.KindBuy, UnitPrice: price, Count: qty, Total: total, Cost: total})
	if err != nil {
		h.log.Warn().Err(err).Msg("journal buy")
	}
}

// refresh closes the detail view; the next cycle reopens the item.
func (h *Hoarding) refresh() {
	if err := h.deps.Executor.KeyTap("esc"); err != nil {
		h.log.Warn().Err(err).Msg("refresh key")
	}
	h.pacer.Sleep("refresh_operation")
}

func (h *Hoarding) enter() {
	h.deps.Executor.Click(h.itemPos)
}

func (h *Hoarding) detectBalance() (int, error) {
	h.deps.Executor.Move(h.deps.Layout.Balance.Hover)
	h.pacer.Sleep("balance_detection")
	return h.det.DetectBalance()
}

func (h *Hoarding) stopping(ctx context.Context) bool {
	return ctx.Err() != nil || h.deps.Stopper.Stopping()
}

func (h *Hoarding) setMarket(md strategy.MarketData) {
	h.mu.Lock()
	h.market = md
	h.mu.Unlock()
}

func (h *Hoarding) MarketData() strategy.MarketData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.market
}

func (h *Hoarding) report(text string) {
	h.log.Info().Msg(text)
	h.deps.Reporter.Report(Status{Text: text, Market: h.MarketData()})
}
