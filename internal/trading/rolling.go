package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/ledger"
	"github.com/tootechautomation/dfmarketbot/internal/strategy"
)

// Rolling buys a loadout inside a price band, sells its contents through
// the stash and collects the proceeds from the mail.
type Rolling struct {
	det   RollingDetector
	procs ProcessChecker
	deps  Deps
	pacer *Pacer
	log   zerolog.Logger

	// per-snapshot settings
	priceRetries int
	crashAfter   int

	lastBalance int
	profit      int
	count       int
	loop        int
	buyFailed   int
	buySuccess  int
	failCount   int

	mu     sync.Mutex
	market strategy.MarketData
}

// NewRolling builds the mode. procs may be nil to skip crash detection.
func NewRolling(det RollingDetector, procs ProcessChecker, deps Deps) *Rolling {
	deps.fill()
	return &Rolling{
		det:   det,
		procs: procs,
		deps:  deps,
		pacer: NewPacer(config.ModeRolling, deps.Sleep),
		log:   log.With().Str("component", "rolling").Logger(),
	}
}

func (r *Rolling) use(cfg *config.Config) {
	r.pacer.Use(cfg.Delays)
	r.priceRetries = max(1, cfg.Detection.PriceRetries)
	r.crashAfter = cfg.Game.CrashCheckAfter
}

// Prepare samples the starting balance.
func (r *Rolling) Prepare(ctx context.Context, cfg *config.Config) error {
	r.use(cfg)
	bal, err := r.detectBalance()
	if err != nil {
		return fmt.Errorf("rolling prepare: %w", err)
	}
	r.lastBalance = bal
	r.setMarket(strategy.MarketData{Balance: bal, Timestamp: time.Now()})
	r.report(fmt.Sprintf("ready, balance %d", bal))
	r.pacer.Sleep("initialization")
	return nil
}

func (r *Rolling) ExecuteCycle(ctx context.Context, cfg *config.Config) (bool, error) {
	r.use(cfg)
	if r.stopping(ctx) {
		r.log.Info().Msg("stop requested, leaving cycle")
		return false, nil
	}
	tc := cfg.Trading
	opt, ok := tc.SelectedOption()
	if !ok {
		r.log.Error().Int("option", tc.RollingOption).Int("options", len(tc.RollingOptions)).Msg("rolling option out of range")
		return false, nil
	}

	cont, err := r.run(ctx, tc, opt)
	if err == nil {
		r.failCount = 0
		return cont, nil
	}

	if priceUnreadable(err) {
		r.log.Warn().Err(err).Msg("price unreadable, refreshing")
		r.refresh()
	}
	r.recover()
	r.failCount++
	attempt := r.failCount
	if r.failCount > r.crashAfter {
		if r.gameGone(ctx) {
			r.report("game client is gone")
			return false, ErrGameNotRunning
		}
		// the client is alive; check again after another run of failures
		r.failCount = 0
	}
	return true, &CycleError{Mode: config.ModeRolling, Cycle: r.loop, Err: fmt.Errorf("attempt %d: %w", attempt, err)}
}

func (r *Rolling) run(ctx context.Context, tc config.TradingConfig, opt config.RollingOption) (bool, error) {
	if tc.SwitchToBattlefield && r.loop > 0 && r.loop%tc.SwitchToBattlefieldCount == 0 {
		r.pacer.Pause(time.Second)
		r.switchToBattlefield()
		r.pacer.Pause(500 * time.Millisecond)
	}
	r.loop++

	target, floor := opt.TargetPrice(), opt.FloorPrice()
	r.openLoadout(tc.RollingOption)

	price, err := r.readPrice(floor)
	if err != nil {
		return false, err
	}
	md := strategy.MarketData{CurrentPrice: price, Balance: r.lastBalance, Timestamp: time.Now()}
	r.setMarket(md)
	r.log.Info().Int("price", price).Int("unit", price/opt.BuyCount).Int("target", target).
		Int("floor", floor).Int("loop", r.loop).Msg("loadout price")
	r.report(fmt.Sprintf("price %d (%d each) target %d | profit %d sold %d | loop %d bought %d failed %d",
		price, price/opt.BuyCount, target, r.profit, r.count, r.loop, r.buySuccess, r.buyFailed))

	strat := strategy.NewRolling(tc)
	if !strat.ShouldBuy(md) {
		r.refresh()
		r.updateStats()
		return !r.stopping(ctx), nil
	}

	r.pacer.Sleep("before_buy")
	if tc.SecondDetect {
		r.pacer.Sleep("second_price_detection_retry")
		second, err := r.det.DetectPrice()
		if err != nil || !strat.ShouldBuy(strategy.MarketData{CurrentPrice: second}) {
			r.report(fmt.Sprintf("second read disagrees (%d, %d), skipping", price, second))
			r.refresh()
			r.updateStats()
			return !r.stopping(ctx), nil
		}
		r.report(fmt.Sprintf("second read confirms (%d, %d), buying", price, second))
	}
	r.deps.Executor.Click(r.deps.Layout.Loadout.BuyButton)

	r.pacer.Sleep("after_buy")
	if r.det.PurchaseFailed() {
		r.refresh()
		r.pacer.Sleep("after_check_purchase_failure")
		bal, err := r.detectBalance()
		if err != nil {
			return false, err
		}
		if bal == r.lastBalance {
			r.buyFailed++
			r.updateStats()
			r.report(fmt.Sprintf("purchase failed (%d so far)", r.buyFailed))
			r.pacer.Sleep("after_buy_failed")
			return true, nil
		}
		r.report("purchase flagged failed but balance moved, selling")
	}
	r.buySuccess++

	r.pacer.Sleep("after_buy_success")
	bal, err := r.detectBalance()
	if err != nil {
		return false, err
	}
	cost := r.lastBalance - bal
	r.profit -= cost
	r.updateStats()
	r.record(ctx, ledger.Trade{Kind: ledger.KindBuy, UnitPrice: price / opt.BuyCount, Count: opt.BuyCount,
		Total: price, Cost: cost, Profit: r.profit})
	r.report(fmt.Sprintf("bought for %d, profit %d", cost, r.profit))

	if r.stopping(ctx) || !tc.AutoSell {
		return false, nil
	}
	r.autoSell(ctx, tc, opt, cost)
	if r.stopping(ctx) {
		return false, nil
	}

	r.pacer.Sleep("before_get_mail")
	r.collectMail()
	r.pacer.Sleep("after_get_mail")
	r.refresh()
	r.pacer.Sleep("buy_success_refresh_final")
	bal, err = r.detectBalance()
	if err != nil {
		return false, err
	}
	r.lastBalance = bal
	r.updateStats()
	r.report(fmt.Sprintf("round done, balance %d, sold %d", bal, r.count))
	r.pacer.Sleep("after_get_mail_and_detect_balance")
	return !r.stopping(ctx), nil
}

// openLoadout opens the loadout screen on the selected option.
func (r *Rolling) openLoadout(option int) {
	if err := r.deps.Executor.KeyTap("l"); err != nil {
		r.log.Warn().Err(err).Msg("loadout key")
	}
	r.pacer.Sleep("before_option_switch")
	if opts := r.deps.Layout.Loadout.Options; option >= 0 && option < len(opts) {
		r.deps.Executor.Click(opts[option])
	}
	r.pacer.Sleep("after_option_switch")
}

// readPrice re-reads while the price is at or under the floor, which means
// the previous option is still on screen.
func (r *Rolling) readPrice(floor int) (int, error) {
	var price int
	for i := 1; i <= r.priceRetries; i++ {
		p, err := r.det.DetectPrice()
		if err != nil {
			return 0, err
		}
		price = p
		if price > floor {
			break
		}
		r.log.Debug().Int("price", price).Int("floor", floor).Int("try", i).Msg("price under floor, re-reading")
		r.pacer.Sleep("price_detection_retry")
	}
	return price, nil
}

func (r *Rolling) refresh() {
	if err := r.deps.Executor.KeyTap("esc"); err != nil {
		r.log.Warn().Err(err).Msg("refresh key")
	}
	r.pacer.Sleep("after_refresh")
}

func (r *Rolling) collectMail() {
	m := r.deps.Layout.Mail
	x := r.deps.Executor
	x.Click(m.MailButton)
	r.pacer.Sleep("after_mail_button_click")
	x.Click(m.TradeButton)
	r.pacer.Sleep("after_mail_trade_click")
	x.Click(m.GetButton)
	r.pacer.Sleep("after_mail_get_click")
	x.Click(m.GetButton)
	r.pacer.Sleep("after_confirm_mail_click")
	if err := x.KeyTap("esc"); err != nil {
		r.log.Warn().Err(err).Msg("close mail")
	}
}

func (r *Rolling) detectBalance() (int, error) {
	r.deps.Executor.Move(r.deps.Layout.Balance.Hover)
	r.pacer.Sleep("balance_detection")
	return r.det.DetectBalance()
}

func (r *Rolling) stopping(ctx context.Context) bool {
	return ctx.Err() != nil || r.deps.Stopper.Stopping()
}

func (r *Rolling) record(ctx context.Context, t ledger.Trade) {
	if err := r.deps.Journal.Record(ctx, t); err != nil {
		r.log.Warn().Err(err).Str("kind", string(t.Kind)).Msg("journal")
	}
}

func (r *Rolling) setMarket(md strategy.MarketData) {
	r.mu.Lock()
	md.Profit, md.Count = r.profit, r.count
	r.market = md
	r.mu.Unlock()
}

func (r *Rolling) updateStats() {
	r.mu.Lock()
	r.market.Profit, r.market.Count = r.profit, r.count
	r.mu.Unlock()
}

func (r *Rolling) MarketData() strategy.MarketData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.market
}

func (r *Rolling) report(text string) {
	r.log.Info().Msg(text)
	r.deps.Reporter.Report(Status{Text: text, Market: r.MarketData()})
}
