package trading

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/layout"
	"github.com/tootechautomation/dfmarketbot/internal/ledger"
)

// sellRatios are the share of the remaining stock listed per stage.
var sellRatios = []float64{0.33, 0.5, 1.0}

const (
	maxStageRetries    = 3
	sellWindowAttempts = 10
)

type sellResult struct {
	Price   int
	Count   int
	Total   int
	Revenue int
}

func (r *Rolling) autoSell(ctx context.Context, tc config.TradingConfig, opt config.RollingOption, cost int) {
	r.enterStorage()
	results := r.sellStages(ctx, tc, opt)
	r.closeRound(ctx, results, cost)
}

func (r *Rolling) enterStorage() {
	s := r.deps.Layout.Storage
	r.deps.Executor.Click(s.EnterStorage)
	r.pacer.Sleep("after_enter_storage")
	r.deps.Executor.Click(s.TransferAll)
	r.pacer.Sleep("after_transfer_all")
}

// sellStages lists the stock in three growing slices. A stage that fails
// is retried a bounded number of times; an empty stash ends the pipeline.
func (r *Rolling) sellStages(ctx context.Context, tc config.TradingConfig, opt config.RollingOption) []sellResult {
	var (
		results []sellResult
		retries int
	)
	for stage := 0; stage < len(sellRatios); {
		if r.stopping(ctx) {
			r.report(fmt.Sprintf("stop requested before sell stage %d", stage+1))
			break
		}
		res, err := r.sellOnce(ctx, tc, opt, stage)
		if err != nil {
			if errors.Is(err, errStopped) {
				break
			}
			r.pacer.Sleep("sell_retry")
			if errors.Is(err, ErrNoSellableItem) {
				r.log.Info().Int("stage", stage+1).Msg("stash empty")
				break
			}
			retries++
			r.log.Warn().Err(err).Int("stage", stage+1).Int("retry", retries).Msg("sell stage failed")
			if retries > maxStageRetries {
				r.report(fmt.Sprintf("sell stage %d failed %d times, giving up", stage+1, retries))
				break
			}
			continue
		}
		r.profit += res.Revenue
		r.count += res.Count
		r.updateStats()
		results = append(results, res)
		stage++
		retries = 0
	}
	return results
}

func (r *Rolling) sellOnce(ctx context.Context, tc config.TradingConfig, opt config.RollingOption, stage int) (sellResult, error) {
	if r.stopping(ctx) {
		return sellResult{}, errStopped
	}
	item, ok := r.det.SellableItem()
	if !ok {
		return sellResult{}, ErrNoSellableItem
	}
	if err := r.openSellWindow(ctx, item); err != nil {
		return sellResult{}, err
	}
	price, err := r.setSellPrice(ctx, tc, opt, sellRatios[stage])
	if err != nil {
		return sellResult{}, err
	}
	return r.confirmSell(ctx, stage, price)
}

// openSellWindow opens the listing dialog for item. The game sometimes
// swallows the shortcut; leaving and re-entering the stash clears it.
func (r *Rolling) openSellWindow(ctx context.Context, item layout.Point) error {
	x := r.deps.Executor
	for attempt := 1; attempt <= sellWindowAttempts; attempt++ {
		if r.stopping(ctx) {
			return errStopped
		}
		x.Move(item)
		r.pacer.Sleep("after_move_to_sell_item")
		if err := x.Combo("alt", "d"); err != nil {
			r.log.Warn().Err(err).Msg("sell shortcut")
		}
		r.pacer.Sleep("sell_window_wait")
		if r.det.SellWindowReady() {
			x.Click(r.deps.Layout.Storage.SellButton)
			r.pacer.Sleep("after_sell_button_click")
			return nil
		}
		r.report(fmt.Sprintf("sell window stuck, clearing (%d/%d)", attempt, sellWindowAttempts))
		r.resolveSellStuck()
	}
	return ErrSellWindowStuck
}

func (r *Rolling) resolveSellStuck() {
	if err := r.deps.Executor.KeyTap("esc"); err != nil {
		r.log.Warn().Err(err).Msg("close sell window")
	}
	r.pacer.Sleep("resolve_sell_stuck")
	r.deps.Executor.Click(r.deps.Layout.Storage.EnterStorage)
	r.pacer.Sleep("resolve_sell_stuck")
}

// useFastSell: a zero threshold always undercuts.
func useFastSell(countAtMin, threshold int) bool {
	return threshold == 0 || countAtMin > threshold
}

// undercutPrice lists below the minimum by the gap to the second lowest
// price, never under floor when floor is set.
func undercutPrice(minPrice, secondPrice, floor int) (int, bool) {
	if secondPrice <= minPrice {
		return 0, false
	}
	p := minPrice - (secondPrice - minPrice)
	if floor > 0 && p < floor {
		p = floor
	}
	if p <= 0 {
		return 0, false
	}
	return p, true
}

// setSellPrice prices the listing and sets the quantity slider. It returns
// the unit price the listing was made at, 0 when unknown.
func (r *Rolling) setSellPrice(ctx context.Context, tc config.TradingConfig, opt config.RollingOption, ratio float64) (int, error) {
	if r.stopping(ctx) {
		return 0, errStopped
	}
	d := r.deps.Layout.SellDialog
	x := r.deps.Executor

	minPrice, err := r.det.MinSellPrice()
	if err != nil {
		return 0, err
	}
	countAtMin, err := r.det.MinSellPriceCount()
	if err != nil {
		return 0, err
	}
	r.log.Info().Int("min_price", minPrice).Int("count_at_min", countAtMin).Int("floor", opt.MinSellPrice).Msg("market minimum")

	if opt.MinSellPrice > 0 && minPrice < opt.MinSellPrice {
		r.report(fmt.Sprintf("minimum %d under sell floor %d, skipping", minPrice, opt.MinSellPrice))
		r.refresh()
		r.pacer.Pause(100 * time.Millisecond)
		r.refresh()
		return 0, fmt.Errorf("%w: %d < %d", ErrBelowMinSellPrice, minPrice, opt.MinSellPrice)
	}

	price := minPrice
	typed := false
	if tc.FastSell && minPrice > 0 && useFastSell(countAtMin, tc.FastSellThreshold()) {
		second, err := r.det.SecondMinSellPrice()
		if err != nil {
			r.log.Warn().Err(err).Msg("second price unreadable, matching minimum")
		} else if under, ok := undercutPrice(minPrice, second, opt.MinSellPrice); ok {
			x.Click(d.PriceText)
			r.pacer.Sleep("after_sell_price_text_click")
			if err := x.Combo("ctrl", "a"); err != nil {
				return 0, fmt.Errorf("select price text: %w", err)
			}
			r.pacer.Sleep("after_select_sell_text_price")
			x.TypeText(strconv.Itoa(under))
			r.pacer.Sleep("after_select_sell_text_price")
			price, typed = under, true

			if shown, err := r.det.CurrentSellPrice(); err == nil && shown != under {
				r.log.Warn().Int("typed", under).Int("shown", shown).Msg("listing shows a different price")
				price = shown
			}
			r.log.Info().Int("min", minPrice).Int("second", second).Int("price", price).Msg("fast sell")
		}
	}
	if !typed {
		x.Click(d.MinPriceButton)
	}
	r.pacer.Sleep("after_set_sell_price")

	x.Click(d.QuantityAt(ratio))
	r.pacer.Sleep("after_sell_finish")
	return price, nil
}

func (r *Rolling) confirmSell(ctx context.Context, stage, price int) (sellResult, error) {
	if r.stopping(ctx) {
		return sellResult{}, errStopped
	}
	d := r.deps.Layout.SellDialog
	x := r.deps.Executor

	cur, capacity, err := r.det.SellQuantity()
	if err != nil {
		return sellResult{}, err
	}
	if cur > capacity {
		if err := x.KeyTap("esc"); err != nil {
			r.log.Warn().Err(err).Msg("close sell window")
		}
		r.pacer.Sleep("after_sale_column_full")
		return sellResult{}, fmt.Errorf("%w: %d/%d", ErrListingCapExceeded, cur, capacity)
	}

	if price <= 0 {
		if price, err = r.det.MinSellPrice(); err != nil {
			return sellResult{}, err
		}
	}
	revenue, err := r.det.ExpectedRevenue()
	if err != nil {
		return sellResult{}, err
	}
	x.Move(d.DetailButton)
	r.pacer.Sleep("after_move_to_sell_detail")
	total, err := r.det.TotalSellPrice()
	if err != nil {
		return sellResult{}, err
	}
	count := 0
	if price > 0 {
		count = total / price
	}

	x.Click(d.FinalSellButton)
	r.pacer.Sleep("after_sell_finish")

	res := sellResult{Price: price, Count: count, Total: total, Revenue: revenue}
	r.record(ctx, ledger.Trade{Kind: ledger.KindSell, UnitPrice: price, Count: count, Total: total, ExpectedRevenue: revenue})
	r.report(fmt.Sprintf("sell stage %d: %d x %d = %d, expected %d", stage+1, count, price, total, revenue))
	return res, nil
}

// closeRound logs what the round earned against what the buy cost.
func (r *Rolling) closeRound(ctx context.Context, results []sellResult, cost int) {
	revenue, count := 0, 0
	for _, s := range results {
		revenue += s.Revenue
		count += s.Count
	}
	avg := decimal.Zero
	if count > 0 {
		avg = decimal.NewFromInt(int64(cost)).Div(decimal.NewFromInt(int64(count)))
	}
	r.record(ctx, ledger.Trade{Kind: ledger.KindRound, Count: count, Cost: cost, ExpectedRevenue: revenue, Profit: revenue - cost})
	r.report(fmt.Sprintf("round sold %d, profit %d, avg buy %s | total profit %d sold %d",
		count, revenue-cost, avg.StringFixed(1), r.profit, r.count))
}
