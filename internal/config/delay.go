package config

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DelayConfig maps a mode section ("rolling_mode", "hoarding_mode") to
// operation names and their pause in seconds.
type DelayConfig map[string]map[string]float64

// Get returns the delay in seconds, 0 when it is not configured.
func (d DelayConfig) Get(mode, op string) float64 {
	return d[mode][op]
}

// Duration is Get as a time.Duration.
func (d DelayConfig) Duration(mode, op string) time.Duration {
	return time.Duration(d.Get(mode, op) * float64(time.Second))
}

// With returns a copy of d with one delay replaced.
func (d DelayConfig) With(mode, op string, seconds float64) (DelayConfig, error) {
	if err := checkDelay(mode, op, seconds); err != nil {
		return nil, err
	}
	out := make(DelayConfig, len(d)+1)
	for m, ops := range d {
		cp := make(map[string]float64, len(ops))
		for k, v := range ops {
			cp[k] = v
		}
		out[m] = cp
	}
	if out[mode] == nil {
		out[mode] = map[string]float64{}
	}
	out[mode][op] = seconds
	return out, nil
}

// Validate rejects negative or non-finite delays.
func (d DelayConfig) Validate() error {
	modes := make([]string, 0, len(d))
	for m := range d {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	for _, m := range modes {
		for op, v := range d[m] {
			if err := checkDelay(m, op, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkDelay(mode, op string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("invalid config: delays.%s.%s must be a non-negative number of seconds, got %v", mode, op, v)
	}
	return nil
}

func (d DelayConfig) asSettings() map[string]any {
	out := make(map[string]any, len(d))
	for m, ops := range d {
		inner := make(map[string]any, len(ops))
		for k, v := range ops {
			inner[k] = v
		}
		out[m] = inner
	}
	return out
}

// DefaultDelays are tuned for the game at 60 fps on a local machine.
func DefaultDelays() DelayConfig {
	return DelayConfig{
		"hoarding_mode": {
			"enter_action":      0.3,
			"refresh_operation": 0.05,
			"balance_detection": 0.1,
		},
		"rolling_mode": {
			"initialization":                                0.5,
			"before_option_switch":                          0.15,
			"after_option_switch":                           0.1,
			"price_detection_retry":                         0.05,
			"before_buy":                                    0,
			"second_price_detection_retry":                  0.05,
			"after_buy":                                     2.0,
			"after_check_purchase_failure":                  0.3,
			"after_buy_failed":                              0.3,
			"after_buy_success":                             0.2,
			"balance_detection":                             0.3,
			"after_refresh":                                 0.1,
			"after_enter_storage":                           1.0,
			"after_transfer_all":                            1.0,
			"after_move_to_sell_item":                       0.2,
			"sell_window_wait":                              0.3,
			"after_sell_button_click":                       0.5,
			"resolve_sell_stuck":                            1.0,
			"after_sell_price_text_click":                   0.2,
			"after_select_sell_text_price":                  0.1,
			"after_set_sell_price":                          0.3,
			"after_sell_finish":                             0.5,
			"after_sale_column_full":                        0.5,
			"after_move_to_sell_detail":                     0.3,
			"sell_retry":                                    1.0,
			"before_get_mail":                               0.5,
			"after_mail_button_click":                       1.5,
			"after_mail_trade_click":                        1.0,
			"after_mail_get_click":                          1.0,
			"after_confirm_mail_click":                      1.0,
			"after_get_mail":                                0.5,
			"buy_success_refresh_final":                     0.5,
			"after_get_mail_and_detect_balance":             0.2,
			"stuck_recovery":                                1.0,
			"before_open_mode_select_menu_tarkov_mode":      1.0,
			"before_select_mode":                            1.0,
			"before_open_mode_select_menu_battlefield_mode": 1.0,
			"mode_confirm":                                  0.5,
			"before_select_map":                             1.0,
			"before_select_zero_dam":                        1.0,
			"before_start_action":                           0.5,
		},
	}
}
