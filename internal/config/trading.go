package config

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Mode selects the trading state machine.
type Mode string

const (
	ModeHoarding Mode = "hoarding"
	ModeRolling  Mode = "rolling"
)

// DelayKey is the DelayConfig section consulted by the mode.
func (m Mode) DelayKey() string {
	return string(m) + "_mode"
}

// ItemType picks which hoarding price area and buy buttons apply.
type ItemType string

const (
	ItemConvertible    ItemType = "convertible"
	ItemNonConvertible ItemType = "non_convertible"
)

// TradingConfig is the per-cycle trading snapshot.
type TradingConfig struct {
	Mode                  Mode     `mapstructure:"mode" validate:"oneof=hoarding rolling"`
	IdealPrice            int      `mapstructure:"ideal_price" validate:"gte=0"`
	MaxPrice              int      `mapstructure:"max_price" validate:"gte=0"`
	KeyMode               bool     `mapstructure:"key_mode"`
	ItemType              ItemType `mapstructure:"item_type" validate:"oneof=convertible non_convertible"`
	UseBalanceCalculation bool     `mapstructure:"use_balance_calculation"`
	// Loop intervals are in milliseconds.
	RollingLoopInterval      int             `mapstructure:"rolling_loop_interval" validate:"gt=0"`
	HoardingLoopInterval     int             `mapstructure:"hoarding_loop_interval" validate:"gt=0"`
	RollingOption            int             `mapstructure:"rolling_option"`
	RollingOptions           []RollingOption `mapstructure:"rolling_options" validate:"dive"`
	AutoSell                 bool            `mapstructure:"auto_sell"`
	FastSell                 bool            `mapstructure:"fast_sell"`
	SecondDetect             bool            `mapstructure:"second_detect"`
	SwitchToBattlefield      bool            `mapstructure:"switch_to_battlefield"`
	SwitchToBattlefieldCount int             `mapstructure:"switch_to_battlefield_count" validate:"gt=0"`
}

// RollingOption is one purchasable loadout in rolling mode.
type RollingOption struct {
	BuyPrice          int `mapstructure:"buy_price" json:"buy_price" validate:"gte=0"`
	MinBuyPrice       int `mapstructure:"min_buy_price" json:"min_buy_price" validate:"gte=0"`
	BuyCount          int `mapstructure:"buy_count" json:"buy_count" validate:"gt=0"`
	FastSellThreshold int `mapstructure:"fast_sell_threshold" json:"fast_sell_threshold" validate:"gte=0"`
	MinSellPrice      int `mapstructure:"min_sell_price" json:"min_sell_price" validate:"gte=0"`
}

// TargetPrice is the highest total price worth buying.
func (o RollingOption) TargetPrice() int { return o.BuyPrice * o.BuyCount }

// FloorPrice is the total price at or below which a reading is distrusted.
func (o RollingOption) FloorPrice() int { return o.MinBuyPrice * o.BuyCount }

// DefaultRollingOptions returns the four stock loadouts.
func DefaultRollingOptions() []RollingOption {
	return []RollingOption{
		{BuyPrice: 520, MinBuyPrice: 300, BuyCount: 4980},
		{BuyPrice: 450, MinBuyPrice: 270, BuyCount: 4980},
		{BuyPrice: 450, MinBuyPrice: 270, BuyCount: 4980},
		{BuyPrice: 1700, MinBuyPrice: 700, BuyCount: 1740},
	}
}

// LoopInterval is the pause between two cycles of the active mode.
func (t TradingConfig) LoopInterval() time.Duration {
	if t.Mode == ModeRolling {
		return time.Duration(t.RollingLoopInterval) * time.Millisecond
	}
	return time.Duration(t.HoardingLoopInterval) * time.Millisecond
}

// SelectedOption returns the active rolling option, false when the index
// does not point at one.
func (t TradingConfig) SelectedOption() (RollingOption, bool) {
	if t.RollingOption < 0 || t.RollingOption >= len(t.RollingOptions) {
		return RollingOption{}, false
	}
	return t.RollingOptions[t.RollingOption], true
}

// FastSellThreshold of the selected option; 0 (always fast-sell) when the
// selection is invalid.
func (t TradingConfig) FastSellThreshold() int {
	opt, ok := t.SelectedOption()
	if !ok {
		return 0
	}
	return opt.FastSellThreshold
}

func (t TradingConfig) Convertible() bool {
	return t.ItemType != ItemNonConvertible
}

func (t *TradingConfig) normalize() {
	if len(t.RollingOptions) == 0 {
		t.RollingOptions = DefaultRollingOptions()
	}
	for i := range t.RollingOptions {
		t.RollingOptions[i].clampLegacy()
	}
}

// clampLegacy resets negative sell settings written by older versions.
func (o *RollingOption) clampLegacy() {
	if o.FastSellThreshold < 0 {
		o.FastSellThreshold = 0
	}
	if o.MinSellPrice < 0 {
		o.MinSellPrice = 0
	}
}

// EncodeRollingOptions converts options into plain maps for storage.
func EncodeRollingOptions(opts []RollingOption) []map[string]any {
	out := make([]map[string]any, 0, len(opts))
	for _, o := range opts {
		out = append(out, map[string]any{
			"buy_price":           o.BuyPrice,
			"min_buy_price":       o.MinBuyPrice,
			"buy_count":           o.BuyCount,
			"fast_sell_threshold": o.FastSellThreshold,
			"min_sell_price":      o.MinSellPrice,
		})
	}
	return out
}

// DecodeRollingOptions reads options from stored maps. Fields missing in
// older data decode as zero.
func DecodeRollingOptions(raw []map[string]any) ([]RollingOption, error) {
	opts := make([]RollingOption, 0, len(raw))
	for i, m := range raw {
		var o RollingOption
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &o,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("rolling option %d: %w", i, err)
		}
		o.clampLegacy()
		opts = append(opts, o)
	}
	return opts, nil
}
