// Package config loads, validates and hot-reloads the bot configuration.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the complete bot configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Trading   TradingConfig   `mapstructure:"trading"`
	Detection DetectionConfig `mapstructure:"detection"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	Screen    ScreenConfig    `mapstructure:"screen"`
	Delays    DelayConfig     `mapstructure:"delays"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Control   ControlConfig   `mapstructure:"control"`
	Game      GameConfig      `mapstructure:"game"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// DetectionConfig tunes the OCR retry loop shared by all detectors.
type DetectionConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"gte=1"`
	AttemptInterval time.Duration `mapstructure:"attempt_interval" validate:"gte=0"`
	AbnormalFloor   int           `mapstructure:"abnormal_floor" validate:"gte=0"`
	// MaxWait bounds one detection call in wall time; zero disables it.
	MaxWait time.Duration `mapstructure:"max_wait" validate:"gte=0"`
	// PriceRetries is how often rolling mode re-reads a price below the option floor.
	PriceRetries int `mapstructure:"price_retries" validate:"gte=1"`
}

type OCRConfig struct {
	Engine         string  `mapstructure:"engine" validate:"oneof=template contours tesseract"`
	TemplateDir    string  `mapstructure:"template_dir" validate:"required"`
	MatchThreshold float32 `mapstructure:"match_threshold" validate:"gt=0,lte=1"`
	OverlapRatio   float64 `mapstructure:"overlap_ratio" validate:"gte=0.6,lte=0.7"`
}

// ScreenConfig selects the captured display. Width and Height override the
// detected resolution when set.
type ScreenConfig struct {
	Display int          `mapstructure:"display" validate:"gte=0"`
	Width   int          `mapstructure:"width" validate:"gte=0"`
	Height  int          `mapstructure:"height" validate:"gte=0"`
	Window  WindowConfig `mapstructure:"window"`
}

// WindowConfig describes the game window for windowed-mode play.
type WindowConfig struct {
	Enabled bool `mapstructure:"enabled"`
	X       int  `mapstructure:"x"`
	Y       int  `mapstructure:"y"`
	Width   int  `mapstructure:"width" validate:"required_if=Enabled true,gte=0"`
	Height  int  `mapstructure:"height" validate:"required_if=Enabled true,gte=0"`
}

type LedgerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token" validate:"required_if=Enabled true"`
	ChatID   int64  `mapstructure:"chat_id" validate:"required_if=Enabled true"`
}

type ControlConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen" validate:"required_if=Enabled true"`
}

type GameConfig struct {
	ProcessName     string `mapstructure:"process_name"`
	CrashCheckAfter int    `mapstructure:"crash_check_after" validate:"gte=1"`
}

// Load reads configuration from the given file path.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	return decode(v, newValidator())
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("MARKETBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("trading.mode", string(ModeHoarding))
	v.SetDefault("trading.ideal_price", 0)
	v.SetDefault("trading.max_price", 0)
	v.SetDefault("trading.key_mode", false)
	v.SetDefault("trading.item_type", string(ItemConvertible))
	v.SetDefault("trading.use_balance_calculation", false)
	v.SetDefault("trading.rolling_loop_interval", 50)
	v.SetDefault("trading.hoarding_loop_interval", 150)
	v.SetDefault("trading.rolling_option", 0)
	v.SetDefault("trading.rolling_options", EncodeRollingOptions(DefaultRollingOptions()))
	v.SetDefault("trading.auto_sell", true)
	v.SetDefault("trading.fast_sell", true)
	v.SetDefault("trading.second_detect", false)
	v.SetDefault("trading.switch_to_battlefield", false)
	v.SetDefault("trading.switch_to_battlefield_count", 300)

	v.SetDefault("detection.max_attempts", 30)
	v.SetDefault("detection.attempt_interval", 5*time.Millisecond)
	v.SetDefault("detection.abnormal_floor", 100)
	v.SetDefault("detection.max_wait", time.Duration(0))
	v.SetDefault("detection.price_retries", 5)

	v.SetDefault("ocr.engine", "template")
	v.SetDefault("ocr.template_dir", "templates")
	v.SetDefault("ocr.match_threshold", 0.7)
	v.SetDefault("ocr.overlap_ratio", 0.6)

	v.SetDefault("screen.display", 0)
	v.SetDefault("screen.width", 0)
	v.SetDefault("screen.height", 0)
	v.SetDefault("screen.window.enabled", false)

	v.SetDefault("delays", DefaultDelays().asSettings())

	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.path", "marketbot.db")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("control.enabled", false)
	v.SetDefault("control.listen", "127.0.0.1:8765")
	v.SetDefault("game.process_name", "DeltaForceClient-Win64-Shipping.exe")
	v.SetDefault("game.crash_check_after", 10)
}

func decode(v *viper.Viper, validate *validator.Validate) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(validate); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Trading.normalize()
	if c.Delays == nil {
		c.Delays = DelayConfig{}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return c.validate(newValidator())
}

func (c *Config) validate(validate *validator.Validate) error {
	if err := validate.Struct(c); err != nil {
		return describe(err)
	}
	if err := c.Delays.Validate(); err != nil {
		return err
	}
	return nil
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// describe turns validator output into "trading.max_price must be gte 0"
// style messages.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += " " + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s must be %s", field, rule))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
