package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/control"
	"github.com/tootechautomation/dfmarketbot/internal/detector"
	"github.com/tootechautomation/dfmarketbot/internal/input"
	"github.com/tootechautomation/dfmarketbot/internal/layout"
	"github.com/tootechautomation/dfmarketbot/internal/ledger"
	"github.com/tootechautomation/dfmarketbot/internal/logger"
	"github.com/tootechautomation/dfmarketbot/internal/notify"
	"github.com/tootechautomation/dfmarketbot/internal/ocr"
	"github.com/tootechautomation/dfmarketbot/internal/procwatch"
	"github.com/tootechautomation/dfmarketbot/internal/screen"
	"github.com/tootechautomation/dfmarketbot/internal/trading"
	"github.com/tootechautomation/dfmarketbot/internal/worker"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	autostart  = flag.Bool("autostart", false, "Start trading immediately")
	hud        = flag.Bool("hud", false, "Redraw a status panel in the terminal every second")
)

func main() {
	flag.Parse()

	cfgs, err := config.NewManager(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := cfgs.Current()
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	mainLog := logger.For("main")
	mainLog.Info().Str("file", *configPath).Str("mode", string(cfg.Trading.Mode)).Msg("configuration loaded")

	display, err := screen.NewDisplay(cfg.Screen)
	if err != nil {
		mainLog.Fatal().Err(err).Msg("screen unavailable")
	}
	if _, err := display.CaptureAll(); err != nil {
		mainLog.Fatal().Err(err).Msg("screen capture check failed")
	}
	width, height := display.Size()
	lay := layout.Resolve(width, height)
	mainLog.Info().Int("width", width).Int("height", height).Msg("layout resolved")

	set, err := ocr.LoadTemplateSet(cfg.OCR.TemplateDir, width, height)
	if err != nil {
		mainLog.Fatal().Err(err).Msg("failed to load templates")
	}
	engine, err := ocr.New(cfg.OCR.Engine, set, cfg.OCR.MatchThreshold, cfg.OCR.OverlapRatio)
	if err != nil {
		set.Close()
		mainLog.Fatal().Err(err).Msg("failed to build ocr engine")
	}
	defer func() {
		if err := engine.Close(); err != nil {
			mainLog.Warn().Err(err).Msg("ocr engine close")
		}
	}()

	var (
		journal  trading.Journal
		sessions worker.Sessions
		sums     control.Summaries
	)
	if cfg.Ledger.Enabled {
		j, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			mainLog.Fatal().Err(err).Msg("failed to open ledger")
		}
		defer func() {
			if err := j.Close(); err != nil {
				mainLog.Warn().Err(err).Msg("ledger close")
			}
		}()
		journal, sessions, sums = j, j, j
	}

	notifiers := notify.Multi{notify.NewLog()}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			mainLog.Fatal().Err(err).Msg("failed to initialise telegram")
		}
		notifiers = append(notifiers, tg)
		mainLog.Info().Msg("telegram notifications enabled")
	}

	exec := input.New(display.Origin())
	procs := procwatch.New(cfg.Game.ProcessName)

	factory := func(cfg *config.Config, st *worker.State) (trading.Mode, error) {
		deps := trading.Deps{
			Executor: exec,
			Layout:   lay,
			Reporter: st,
			Journal:  journal,
			Stopper:  st,
		}
		switch cfg.Trading.Mode {
		case config.ModeRolling:
			det := detector.NewRolling(display, engine, lay, cfg.Detection)
			return trading.NewRolling(det, procs, deps), nil
		case config.ModeHoarding:
			det := detector.NewHoarding(display, engine, lay, cfg.Detection)
			return trading.NewHoarding(det, deps), nil
		default:
			return nil, fmt.Errorf("unknown trading mode %q", cfg.Trading.Mode)
		}
	}

	opts := []worker.Option{worker.WithNotifier(notifiers)}
	if sessions != nil {
		opts = append(opts, worker.WithSessions(sessions))
	}
	runner := worker.NewRunner(cfgs.Current, factory, worker.NewState(), opts...)

	cfgs.OnChange(func(c *config.Config) {
		if c.Trading.Mode != cfg.Trading.Mode {
			mainLog.Warn().Str("mode", string(c.Trading.Mode)).Msg("mode change applies to the next session")
		}
	})
	cfgs.Watch()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		mainLog.Info().Msg("shutdown signal received, stopping session")
		runner.Stop()
		cancel()
	}()

	if cfg.Control.Enabled {
		srv := control.New(ctx, runner, sums)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Control.Listen); err != nil {
				mainLog.Error().Err(err).Msg("control api stopped")
			}
		}()
	}
	if *hud {
		go runHUD(ctx, runner, time.Second)
	}

	if *autostart || !cfg.Control.Enabled {
		if err := runner.Start(ctx); err != nil {
			mainLog.Fatal().Err(err).Msg("failed to start session")
		}
	}

	if cfg.Control.Enabled {
		<-ctx.Done()
	} else {
		// nothing can restart a session without the control api
		runner.Wait()
	}
	runner.Shutdown()
	mainLog.Info().Msg("bye")
}
