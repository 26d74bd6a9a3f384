package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tootechautomation/dfmarketbot/internal/worker"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
)

type snapshotter interface {
	Snapshot() worker.Snapshot
}

func runHUD(ctx context.Context, src snapshotter, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fmt.Print("\033[2J\033[H")
			printStatus(os.Stdout, src.Snapshot())
		}
	}
}

func printStatus(w io.Writer, s worker.Snapshot) {
	stateColor := ColorYellow
	state := "idle"
	switch {
	case s.Stopping:
		state = "stopping"
	case s.Running:
		stateColor, state = ColorGreen, "running"
	}
	profitColor := ColorWhite
	if s.Market.Profit > 0 {
		profitColor = ColorGreen
	} else if s.Market.Profit < 0 {
		profitColor = ColorRed
	}
	errColor := ColorWhite
	if s.ConsecutiveErrors > 0 {
		errColor = ColorRed
	}

	fmt.Fprintf(w, "=== 📊 Market Bot ===\n")
	fmt.Fprintf(w, " State   : %s%s%s (%s)\n", stateColor, state, ColorReset, s.Mode)
	fmt.Fprintf(w, " Status  : %s\n", s.Status)
	fmt.Fprintf(w, " Price   : %s%d%s\n", ColorCyan, s.Market.CurrentPrice, ColorReset)
	fmt.Fprintf(w, " Balance : %d\n", s.Market.Balance)
	fmt.Fprintf(w, " Profit  : %s%d%s\n", profitColor, s.Market.Profit, ColorReset)
	fmt.Fprintf(w, " Sold    : %d\n", s.Market.Count)
	fmt.Fprintf(w, " Cycles  : %d  Errors: %s%d%s\n", s.Cycles, errColor, s.Errors, ColorReset)
	fmt.Fprintf(w, "=====================\n")
}
