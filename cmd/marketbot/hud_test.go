package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tootechautomation/dfmarketbot/internal/config"
	"github.com/tootechautomation/dfmarketbot/internal/strategy"
	"github.com/tootechautomation/dfmarketbot/internal/worker"
)

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, worker.Snapshot{
		Running: true,
		Mode:    config.ModeRolling,
		Status:  "price 2500",
		Market:  strategy.MarketData{CurrentPrice: 2500, Profit: -300, Count: 4},
		Cycles:  7,
	})
	out := buf.String()
	assert.Contains(t, out, ColorGreen+"running"+ColorReset+" (rolling)")
	assert.Contains(t, out, " Profit  : "+ColorRed+"-300"+ColorReset)
	assert.Contains(t, out, " Status  : price 2500")
	assert.Contains(t, out, " Cycles  : 7")
}

func TestPrintStatusStopping(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, worker.Snapshot{Running: true, Stopping: true})
	assert.Contains(t, buf.String(), ColorYellow+"stopping"+ColorReset)
}
