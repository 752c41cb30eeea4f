package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dustline/server/internal/config"
)

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.TickRate = 0

	err := Run(context.Background(), cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "tick_rate")
}

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.HTTPAddr = "127.0.0.1:0" // any free port
	cfg.LogLevel = "error"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	// Give the stack a moment to boot before tearing it down.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
