package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Signal tests share the process and must not run in parallel.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func interruptSelf(t *testing.T) {
	t.Helper()
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
}

func TestWatchInterrupts_FirstSignalCancelsSecondForcesExit(t *testing.T) {
	exits := make(chan struct{}, 1)
	ctx, cancel := watchInterrupts(context.Background(), discardLogger(), func() { exits <- struct{}{} })
	defer cancel()

	interruptSelf(t)

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled after the first interrupt")
	}

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Empty(t, exits, "first interrupt must not exit")

	interruptSelf(t)

	select {
	case <-exits:
	case <-time.After(2 * time.Second):
		t.Fatal("second interrupt did not force exit")
	}
}

func TestWatchInterrupts_CancelReleasesHandler(t *testing.T) {
	// Keep the process alive once the handler under test is gone.
	guard := make(chan os.Signal, 1)
	signal.Notify(guard, syscall.SIGINT)
	defer signal.Stop(guard)

	var exits atomic.Int32

	ctx, cancel := watchInterrupts(context.Background(), discardLogger(), func() { exits.Add(1) })
	cancel()
	cancel()

	require.ErrorIs(t, ctx.Err(), context.Canceled)

	interruptSelf(t)

	select {
	case <-guard:
	case <-time.After(2 * time.Second):
		t.Fatal("guard did not observe the interrupt")
	}

	assert.Zero(t, exits.Load())
}

func TestWatchInterrupts_ParentCancelPropagates(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())

	ctx, cancel := watchInterrupts(parent, discardLogger(), func() { t.Error("unexpected forced exit") })
	defer cancel()

	cancelParent()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled with its parent")
	}
}

func TestCommandContext_CancelStopsCommand(t *testing.T) {
	ctx, cancel := commandContext(context.Background(), discardLogger())
	require.NoError(t, ctx.Err())

	cancel()

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
