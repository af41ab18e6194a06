package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// interruptSignals stop a running command.
var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// commandContext derives the context a command runs under. The first
// interrupt cancels it: a listing stops and reports where to resume, and a
// consent flow closes its loopback listener. A second interrupt exits at
// once. The returned cancel releases the signal handler.
func commandContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	return watchInterrupts(parent, logger, func() { os.Exit(1) })
}

// watchInterrupts is commandContext with the forced exit injected. The
// returned cancel blocks until the handler is unregistered.
func watchInterrupts(parent context.Context, logger *slog.Logger, forceExit func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, interruptSignals...)

	released := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("interrupted, canceling command", slog.String("signal", sig.String()))
			cancel()
		case <-released:
			return
		case <-parent.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("interrupted again, forcing exit", slog.String("signal", sig.String()))
			forceExit()
		case <-released:
		}
	}()

	var stopped bool

	return ctx, func() {
		cancel()

		if stopped {
			return
		}

		stopped = true

		close(released)
		<-exited
	}
}
