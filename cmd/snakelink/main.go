// Command snakelink runs a headless game peer over a session.
// It is meant for trying the link between two machines without the game itself.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, close := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer close()

	cfg, err := parseConfig()
	if err != nil {
		abort("parse config", err)
	}

	if err := newRootCmd(&cfg).ExecuteContext(ctx); err != nil {
		abort("run", err)
	}

	slog.Info("bye")
}

func abort(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
