// Program sessiontest runs one side of a session inside a test network.
// It reads [config.Config] as gob from stdin and exits with non-zero code on failure.
package main

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/dmksnnk/snakelink/internal/protocol"
	"github.com/dmksnnk/snakelink/internal/session"
	"github.com/dmksnnk/snakelink/internal/session/sessiontest/config"
)

func main() {
	var cfg config.Config
	if err := gob.NewDecoder(os.Stdin).Decode(&cfg); err != nil {
		abort("decode config", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger = logger.With("peer", cfg.Name)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	s, err := session.Listen(ctx, cfg.ListenAddress, session.WithLogger(logger))
	if err != nil {
		abort("listen", err)
	}

	if err := s.Start(); err != nil {
		abort("start session", err)
	}

	if err := run(ctx, s, cfg); err != nil {
		s.Stop()
		abort("run", err)
	}

	if err := s.Stop(); err != nil {
		abort("stop session", err)
	}

	slog.Info("peer done")
}

// run keeps sending own update until the peer's update arrives.
// Sending continues for a while after that, so the peer gets ours even if it started later.
func run(ctx context.Context, s *session.Session, cfg config.Config) error {
	own := protocol.Update{Position: toPoints(cfg.Position), Running: true}
	want := toPoints(cfg.PeerPosition)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var received bool
	var lingerUntil time.Time
	for {
		select {
		case <-ctx.Done():
			if received {
				return nil
			}
			return fmt.Errorf("no update from peer: %w", ctx.Err())
		case <-ticker.C:
		}

		if cfg.HostAddress != "" {
			if err := s.Connect(cfg.HostAddress); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
		}

		if !s.Connected() {
			continue
		}

		s.Send(own)

		for _, msg := range s.Drain() {
			update, ok := msg.(protocol.Update)
			if !ok {
				continue
			}
			if !slices.Equal(update.Position, want) {
				return errors.New("peer sent unexpected position")
			}
			if !received {
				slog.Info("received peer update")
				received = true
				lingerUntil = time.Now().Add(time.Second)
			}
		}

		if received && time.Now().After(lingerUntil) {
			return nil
		}
	}
}

func toPoints(ps []config.Position) []protocol.Point {
	points := make([]protocol.Point, len(ps))
	for i, p := range ps {
		points[i] = protocol.Point{X: p.X, Y: p.Y}
	}
	return points
}

func abort(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
