package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/dmksnnk/snakelink/internal/mirror"
	"github.com/dmksnnk/snakelink/internal/protocol"
	"github.com/dmksnnk/snakelink/internal/session"
)

const (
	fieldWidth   = 800
	fieldHeight  = 600
	blockSize    = 50
	numObstacles = 10

	flushTimeout   = 200 * time.Millisecond
	reportInterval = time.Second
)

type player struct {
	host     bool
	hostAddr string // joining side only
	tickRate int
}

// play drives the session once per tick the way the game loop does:
// send own state, apply everything received from the peer.
func play(ctx context.Context, s *session.Session, p player, logger *slog.Logger) (err error) {
	if err := s.Start(); err != nil {
		return errors.Join(fmt.Errorf("start session: %w", err), s.Stop())
	}

	own := newSnake(p.host)
	defer func() {
		err = errors.Join(err, finish(s, own))
	}()

	peer := mirror.New()
	layoutSent := false
	lastReport := time.Now()

	if p.host {
		logger.Info("waiting for peer")
	}

	ticker := time.NewTicker(time.Second / time.Duration(p.tickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if !s.Running() {
			return errors.New("session worker stopped")
		}

		if !s.Connected() {
			if p.host {
				continue
			}
			if err := s.Connect(p.hostAddr); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
		}

		if p.host && s.Connected() && !layoutSent {
			s.Send(newLayout(own.body))
			layoutSent = true
		}

		own.step()
		s.Send(own.update(true))

		for _, msg := range peer.ApplyAll(s.Drain()) {
			logger.Debug("ignore message", slog.String("type", string(msg.Type())))
		}

		if !peer.PeerRunning() {
			logger.Info("peer game over", slog.Int("peer_score", peer.Score()))
			return nil
		}

		if time.Since(lastReport) >= reportInterval {
			lastReport = time.Now()
			reportPeer(logger, s, peer)
		}
	}
}

// finish tells the peer the game is over and stops the session.
func finish(s *session.Session, own *snake) error {
	if s.Running() {
		s.Send(own.update(false))

		deadline := time.Now().Add(flushTimeout)
		for s.Pending() > 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(10 * time.Millisecond) // last popped message is still being written
	}

	if err := s.Stop(); err != nil {
		return fmt.Errorf("stop session: %w", err)
	}

	return nil
}

func reportPeer(logger *slog.Logger, s *session.Session, peer *mirror.State) {
	attrs := []any{
		slog.Bool("connected", s.Connected()),
		slog.Int("peer_score", peer.Score()),
	}
	if body := peer.Snake(); len(body) > 0 {
		attrs = append(attrs, slog.String("peer_head", body[0].String()), slog.Int("peer_length", len(body)))
	}
	if food, obstacles, ok := peer.Layout(); ok {
		attrs = append(attrs, slog.String("food", food.String()), slog.Int("obstacles", len(obstacles)))
	}

	logger.Info("peer", attrs...)
}

// snake is a stand-in for the game simulation: it moves straight and wraps around the field.
type snake struct {
	body      []protocol.Point
	direction protocol.Point
}

func newSnake(host bool) *snake {
	start := protocol.Point{X: 200, Y: 200}
	if host {
		start = protocol.Point{X: 100, Y: 100}
	}

	return &snake{
		body:      []protocol.Point{start},
		direction: protocol.Point{X: 0, Y: -blockSize},
	}
}

func (s *snake) step() {
	head := s.body[0]
	next := protocol.Point{
		X: wrap(head.X+s.direction.X, fieldWidth),
		Y: wrap(head.Y+s.direction.Y, fieldHeight),
	}

	s.body = append([]protocol.Point{next}, s.body[:len(s.body)-1]...)
}

func (s *snake) update(running bool) protocol.Update {
	return protocol.Update{
		Position:  slices.Clone(s.body),
		Direction: s.direction,
		Score:     len(s.body) - 1,
		Running:   running,
	}
}

func wrap(v, size int) int {
	return ((v % size) + size) % size
}

// newLayout places food and obstacles on free cells.
func newLayout(occupied []protocol.Point) protocol.Extra {
	taken := slices.Clone(occupied)
	free := func() protocol.Point {
		for {
			p := protocol.Point{
				X: rand.IntN(fieldWidth/blockSize) * blockSize,
				Y: rand.IntN(fieldHeight/blockSize) * blockSize,
			}
			if !slices.Contains(taken, p) {
				taken = append(taken, p)
				return p
			}
		}
	}

	extra := protocol.Extra{Food: free()}
	for range numObstacles {
		extra.Obstacles = append(extra.Obstacles, free())
	}

	return extra
}
