package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"

	"github.com/dmksnnk/snakelink/internal/platform/udp"
	"github.com/dmksnnk/snakelink/internal/protocol"
)

// run is the worker loop. Each iteration receives at most one message and sends at most one.
// The receive poll timeout is the only pause between iterations.
func (s *Session) run() error {
	for s.running.Load() {
		if err := s.receive(); err != nil {
			s.running.Store(false)
			s.logger.Error("session worker failed", slog.Any("error", err))
			return err
		}

		if msg, ok := s.outbound.Pop(); ok {
			if err := s.transmit(msg); err != nil {
				s.logger.Warn("drop outgoing message", slog.String("type", string(msg.Type())), slog.Any("error", err))
			}
		}
	}

	return nil
}

// receive reads and dispatches one message.
// It returns error only when the worker can't continue.
func (s *Session) receive() error {
	payload, from, err := s.endpoint.Receive()
	if err != nil {
		if errors.Is(err, udp.ErrFragmentSourceMismatch) || errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("receive: %w", err)
		}

		s.logger.Warn("drop incoming message", slog.String("from", from.String()), slog.Any("error", err))
		return nil
	}

	if payload == nil {
		return nil
	}

	msg, err := protocol.Decode(payload)
	if err != nil {
		s.logger.Warn("drop malformed message",
			slog.String("from", from.String()),
			slog.Int("size", len(payload)),
			slog.Any("error", err),
		)
		return nil
	}

	s.logger.Debug("received", slog.String("from", from.String()), slog.String("type", string(msg.Type())))

	s.dispatch(msg, from)

	return nil
}

// transmit sends the message to the peer.
// It does nothing when the session is not running.
func (s *Session) transmit(msg protocol.Message) error {
	if !s.running.Load() {
		return nil
	}

	peer, ok := s.Peer()
	if !ok {
		s.logger.Debug("no peer yet, dropping message", slog.String("type", string(msg.Type())))
		return nil
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	dst := netip.AddrPortFrom(peer, s.peerPort)
	if err := s.endpoint.Send(data, dst); err != nil {
		return fmt.Errorf("send to %s: %w", dst, err)
	}

	s.logger.Debug("sent", slog.String("to", dst.String()), slog.String("type", string(msg.Type())))

	return nil
}
