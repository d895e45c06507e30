package session

import (
	"log/slog"
	"time"
)

// Option configures a [Session].
type Option func(*Session)

// WithLogger sets the logger for the session.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithPeerPort sets the port messages are sent to on the peer host.
// Default is [platform.GamePort].
func WithPeerPort(port uint16) Option {
	return func(s *Session) {
		s.peerPort = port
	}
}

// WithPollTimeout sets how long one receive attempt of the worker waits for a datagram.
// It bounds the idle backoff of the worker loop. Only applies to sessions created with [Listen].
// Default is 1ms.
func WithPollTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.pollTimeout = d
	}
}
