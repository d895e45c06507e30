// Package session implements a best-effort state synchronization link between two game peers.
//
// A [Session] owns one UDP endpoint and a single worker goroutine. The game loop talks to
// the worker only through two unbounded queues: messages passed to [Session.Send] are
// transmitted by the worker, messages received from the peer are collected with [Session.Drain].
// Neither call blocks.
//
// The client side starts the handshake with [Session.Connect], which sends an identify message
// to the host. The host becomes connected when it receives it, records the sender as its peer,
// and answers with its own identify so the client becomes connected too.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmksnnk/snakelink/internal/platform"
	"github.com/dmksnnk/snakelink/internal/platform/udp"
	"github.com/dmksnnk/snakelink/internal/protocol"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrAlreadyStarted is returned by [Session.Start] when the worker is already running.
	ErrAlreadyStarted = errors.New("session: already started")
	// ErrSessionClosed is returned when the session was stopped.
	ErrSessionClosed = errors.New("session: closed")
	// ErrPeerMismatch is returned by [Session.Connect] when another peer is already recorded.
	ErrPeerMismatch = errors.New("session: peer already set")
)

// Session is a logical connection between two game peers.
type Session struct {
	id       uuid.UUID
	endpoint *udp.Endpoint
	local    netip.AddrPort

	peerPort    uint16
	pollTimeout time.Duration

	running   atomic.Bool
	connected atomic.Bool
	closed    atomic.Bool
	initiator atomic.Bool // set when this side sent identify with Connect

	peerMu sync.RWMutex
	peer   netip.Addr

	inbound  *platform.Queue[protocol.Message]
	outbound *platform.Queue[protocol.Message]

	mu      sync.Mutex // serializes Start and Stop
	started bool
	worker  errgroup.Group

	logger *slog.Logger
}

// Listen binds a new session to addr.
// If addr has no IP, the local address is resolved from the host name.
// If addr has no port, [platform.GamePort] is used.
func Listen(ctx context.Context, addr netip.AddrPort, opts ...Option) (*Session, error) {
	s := newSession(opts)

	ip := addr.Addr()
	if !ip.IsValid() {
		ip = platform.ResolveLocalAddr(ctx)
	}
	port := addr.Port()
	if port == 0 {
		port = platform.GamePort
	}

	lc := udp.ListenConfig{
		PollTimeout: s.pollTimeout,
		Logger:      s.logger,
	}
	endpoint, err := lc.Listen(netip.AddrPortFrom(ip, port))
	if err != nil {
		return nil, fmt.Errorf("listen UDP: %w", err)
	}

	s.attach(endpoint)
	return s, nil
}

// New creates a session on top of an already bound endpoint.
// The session takes ownership of the endpoint and closes it on [Session.Stop].
func New(endpoint *udp.Endpoint, opts ...Option) *Session {
	s := newSession(opts)
	s.attach(endpoint)
	return s
}

func newSession(opts []Option) *Session {
	s := &Session{
		id:       uuid.New(),
		peerPort: platform.GamePort,
		inbound:  platform.NewQueue[protocol.Message](),
		outbound: platform.NewQueue[protocol.Message](),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With(slog.String("session", s.id.String()))

	return s
}

func (s *Session) attach(endpoint *udp.Endpoint) {
	s.endpoint = endpoint
	s.local = endpoint.LocalAddr()
}

// Start spawns the worker.
// A session can be started only once, it must be recreated after [Session.Stop].
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	s.running.Store(true)
	s.worker.Go(s.run)

	s.logger.Info("session started", slog.String("addr", s.local.String()))

	return nil
}

// Stop stops the worker, waits for it to exit and closes the socket.
// It returns the error that made the worker exit on its own, if any.
// Calling Stop more than once is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Swap(true) {
		return nil
	}

	s.running.Store(false)
	s.connected.Store(false)

	err := s.worker.Wait()
	// the last iteration may have dispatched an identify after the flags were cleared
	s.connected.Store(false)

	if cerr := s.endpoint.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close endpoint: %w", cerr))
	}

	s.logger.Info("session stopped")

	return err
}

// Connect starts the handshake with the host at the numeric address, e.g. "192.168.1.5".
// It is a no-op when the session is already connected, so it is safe to call it
// repeatedly until [Session.Connected] reports true.
// The peer is recorded once, connecting to a different host returns [ErrPeerMismatch].
func (s *Session) Connect(host string) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.connected.Load() {
		return nil
	}

	addr, err := platform.ParseHost(host)
	if err != nil {
		return err
	}

	s.peerMu.Lock()
	peer := s.peer
	if !peer.IsValid() {
		s.peer = addr
	}
	s.peerMu.Unlock()

	if peer.IsValid() && peer != addr {
		return fmt.Errorf("%w: %s, connecting to %s", ErrPeerMismatch, peer, addr)
	}

	s.initiator.Store(true)
	s.outbound.Push(protocol.Identify{Address: s.local.Addr().String()})

	s.logger.Debug("connecting", slog.String("peer", addr.String()))

	return nil
}

// Send queues the message for transmission to the peer.
// Messages sent after [Session.Stop] are dropped.
func (s *Session) Send(msg protocol.Message) {
	if s.closed.Load() {
		return
	}

	s.outbound.Push(msg)
}

// Drain returns all messages received from the peer since the last call, oldest first.
func (s *Session) Drain() []protocol.Message {
	return s.inbound.Drain()
}

// TryReceive returns the oldest received message, if there is one.
func (s *Session) TryReceive() (protocol.Message, bool) {
	return s.inbound.Pop()
}

// Pending returns the number of messages waiting for transmission.
func (s *Session) Pending() int {
	return s.outbound.Len()
}

// Running reports whether the worker is running.
func (s *Session) Running() bool {
	return s.running.Load()
}

// Connected reports whether identify message was received from the peer.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Peer returns the address of the remote peer, if it is known.
func (s *Session) Peer() (netip.Addr, bool) {
	s.peerMu.RLock()
	defer s.peerMu.RUnlock()

	return s.peer, s.peer.IsValid()
}

// LocalAddr returns the address the session is bound to.
func (s *Session) LocalAddr() netip.AddrPort {
	return s.local
}

// ID returns random session identifier, used to tell sessions apart in logs.
func (s *Session) ID() uuid.UUID {
	return s.id
}
