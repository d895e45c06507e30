// Package udp provides a message-oriented endpoint on top of a single UDP socket.
//
// Messages larger than [platform.MaxDatagramSize] are split into consecutive datagrams.
// A datagram of exactly the maximum size tells the receiver that the message continues,
// the first shorter datagram terminates it. There is no length prefix or checksum.
package udp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/dmksnnk/snakelink/internal/platform"
)

var (
	// ErrFragmentSourceMismatch is returned when continuation datagrams of a message
	// arrive from a different address than the first one.
	ErrFragmentSourceMismatch = errors.New("udp: fragment source mismatch")
	// ErrIncompleteMessage is returned when continuation datagram does not arrive in time.
	// The partially read message is dropped.
	ErrIncompleteMessage = errors.New("udp: incomplete message")
)

const (
	defaultPollTimeout         = time.Millisecond
	defaultContinuationTimeout = 100 * time.Millisecond
)

// ListenConfig configures an [Endpoint].
type ListenConfig struct {
	// PollTimeout is the longest time [Endpoint.Receive] waits for a datagram
	// before reporting that nothing is available.
	// The default value is 1ms.
	PollTimeout time.Duration
	// ContinuationTimeout is the longest time to wait for the next fragment
	// of a message spanning multiple datagrams.
	// The default value is 100ms.
	ContinuationTimeout time.Duration
	// Logger is used to log fragmentation.
	// If nil, logs are discarded.
	Logger *slog.Logger
}

// Listen binds a new endpoint to the specified address.
func (l ListenConfig) Listen(addr netip.AddrPort) (*Endpoint, error) {
	conn, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, err
	}

	pollTimeout := l.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	continuationTimeout := l.ContinuationTimeout
	if continuationTimeout <= 0 {
		continuationTimeout = defaultContinuationTimeout
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Endpoint{
		conn:                conn,
		buf:                 make([]byte, platform.MaxDatagramSize),
		pollTimeout:         pollTimeout,
		continuationTimeout: continuationTimeout,
		done:                make(chan struct{}),
		logger:              logger,
	}, nil
}

// Listen is a convenience function to create an endpoint with default configuration.
// See [ListenConfig] for more details.
func Listen(addr netip.AddrPort) (*Endpoint, error) {
	return ListenConfig{}.Listen(addr)
}

// Endpoint reads and writes whole messages over UDP.
// Receive must be called from a single goroutine, Send is safe for concurrent use.
type Endpoint struct {
	conn *net.UDPConn
	buf  []byte // read buffer, owned by the receiving goroutine

	pollTimeout         time.Duration
	continuationTimeout time.Duration

	mu     sync.Mutex // protects done
	done   chan struct{}
	logger *slog.Logger
}

// Receive returns the next message and the address of its sender.
// If no datagram arrives within the poll timeout, or the datagram is empty,
// it returns nil payload and nil error.
func (e *Endpoint) Receive() ([]byte, netip.AddrPort, error) {
	n, from, err := e.read(e.pollTimeout)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, netip.AddrPort{}, nil
		}

		return nil, netip.AddrPort{}, fmt.Errorf("read datagram: %w", err)
	}

	if n == 0 {
		return nil, netip.AddrPort{}, nil
	}

	msg := make([]byte, n, n+platform.MaxDatagramSize)
	copy(msg, e.buf[:n])

	for n == platform.MaxDatagramSize {
		var next netip.AddrPort
		n, next, err = e.read(e.continuationTimeout)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil, from, fmt.Errorf("%w: got %d bytes from %s", ErrIncompleteMessage, len(msg), from)
			}

			return nil, from, fmt.Errorf("read continuation datagram: %w", err)
		}

		if next != from {
			return nil, from, fmt.Errorf("%w: started by %s, continued by %s", ErrFragmentSourceMismatch, from, next)
		}

		msg = append(msg, e.buf[:n]...)
	}

	if len(msg) > platform.MaxDatagramSize {
		e.logger.Debug("reassembled message", slog.String("from", from.String()), slog.Int("size", len(msg)))
	}

	return msg, from, nil
}

func (e *Endpoint) read(timeout time.Duration) (int, netip.AddrPort, error) {
	if err := e.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, netip.AddrPort{}, fmt.Errorf("set read deadline: %w", err)
	}

	n, addr, err := e.conn.ReadFromUDPAddrPort(e.buf)
	if err != nil {
		return 0, netip.AddrPort{}, err
	}

	return n, netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port()), nil
}

// Send writes the message to dst as one or more datagrams.
func (e *Endpoint) Send(payload []byte, dst netip.AddrPort) error {
	datagrams := Fragment(payload)
	for _, dg := range datagrams {
		n, err := e.conn.WriteToUDPAddrPort(dg, dst)
		if err != nil {
			return fmt.Errorf("write to udp: %w", err)
		}
		if n != len(dg) {
			return fmt.Errorf("short write to udp: wrote %d bytes, expected %d", n, len(dg))
		}
	}

	if len(datagrams) > 1 {
		e.logger.Debug("fragmented message",
			slog.String("to", dst.String()),
			slog.Int("size", len(payload)),
			slog.Int("datagrams", len(datagrams)),
		)
	}

	return nil
}

// Fragment splits payload into datagrams of at most [platform.MaxDatagramSize] bytes.
// If the last datagram would be exactly the maximum size, an empty terminating datagram is appended,
// so the receiver knows the message is complete.
func Fragment(payload []byte) [][]byte {
	datagrams := make([][]byte, 0, len(payload)/platform.MaxDatagramSize+1)
	for len(payload) >= platform.MaxDatagramSize {
		datagrams = append(datagrams, payload[:platform.MaxDatagramSize])
		payload = payload[platform.MaxDatagramSize:]
	}

	return append(datagrams, payload)
}

// LocalAddr returns the address the endpoint is bound to.
func (e *Endpoint) LocalAddr() netip.AddrPort {
	addr := e.conn.LocalAddr().(*net.UDPAddr).AddrPort()
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}

// Close closes the underlying socket.
// It is safe to call Close multiple times.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-e.done:
		return nil
	default:
		close(e.done)

		return e.conn.Close()
	}
}
