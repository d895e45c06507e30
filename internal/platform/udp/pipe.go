package udp

import (
	"fmt"
	"net/netip"
)

// Pipe creates a pair of endpoints bound to system chosen ports on the loopback interface.
func Pipe() (*Endpoint, *Endpoint, error) {
	return ListenConfig{}.Pipe()
}

// Pipe creates a pair of loopback endpoints with the given configuration.
func (l ListenConfig) Pipe() (*Endpoint, *Endpoint, error) {
	localhost := netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), 0) // let the system choose a free port

	e1, err := l.Listen(localhost)
	if err != nil {
		return nil, nil, fmt.Errorf("listen first endpoint: %w", err)
	}

	e2, err := l.Listen(localhost)
	if err != nil {
		e1.Close()
		return nil, nil, fmt.Errorf("listen second endpoint: %w", err)
	}

	return e1, e2, nil
}
