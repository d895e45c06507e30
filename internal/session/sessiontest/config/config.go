package config

import (
	"net/netip"
	"time"
)

// Config defines the configuration for the peer test program.
type Config struct {
	Name string
	// ListenAddress is the address to bind, port is the well-known game port.
	ListenAddress netip.AddrPort
	// HostAddress is the address to join, empty for the hosting side.
	HostAddress string
	// Position is the snake this peer sends, the other side expects it.
	Position []Position
	// PeerPosition is the snake this peer expects from the other side.
	PeerPosition []Position
	Timeout      time.Duration
}

type Position struct {
	X, Y int
}
