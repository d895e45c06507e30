package main

import (
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "SNAKELINK_"

type config struct {
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	// Bind is the local IP to listen on. If empty, it is resolved from the host name.
	Bind string `env:"BIND"`
	// Port is the local game port.
	Port uint16 `env:"PORT" envDefault:"7777"`
	// PeerPort is the game port on the peer host.
	PeerPort uint16 `env:"PEER_PORT" envDefault:"7777"`
	// TickRate is the number of simulated ticks per second.
	TickRate int `env:"TICK_RATE" envDefault:"10"`
	// PollTimeout bounds a single receive attempt of the session worker.
	PollTimeout time.Duration `env:"POLL_TIMEOUT" envDefault:"1ms"`
}

func parseConfig() (config, error) {
	var cfg config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return config{}, err
	}

	return cfg, nil
}

func (c config) validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("tick rate must be positive, got %d", c.TickRate)
	}
	if c.Port == 0 || c.PeerPort == 0 {
		return fmt.Errorf("ports must not be zero")
	}
	if c.Bind != "" {
		if _, err := netip.ParseAddr(c.Bind); err != nil {
			return fmt.Errorf("parse bind address: %w", err)
		}
	}

	return nil
}

// listenAddr returns the address to bind. IP is unset when it should be resolved.
func (c config) listenAddr() netip.AddrPort {
	var ip netip.Addr
	if c.Bind != "" {
		ip = netip.MustParseAddr(c.Bind) // checked in validate
	}

	return netip.AddrPortFrom(ip, c.Port)
}
