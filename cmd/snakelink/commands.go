package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dmksnnk/snakelink/internal/session"
	"github.com/spf13/cobra"
)

func newRootCmd(cfg *config) *cobra.Command {
	var (
		logger  *slog.Logger
		verbose bool
	)

	root := &cobra.Command{
		Use:   "snakelink",
		Short: "Headless two-player snake peer",
		Long: `snakelink runs one side of a two-player snake session without the game UI.
One side hosts and waits for the peer, the other joins by the host's address.
Configuration is read from SNAKELINK_* environment variables, flags take precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			level := cfg.LogLevel
			if verbose {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
			logger.Debug("load config", slog.Any("config", *cfg))

			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.Bind, "bind", cfg.Bind, "local IP to listen on, resolved from host name if empty")
	flags.Uint16Var(&cfg.Port, "port", cfg.Port, "local game port")
	flags.Uint16Var(&cfg.PeerPort, "peer-port", cfg.PeerPort, "game port on the peer host")
	flags.IntVar(&cfg.TickRate, "tick-rate", cfg.TickRate, "simulated ticks per second")
	flags.DurationVar(&cfg.PollTimeout, "poll-timeout", cfg.PollTimeout, "longest wait of a single receive attempt")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log every message")

	root.AddCommand(
		&cobra.Command{
			Use:   "host",
			Short: "Host a game and wait for the peer to join",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := listen(cmd, *cfg, logger)
				if err != nil {
					return err
				}

				return play(cmd.Context(), s, player{host: true, tickRate: cfg.TickRate}, logger)
			},
		},
		&cobra.Command{
			Use:   "join <host-address>",
			Short: "Join a game hosted at the address, e.g. 192.168.1.5",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := listen(cmd, *cfg, logger)
				if err != nil {
					return err
				}

				return play(cmd.Context(), s, player{hostAddr: args[0], tickRate: cfg.TickRate}, logger)
			},
		},
	)

	return root
}

func listen(cmd *cobra.Command, cfg config, logger *slog.Logger) (*session.Session, error) {
	s, err := session.Listen(cmd.Context(), cfg.listenAddr(),
		session.WithPeerPort(cfg.PeerPort),
		session.WithPollTimeout(cfg.PollTimeout),
		session.WithLogger(logger.With(slog.String("component", "session"))),
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	logger.Info("listening", slog.String("addr", s.LocalAddr().String()))

	return s, nil
}
