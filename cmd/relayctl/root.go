package main

import (
	"fmt"
	"time"

	"github.com/pscheid92/actionrelay/internal/domain"
	"github.com/pscheid92/actionrelay/internal/platform/config"
	"github.com/pscheid92/actionrelay/internal/platform/version"
	"github.com/pscheid92/actionrelay/internal/transport"
	"github.com/spf13/cobra"
)

// producerConfig holds the flags shared by every producer subcommand.
type producerConfig struct {
	url      string
	name     string
	wait     time.Duration
	timeout  time.Duration
	attempts int
	interval time.Duration
}

// NewRootCmd creates the root command for relayctl.
func NewRootCmd() *cobra.Command {
	cfg := &producerConfig{}

	cmd := &cobra.Command{
		Use:   "relayctl",
		Short: "Send actions and signals to an action relay",
		Long: `relayctl connects to an action relay, sends a single frame and exits.
Without --url the address is taken from WS_HOST, WS_PORT and WS_URL_TEMPLATE.`,
		Version:       version.Get("relayctl").Version,
		SilenceUsage:  true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.url, "url", "", "relay WebSocket URL")
	flags.StringVar(&cfg.name, "name", "relayctl", "client name announced in the hello frame")
	flags.DurationVar(&cfg.wait, "wait", 0, "wait this long for a reply and print it")
	flags.DurationVar(&cfg.timeout, "timeout", 10*time.Second, "overall deadline for connecting and sending")
	flags.IntVar(&cfg.attempts, "attempts", 3, "connection attempts before giving up")
	flags.DurationVar(&cfg.interval, "retry-interval", time.Second, "wait between connection attempts")

	cmd.AddCommand(newSendCmd(cfg))
	cmd.AddCommand(newBroadcastCmd(cfg))
	cmd.AddCommand(newToggleListenCmd(cfg))

	return cmd
}

func newSendCmd(cfg *producerConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "send ACTION",
		Short: "Send an action that the relay echoes back to this client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := []byte(args[0])
			if !domain.IsAction(action) {
				return fmt.Errorf("invalid action %q: %w", args[0], domain.ErrNotAction)
			}
			return runProducer(cmd, cfg, func(c *transport.Client) error { return c.SendAction(action) })
		},
	}
}

func newBroadcastCmd(cfg *producerConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "broadcast ACTION",
		Short: "Broadcast an action to every client of the relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := []byte(args[0])
			if !domain.IsAction(action) {
				return fmt.Errorf("invalid action %q: %w", args[0], domain.ErrNotAction)
			}
			return runProducer(cmd, cfg, func(c *transport.Client) error { return c.Broadcast(action) })
		},
	}
}

func newToggleListenCmd(cfg *producerConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle-listen",
		Short: "Broadcast the listen toggle signal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProducer(cmd, cfg, (*transport.Client).ToggleListen)
		},
	}
}

func (cfg *producerConfig) resolveURL() (string, error) {
	if cfg.url != "" {
		return cfg.url, nil
	}
	clientCfg, err := config.LoadClient()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return clientCfg.URL()
}
