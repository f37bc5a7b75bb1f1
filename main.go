// Package main provides the entry point for teleport-manager, which pairs
// this machine with an AmpliFi Teleport router and manages the resulting
// WireGuard tunnel service.
//
// Usage:
//
//	teleport-manager connect [--pin PIN]
//	teleport-manager disconnect
//	teleport-manager reset [--yes]
//	teleport-manager status [--watch]
//	teleport-manager ui
//
// Administrator (Windows) or root privileges are needed to install and
// remove the tunnel service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yllada/teleport-manager/cli"
	"github.com/yllada/teleport-manager/common"
	"github.com/yllada/teleport-manager/config"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
// Default values are used for local development builds
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

var (
	cfgFile  string
	logLevel string

	cfg *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	_ = common.CloseLogger()

	if err != nil {
		var resErr *cli.ResultError
		if !errors.As(err, &resErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   common.CommandName,
		Short: common.AppName + " tunnel manager",
		Long: `teleport-manager pairs this machine with an AmpliFi Teleport router and
manages the WireGuard tunnel service that connects to it.

QUICK START:

  # Pair with the PIN shown in the AmpliFi app and bring the tunnel up:
  teleport-manager connect --pin 12345

  # Later, refresh the configuration with the saved device token:
  teleport-manager connect

  # Bring the tunnel down:
  teleport-manager disconnect`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is the data directory's config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newConnectCmd(),
		newDisconnectCmd(),
		newResetCmd(),
		newStatusCmd(),
		newHistoryCmd(),
		newUICmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// setup loads the configuration and initializes logging for every command
// that needs them.
func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations["skipSetup"] == "true" {
		return nil
	}

	path, err := configPath()
	if err != nil {
		return err
	}
	cfg, err = config.Load(path)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logCfg := common.LogConfig{Level: common.ParseLevel(level)}
	if paths, err := cfg.Paths(); err == nil {
		logCfg.Dir = filepath.Join(paths.Dir, "logs")
	}
	if err := common.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("file logging disabled")
	}

	log.Debug().Str("config", path).Str("version", appVersion).Msg("starting")
	return nil
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultPath()
}

// withCLI wires the lifecycle from the loaded configuration and releases
// it when fn returns.
func withCLI(fn func(c *cli.CLI) error) error {
	c, err := cli.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("closing operation history")
		}
	}()
	return fn(c)
}

func newConnectCmd() *cobra.Command {
	var pin string
	var noPrompt bool

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Pair with a PIN or refresh the tunnel configuration, then activate the tunnel",
		Long: `Activate the Teleport tunnel.

With --pin, the PIN from the AmpliFi app is exchanged for a new device
token. Without it, the saved device token is used to fetch a fresh
configuration; if there is none, you are asked for a PIN.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCLI(func(c *cli.CLI) error {
				return c.Connect(cmd.Context(), pin, !noPrompt)
			})
		},
	}
	cmd.Flags().StringVarP(&pin, "pin", "p", "", "pairing PIN from the AmpliFi app")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "never ask for a PIN interactively")
	return cmd
}

func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "disconnect",
		Aliases: []string{"down"},
		Short:   "Deactivate the tunnel",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCLI(func(c *cli.CLI) error {
				return c.Disconnect(cmd.Context())
			})
		},
	}
}

func newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Deactivate the tunnel and delete the configuration and device credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCLI(func(c *cli.CLI) error {
				return c.Reset(cmd.Context(), yes)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the tunnel state and local artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCLI(func(c *cli.CLI) error {
				if err := c.Status(cmd.Context()); err != nil {
					return err
				}
				if watch {
					return c.Watch(cmd.Context())
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep reporting state changes")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent connect, disconnect and reset operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCLI(func(c *cli.CLI) error {
				return c.History(cmd.Context(), limit)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of operations to show (0 for all)")
	return cmd
}

func newUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive control panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCLI(func(c *cli.CLI) error {
				return c.UI(cmd.Context())
			})
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize the configuration file",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			return cli.ShowConfig(cmd.OutOrStdout(), cfg, path)
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipSetup": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if err := cli.InitConfig(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	cmd.AddCommand(show, initCmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipSetup": "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", common.CommandName, appVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commitSHA)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", buildTime)
		},
	}
}
