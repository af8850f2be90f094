package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/e7canasta/orion-care-sensor/internal/config"
	"github.com/e7canasta/orion-care-sensor/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Debug      bool

	cfg       *config.Config
	logCloser io.Closer
}

// NewRootCommand creates the root command for orion-capture.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "orion-capture",
		Short: "Orion camera capture session driver",
		Long: `Drive an asynchronous capture session against a camera source.

Without --config the built-in defaults are used: the synthetic colour-bar
source and a 640x480 NV12 preview stream.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logCloser != nil {
				return opts.logCloser.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML configuration")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "enable debug logging")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCharacteristicsCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

func (o *RootOptions) load() error {
	if o.ConfigPath == "" {
		o.cfg = config.Default()
	} else {
		cfg, err := config.Load(o.ConfigPath)
		if err != nil {
			return err
		}
		o.cfg = cfg
	}
	if o.Debug {
		o.cfg.Logging.Level = "debug"
	}

	closer, err := logging.Setup(o.cfg.Logging)
	if err != nil {
		return fmt.Errorf("logging setup: %w", err)
	}
	o.logCloser = closer
	return nil
}

// NewVersionCommand prints the version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		// no config or logging needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "orion-capture %s\n", version)
		},
	}
}
