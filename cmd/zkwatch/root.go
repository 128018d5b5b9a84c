package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thinker0/go.zkensemble/pkg/config"
	"github.com/thinker0/go.zkensemble/pkg/ensemble"
	"github.com/thinker0/go.zkensemble/pkg/logger"
	"github.com/thinker0/go.zkensemble/pkg/metric"
)

const appName = "zkwatch"

type rootCommand struct {
	cmd        *cobra.Command
	configFile string
	config     *config.Config
	factory    *ensemble.Factory
}

func newRootCommand() *cobra.Command {
	root := &rootCommand{}
	root.cmd = &cobra.Command{
		Use:   appName,
		Short: "Watch zookeeper nodes and server sets",
		Long: `Connects to every ensemble of the connection string, separated by ';',
and keeps the sessions alive while watching.

Settings are read from the --config file and ZK_ prefixed environment
variables, e.g. ZK_CONNECTION_STRING.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return root.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if root.factory != nil {
				root.factory.Close()
			}
		},
	}
	root.cmd.PersistentFlags().StringVarP(&root.configFile, "config", "c", "", "path to a YAML config file")

	root.cmd.AddCommand(
		watchCommand(root),
		membersCommand(root),
		healthCommand(root),
	)
	return root.cmd
}

func (r *rootCommand) setup() error {
	cfg, err := config.Load(r.configFile)
	if err != nil {
		return err
	}
	r.config = cfg

	logger.Init(appName, cfg.LogLevel)
	if cfg.StatsdAddress != "" {
		if err := metric.Init(cfg.StatsdAddress, []string{metric.TagAsString("app", appName)}); err != nil {
			log.Warn().Err(err).Str("address", cfg.StatsdAddress).Msg("metrics disabled")
		}
	}

	r.factory = ensemble.NewFactory(cfg.Options)
	r.factory.CreateAll()
	return nil
}

// waitForSignal blocks until the process is interrupted.
func waitForSignal() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info().Msg("shutting down")
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
