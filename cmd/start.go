package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/w3b2/w3b2-solana-go/config"
	"github.com/w3b2/w3b2-solana-go/daemon"
)

func newStartCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the connector daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(env.configPath())
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no config at %s; run `w3b2d init` first", env.configPath())
				}
				return fmt.Errorf("load config: %w", err)
			}

			env.logger.Info("starting w3b2d", "home", env.daemonDir)

			dmn, err := daemon.New(cfg, env.daemonDir)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}

			// The root command's context carries SIGINT/SIGTERM; the daemon
			// tears down and flushes its cursor store when it fires.
			ctx := cmd.Context()
			if err := dmn.Start(ctx); err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}

			<-ctx.Done()
			env.logger.Info("shutting down")
			return nil
		},
	}
}
