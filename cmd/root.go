// Package cmd wires the w3b2d command line. Commands are built by
// constructors around a shared cliEnv, so every subcommand sees the same
// resolved daemon home and logger.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"

	"github.com/w3b2/w3b2-solana-go/config"
)

// cliEnv is the state shared by all subcommands: the resolved daemon home
// and a console logger. It is populated once the root flags are parsed.
type cliEnv struct {
	daemonDir string
	logger    log.Logger
}

func (c *cliEnv) configPath() string {
	return config.DefaultPath(c.daemonDir)
}

// NewRootCmd builds the w3b2d command tree.
func NewRootCmd() *cobra.Command {
	env := &cliEnv{}
	var homeBase string

	root := &cobra.Command{
		Use:           "w3b2d",
		Short:         "W3B2 connector daemon for Solana",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.DaemonDir(homeBase)
			if err != nil {
				return err
			}
			env.daemonDir = dir
			// Console output for the CLI itself; the daemon switches to the
			// JSON logger once it starts.
			env.logger = log.NewLogger(os.Stderr, log.ColorOption(false))
			return nil
		},
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		userHome = "."
	}
	root.PersistentFlags().StringVar(&homeBase, "home", userHome,
		"base directory for w3b2d (config will be under <home>/.w3b2d)")

	root.AddCommand(
		newInitCmd(env),
		newStartCmd(env),
	)
	return root
}

// Execute runs the command tree under a signal-aware context, so both init
// and start observe SIGINT/SIGTERM the same way.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}
