package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/w3b2/w3b2-solana-go/config"
)

func newInitCmd(env *cliEnv) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the daemon home with a default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := env.configPath()

			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}

			if err := config.WriteDefaultFile(cfgPath); err != nil {
				return fmt.Errorf("write default config: %w", err)
			}

			env.logger.Info("daemon home initialized", "config", cfgPath)
			env.logger.Info("set chain.program_id and the node endpoints, then run `w3b2d start`")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
