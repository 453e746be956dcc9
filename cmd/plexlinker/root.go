package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/plexlinker/plexlinker/internal/config"
)

type commandContext struct {
	configFlag  *string
	envFileFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, envFileFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		envFileFlag: envFileFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := config.LoadDotEnv(strings.TrimSpace(*c.envFileFlag)); err != nil {
			c.configErr = err
			return
		}
		cfg, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var envFileFlag string

	ctx := newCommandContext(&configFlag, &envFileFlag)
	runCmd := newRunCommand(ctx)

	rootCmd := &cobra.Command{
		Use:           "plexlinker",
		Short:         "Link Radarr movies into Sonarr shows as season 0 specials",
		Long:          "plexlinker reads movie-to-show rules, symlinks each movie file into the matching show's Season 00 folder and asks Sonarr and Radarr to rescan. Without a subcommand it runs one pass and exits.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: runCmd.RunE,
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "Environment file loaded before configuration")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newRulesCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
