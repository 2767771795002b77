package main

import (
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"showcheck/config"
)

type commandContext struct {
	configFlag   *string
	envFileFlag  *string
	logLevelFlag *string
	fastFlag     *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, envFileFlag, logLevelFlag *string, fastFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		envFileFlag:  envFileFlag,
		logLevelFlag: logLevelFlag,
		fastFlag:     fastFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, err := config.Load(strings.TrimSpace(*c.configFlag), strings.TrimSpace(*c.envFileFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if level := strings.ToLower(strings.TrimSpace(*c.logLevelFlag)); level != "" {
			cfg.Logging.Level = level
		}
		if *c.fastFlag {
			cfg.Run.Fast = true
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func newRootCommand() *cobra.Command {
	var configFlag, envFileFlag, logLevelFlag string
	var fastFlag bool

	ctx := newCommandContext(&configFlag, &envFileFlag, &logLevelFlag, &fastFlag)

	rootCmd := &cobra.Command{
		Use:           "showcheck",
		Short:         "Watch HouseSeats and 1stTix for new shows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	defaultConfig := os.Getenv("SHOWCHECK_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "showcheck.toml"
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", defaultConfig, "Configuration file path (missing file uses defaults)")
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "Optional .env file with credentials")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&fastFlag, "fast", false, "Skip the random pauses between portal requests")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newShowsCommand(ctx))
	rootCmd.AddCommand(newNotifiedCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))

	return rootCmd
}
