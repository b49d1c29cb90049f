package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/licitaflow/stagegate/internal/config"
	"github.com/licitaflow/stagegate/internal/deadline"
	"github.com/licitaflow/stagegate/internal/tools"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load(strings.TrimSpace(*c.configFlag))
	})
	return c.config, c.configErr
}

func (c *commandContext) calendar() (*deadline.Calculator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return deadline.NewCalculator(cfg.Calendar.Timezone)
}

func (c *commandContext) catalog() (*tools.Catalog, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Tools.CatalogPath != "" {
		return tools.LoadCatalog(cfg.Tools.CatalogPath)
	}
	return tools.DefaultCatalog()
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "stagegate",
		Short:         "Stage gating and workflow rules for procurement processes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["skipConfigLoad"] == "true" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newProgressCommand(ctx))
	rootCmd.AddCommand(newTimelineCommand(ctx))
	rootCmd.AddCommand(newToolsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
