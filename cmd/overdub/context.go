package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"overdub/internal/config"
	"overdub/internal/credits"
	"overdub/internal/jobs"
)

type commandContext struct {
	configFlag *string
	uidFlag    *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, uidFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		uidFlag:    uidFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) uid() string {
	if c.uidFlag == nil {
		return "local"
	}
	uid := strings.TrimSpace(*c.uidFlag)
	if uid == "" {
		return "local"
	}
	return uid
}

// withStore opens the job database for the duration of one command. The CLI
// shares the SQLite file with the daemon; WAL mode keeps both sides safe.
func (c *commandContext) withStore(fn func(*jobs.Store, *credits.Ledger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store, credits.NewLedger(store.DB()))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
