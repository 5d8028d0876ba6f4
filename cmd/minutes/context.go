package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"minutes/internal/client"
	"minutes/internal/config"
)

type commandContext struct {
	serverFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(serverFlag, configFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		configFlag: configFlag,
	}
}

// ensureConfig loads the configuration once. The CLI only talks to the daemon,
// so it neither creates directories nor checks collaborator credentials.
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
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) serverURL(cfg *config.Config) string {
	if c.serverFlag != nil {
		if override := strings.TrimSpace(*c.serverFlag); override != "" {
			return override
		}
	}
	return cfg.Client.ServerURL
}

func (c *commandContext) client() (*client.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return client.New(c.serverURL(cfg), cfg.Paths.APIToken, nil), nil
}

func (c *commandContext) poller(cl *client.Client) *client.Poller {
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return client.NewPoller(cl, 0, 0, nil)
	}
	return client.NewPoller(cl, cfg.PollInterval(), cfg.Client.MaxTransportFailures, nil)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
