package config

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/davidbalbert/globalrouting/sync"
)

// ConfigManager holds the running configuration and notifies listeners when
// it changes. Sending SIGHUP to the process reloads the file.
type ConfigManager struct {
	*sync.Notifier[*Config]
	path string
	log  *slog.Logger
}

func NewConfigManager(path string, logger *slog.Logger) (*ConfigManager, error) {
	conf, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &ConfigManager{
		Notifier: sync.NewNotifier(conf),
		path:     path,
		log:      logger,
	}, nil
}

func (c *ConfigManager) Run(ctx context.Context) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if err := c.Reload(); err != nil {
				c.log.Error("failed to reload config", "path", c.path, "error", err)
			}
		}
	}
}

func (c *ConfigManager) Path() string {
	return c.path
}

// Reload reads the config file again. The running config is unchanged if the
// new one is invalid.
func (c *ConfigManager) Reload() error {
	conf, err := LoadConfig(c.path)
	if err != nil {
		return err
	}

	c.log.Info("reloaded config", "path", c.path, "routers", len(conf.Routers))
	c.NotifyChange(conf)

	return nil
}

func (c *ConfigManager) UpdateConfig(conf *Config) error {
	err := conf.validate()
	if err != nil {
		return err
	}

	c.NotifyChange(conf)

	return nil
}
