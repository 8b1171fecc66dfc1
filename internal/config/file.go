package config

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// applyFile overlays a YAML file on top of the current configuration.
// Only keys present in the file are touched.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func warnFileError(path string, err error) {
	log.WithError(err).Warnf("ignoring config overlay %s", path)
}
