package config

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/logger"
)

// Load reads, decodes and validates a run configuration file
// Note: This function logs diagnostic information if a logger is provided
func Load(path string, log *logger.Logger) (*Config, error) {
	if log != nil {
		log.Debug("Loading run configuration", slog.String("path", path))
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.ConfigNotFound(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(
			err,
			errors.ErrCodeConfigPermission,
			fmt.Sprintf("Failed to read configuration: %s", path),
			"Permission denied or file is not readable",
			"Check file permissions with 'ls -l' and ensure the file is readable",
		)
	}

	cfg, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.ConfigParseError(path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if log != nil {
		log.Info("Run configuration loaded",
			slog.String("snapshots", cfg.Snapshots.Dir),
			slog.String("topology", cfg.Topology.Path),
			slog.String("transport", cfg.Transport.Kind),
			slog.Bool("journal", cfg.Journal.Enabled),
		)
	}
	return cfg, nil
}

// Decode parses a run configuration document, applies defaults and validates it
func Decode(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, errors.Wrap(
			err,
			errors.ErrCodeConfigParseError,
			"Failed to parse configuration",
			"Invalid YAML syntax, structure, or unknown fields (check for typos)",
			"Compare the file against examples/arca-replay.yaml",
		)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	// Strict mode rejects unknown fields (typo detection)
	var cfg Config
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}
