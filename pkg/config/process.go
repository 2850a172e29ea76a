package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/log"
)

// ProcessConfig holds the process-wide settings kept apart from the
// host-configuration document: how to log, where to expose metrics, and
// whether the optional gRPC surface is enabled. In cmd/hostd only the
// daemon verb loads it.
type ProcessConfig struct {
	LogLevel    log.Level `yaml:"log-level" validate:"omitempty,oneof=debug info warn error"`
	LogJSON     bool      `yaml:"log-json"`
	StateLogDir string    `yaml:"state-log-dir,omitempty"`

	MetricsAddress string `yaml:"metrics-address,omitempty" validate:"omitempty,hostname_port"`

	GRPCEnabled bool   `yaml:"grpc-enabled"`
	GRPCAddress string `yaml:"grpc-address,omitempty" validate:"required_if=GRPCEnabled true,omitempty,hostname_port"`
}

// DefaultProcessConfig returns the settings used when no process config
// file is given.
func DefaultProcessConfig() ProcessConfig {
	return ProcessConfig{
		LogLevel: log.InfoLevel,
	}
}

// LoadProcessConfig reads and validates the process configuration file at
// path. An empty path is not an error — callers pass the empty string when
// none was configured to get defaults. A non-empty path that cannot be
// read is reported as an InvalidInput.
func LoadProcessConfig(path string) (ProcessConfig, error) {
	cfg := DefaultProcessConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ProcessConfig{}, &hosterrors.InvalidInput{Err: fmt.Errorf("reading process config %s: %w", path, err)}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return ProcessConfig{}, &hosterrors.InvalidInput{Err: fmt.Errorf("decoding process config: %w", err)}
	}

	if err := structValidator.Struct(&cfg); err != nil {
		return ProcessConfig{}, &hosterrors.InvalidInput{Err: fmt.Errorf("validating process config: %w", err)}
	}

	return cfg, nil
}
