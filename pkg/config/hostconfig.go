package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/types"
)

var structValidator = validator.New()

// LoadHostConfiguration reads and validates the host-configuration document
// at path (§3.1). Unknown top-level and nested fields are rejected before
// any field-level validation runs.
func LoadHostConfiguration(path string) (*types.HostConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &hosterrors.InvalidInput{Err: fmt.Errorf("reading host configuration %s: %w", path, err)}
	}
	return ParseHostConfiguration(data)
}

// ParseHostConfiguration decodes and validates a host-configuration
// document already read into memory.
func ParseHostConfiguration(data []byte) (*types.HostConfiguration, error) {
	var cfg types.HostConfiguration

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, &hosterrors.InvalidInput{Err: fmt.Errorf("decoding host configuration: %w", err)}
	}

	if err := structValidator.Struct(&cfg); err != nil {
		return nil, &hosterrors.InvalidInput{Err: fmt.Errorf("validating host configuration: %w", err)}
	}

	return &cfg, nil
}
