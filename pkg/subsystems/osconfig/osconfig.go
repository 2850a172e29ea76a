// Package osconfig implements the subsystem that renders the host
// configuration's opaque `os` block (hostname, timezone, users, sysctls —
// content hostd treats as pass-through, not its concern to interpret) onto
// the target root for other OS tooling to consume.
package osconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/hostd/pkg/subsystem"
)

// ConfigPath is where hostd writes the os block verbatim, minus the keys
// owned by other subsystems (netplan/network, owned by pkg/subsystems/network).
const ConfigPath = "/etc/hostd/os-config.yaml"

var reservedKeys = map[string]bool{
	"netplan": true,
	"network": true,
}

type subsys struct {
	subsystem.Base
}

// New returns the os-config subsystem.
func New() subsystem.Subsystem { return &subsys{} }

func (*subsys) Name() string { return "osconfig" }

// Configure writes every key of the os block not owned by another
// subsystem onto the target root.
func (*subsys) Configure(ctx *subsystem.Context) error {
	section := passthroughKeys(ctx.Spec.OS)
	if len(section) == 0 {
		return nil
	}

	data, err := yaml.Marshal(section)
	if err != nil {
		return fmt.Errorf("marshaling os config: %w", err)
	}
	configPath := filepath.Join(ctx.NewRootPath, ConfigPath)
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating os config directory: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("writing os config: %w", err)
	}
	return nil
}

func passthroughKeys(osBlock map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(osBlock))
	for k, v := range osBlock {
		if reservedKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}
