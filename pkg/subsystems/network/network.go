// Package network implements the subsystem that renders the host
// configuration's netplan section onto the target root's /etc/netplan.
// hostd does not ship a network stack of its own (spec Non-goals); it only
// writes the declarative config the OS-provided stack (systemd-networkd,
// NetworkManager) consumes.
package network

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/hostd/pkg/subsystem"
)

// ConfigPath is the netplan config file hostd writes its own managed
// section into, sorted ahead of any OS-shipped defaults by its number
// prefix.
const ConfigPath = "/etc/netplan/50-hostd.yaml"

type subsys struct {
	subsystem.Base
}

// New returns the network subsystem.
func New() subsystem.Subsystem { return &subsys{} }

func (*subsys) Name() string { return "network" }

// Configure writes the netplan section of the host configuration's OS
// block onto the target root, if present.
func (*subsys) Configure(ctx *subsystem.Context) error {
	netplan, ok := netplanSection(ctx.Spec.OS)
	if !ok {
		return nil
	}

	data, err := yaml.Marshal(netplan)
	if err != nil {
		return fmt.Errorf("marshaling netplan config: %w", err)
	}
	configPath := filepath.Join(ctx.NewRootPath, ConfigPath)
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating netplan directory: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("writing netplan config: %w", err)
	}
	return nil
}

// netplanSection reads the "netplan" key out of the host configuration's
// OS block, falling back to the legacy "network" key, which cmd/hostd-migrate
// rewrites in stored host-status records but a live HostConfiguration YAML
// may still carry.
func netplanSection(osBlock map[string]interface{}) (interface{}, bool) {
	if osBlock == nil {
		return nil, false
	}
	if v, ok := osBlock["netplan"]; ok {
		return v, true
	}
	if v, ok := osBlock["network"]; ok {
		return v, true
	}
	return nil, false
}
