// Package managementos implements the subsystem that configures the
// management OS itself — the environment hostd is currently running in —
// as opposed to the target root being provisioned. It is first in the
// fixed pipeline order because every later subsystem may depend on the
// management OS already being in its expected state.
package managementos

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/hostd/pkg/subsystem"
)

// ConfigPath is where hostd records the management-OS block it applied,
// always on the live running root regardless of newroot, since this
// subsystem configures the current boot environment.
const ConfigPath = "/etc/hostd/management-os.yaml"

type subsys struct {
	subsystem.Base
	// configPath defaults to ConfigPath; overridable so tests don't write
	// into the real host's /etc.
	configPath string
}

// New returns the management-OS subsystem.
func New() subsystem.Subsystem { return &subsys{configPath: ConfigPath} }

func (*subsys) Name() string { return "managementos" }

// WritableEtcOverlay is false: this subsystem writes to the live running
// root's /etc, never the newroot the overlay scopes.
func (*subsys) WritableEtcOverlay() bool { return false }

// Configure applies the management-OS block, if any, to the live host.
func (s *subsys) Configure(ctx *subsystem.Context) error {
	if len(ctx.Spec.ManagementOS) == 0 {
		return nil
	}

	data, err := yaml.Marshal(ctx.Spec.ManagementOS)
	if err != nil {
		return fmt.Errorf("marshaling management-os config: %w", err)
	}
	path := s.configPath
	if path == "" {
		path = ConfigPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating management-os config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing management-os config: %w", err)
	}
	return nil
}
