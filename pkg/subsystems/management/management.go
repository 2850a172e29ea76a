// Package management implements the subsystem that configures hostd's
// own agent config on the runtime OS it just deployed: the datastore path
// it trusts, and, on self-upgrade, its own binary (§4.4).
package management

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

// AgentConfigPath is the well-known location of hostd's own process
// config on the target root, read back to cross-check the datastore path
// it was deployed with.
const AgentConfigPath = "/etc/hostd/agent.conf"

// BinaryPath is hostd's own installed binary path, copied into the
// newroot when self-upgrade is requested.
const BinaryPath = "/usr/bin/hostd"

type subsys struct {
	subsystem.Base
}

// New returns the management subsystem.
func New() subsystem.Subsystem { return &subsys{} }

func (*subsys) Name() string { return "management" }

// ValidateHostConfig refuses a datastore-path change outside a clean
// install, since relocating the store mid-fleet-life would orphan the
// old one.
func (*subsys) ValidateHostConfig(ctx *subsystem.Context) error {
	if ctx.Spec.Trident.Disabled {
		return nil
	}
	if ctx.ServicingType == types.ServicingTypeCleanInstall || ctx.PreviousSpec == nil {
		return nil
	}
	oldPath := ctx.PreviousSpec.Trident.DatastorePath
	newPath := ctx.Spec.Trident.DatastorePath
	if oldPath != newPath {
		return fmt.Errorf("datastore path changed from %q to %q outside a clean install", oldPath, newPath)
	}
	return nil
}

// Provision copies hostd's own binary into the newroot when self-upgrade
// is requested.
func (*subsys) Provision(ctx *subsystem.Context, mountPath string) error {
	if ctx.Spec.Trident.Disabled || !ctx.Spec.Trident.SelfUpgrade {
		return nil
	}
	dst := filepath.Join(mountPath, BinaryPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("preparing newroot binary directory: %w", err)
	}
	return copyFile(BinaryPath, dst)
}

// Configure ensures the agent config on the target root agrees with the
// datastore path this invocation deployed.
func (*subsys) Configure(ctx *subsystem.Context) error {
	if ctx.Spec.Trident.Disabled {
		return nil
	}
	agentConfigPath := filepath.Join(ctx.NewRootPath, AgentConfigPath)
	return configureAgentConfig(agentConfigPath, ctx.Spec.Trident.DatastorePath, ctx.StorageGraph != nil && ctx.StorageGraph.RootFilesystemIsVerity())
}

func configureAgentConfig(agentConfigPath, datastorePath string, rootIsVerity bool) error {
	const defaultDatastorePath = "/var/lib/hostd/hostd.db"

	data, err := os.ReadFile(agentConfigPath)
	if err == nil {
		configured := defaultDatastorePath
		for _, line := range strings.Split(string(data), "\n") {
			if rest, ok := strings.CutPrefix(line, "DatastorePath="); ok {
				configured = strings.TrimSpace(rest)
				break
			}
		}
		if configured != datastorePath {
			return fmt.Errorf("agent config datastore path %q does not match expected %q", configured, datastorePath)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("reading agent config: %w", err)
	}

	if datastorePath == defaultDatastorePath {
		return nil
	}
	if rootIsVerity {
		return fmt.Errorf("agent configuration file does not exist and root filesystem is verity")
	}
	if err := os.MkdirAll(filepath.Dir(agentConfigPath), 0o755); err != nil {
		return fmt.Errorf("creating agent config directory: %w", err)
	}
	return os.WriteFile(agentConfigPath, []byte(fmt.Sprintf("DatastorePath=%s\n", datastorePath)), 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return out.Sync()
}
