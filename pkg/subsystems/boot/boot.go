// Package boot implements the subsystem that owns the kernel/initrd
// artifacts directory on the target root, independent of the ESP's own
// bootloader configuration (owned by pkg/subsystems/esp).
package boot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/hostd/pkg/subsystem"
)

// ArtifactsDir is where hostd expects the kernel and initrd for the
// current install to live on the target root.
const ArtifactsDir = "/boot"

type subsys struct {
	subsystem.Base
}

// New returns the boot subsystem.
func New() subsystem.Subsystem { return &subsys{} }

func (*subsys) Name() string { return "boot" }

// Provision creates the boot artifacts directory on the newroot; the
// kernel and initrd themselves arrive as part of the deployed OS image
// (storage subsystem) or are regenerated in place (initrd subsystem).
func (*subsys) Provision(ctx *subsystem.Context, mountPath string) error {
	dir := filepath.Join(mountPath, ArtifactsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating boot artifacts directory: %w", err)
	}
	return nil
}
