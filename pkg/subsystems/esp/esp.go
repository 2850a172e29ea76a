// Package esp implements the subsystem that owns the ESP filesystem's
// bootloader configuration: it is never redeployed through the image
// streaming path (§4.3), only configured in place by writing loader
// entries (§6). No fallback boot file is written.
package esp

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/hostd/pkg/storagegraph"
	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

// FallbackBootPath is the architecture-independent fallback EFI
// application path every UEFI firmware probes when no boot entry is
// registered in NVRAM.
const FallbackBootPath = "/EFI/BOOT/BOOTX64.EFI"

// LoaderEntryTemplate is the systemd-boot loader entry hostd writes for
// its own managed boot entry.
const LoaderEntryTemplate = `title hostd
linux /EFI/Linux/%s/vmlinuz
initrd /EFI/Linux/%s/initrd
options %s
`

type subsys struct {
	subsystem.Base
}

// New returns the ESP subsystem.
func New() subsystem.Subsystem { return &subsys{} }

func (*subsys) Name() string { return "esp" }

// WritableEtcOverlay is false: the ESP subsystem only ever writes under
// the ESP's own mount point, never /etc.
func (*subsys) WritableEtcOverlay() bool { return false }

// ValidateHostConfig rejects a storage topology with more than one ESP
// partition; a topology with none passes.
func (*subsys) ValidateHostConfig(ctx *subsystem.Context) error {
	if ctx.StorageGraph == nil {
		return nil
	}
	espPartitions := espPartitions(ctx.StorageGraph)
	if len(espPartitions) == 0 {
		return nil
	}
	if len(espPartitions) > 1 {
		return fmt.Errorf("exactly one esp partition is supported, found %d", len(espPartitions))
	}
	return nil
}

// Provision writes the systemd-boot loader entry for this install onto the
// ESP mount and creates its EFI/Linux directory, keyed by install-index so
// clean install and A/B update never collide with a prior install's entry.
// Nothing is written to FallbackBootPath.
func (s *subsys) Provision(ctx *subsystem.Context, mountPath string) error {
	if ctx.StorageGraph == nil {
		return nil
	}
	espMount, ok := espMountPath(ctx.StorageGraph)
	if !ok {
		return nil
	}

	installID := fmt.Sprintf("hostd-%d", ctx.HostStatus.InstallIndex)
	entryDir := filepath.Join(mountPath, espMount, "EFI", "Linux", installID)
	if err := os.MkdirAll(entryDir, 0o755); err != nil {
		return fmt.Errorf("creating esp entry directory: %w", err)
	}

	loaderDir := filepath.Join(mountPath, espMount, "loader", "entries")
	if err := os.MkdirAll(loaderDir, 0o755); err != nil {
		return fmt.Errorf("creating loader entries directory: %w", err)
	}
	entryPath := filepath.Join(loaderDir, installID+".conf")
	content := fmt.Sprintf(LoaderEntryTemplate, installID, installID, kernelCmdline(ctx))
	if err := os.WriteFile(entryPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing loader entry: %w", err)
	}

	return nil
}

func kernelCmdline(ctx *subsystem.Context) string {
	if v, ok := ctx.InternalParams["kernel-cmdline"]; ok && v != "" {
		return v
	}
	return "rw"
}

func espPartitions(graph *storagegraph.Graph) []*storagegraph.Node {
	var out []*storagegraph.Node
	for _, p := range graph.NodesOfKind(storagegraph.NodeKindPartition) {
		if p.Partition != nil && p.Partition.Type == types.PartitionTypeESP {
			out = append(out, p)
		}
	}
	return out
}

// espMountPath finds the mount point of the filesystem sitting on the ESP
// partition, if the configuration mounts it at all.
func espMountPath(graph *storagegraph.Graph) (string, bool) {
	parts := espPartitions(graph)
	if len(parts) != 1 {
		return "", false
	}
	espID := parts[0].ID
	for _, fs := range graph.NodesOfKind(storagegraph.NodeKindFilesystem) {
		if fs.Filesystem.DeviceID == espID && fs.Filesystem.MountPoint != nil {
			return fs.Filesystem.MountPoint.Path, true
		}
	}
	return "", false
}
