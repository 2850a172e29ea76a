package osutils

import (
	"context"

	"github.com/cuemby/hostd/pkg/types"
)

// Repartitioner creates GPT partitions on a disk per its resolved layout
// (§4.2.3 step 5).
type Repartitioner interface {
	Partition(ctx context.Context, diskDevice string, partitions []types.Partition) error
}

// FilesystemFormatter formats a block device with the given filesystem
// type, optionally tagging it with a label.
type FilesystemFormatter interface {
	Format(ctx context.Context, device string, fsType types.FilesystemType, label string) error
	Check(ctx context.Context, device string, fsType types.FilesystemType) error
	Resize(ctx context.Context, device string, fsType types.FilesystemType) error
}

// Mounter mounts and unmounts filesystems at a target path.
type Mounter interface {
	Mount(ctx context.Context, device, target, fsType string, options []string) error
	Unmount(ctx context.Context, target string, force bool) error
	Mounted(ctx context.Context, target string) (bool, error)
}

// RaidAssembler assembles and tears down software RAID arrays.
type RaidAssembler interface {
	Assemble(ctx context.Context, name string, level types.RaidLevel, members []string) error
	Stop(ctx context.Context, name string) error
}

// VerityManager formats and activates dm-verity data/hash device pairs.
type VerityManager interface {
	Format(ctx context.Context, dataDevice, hashDevice string) (rootHash string, err error)
	Open(ctx context.Context, name, dataDevice, hashDevice, rootHash string) error
	Close(ctx context.Context, name string) error
}

// CryptManager formats and opens LUKS2 encrypted volumes, optionally
// sealed to a TPM PCR policy (§3.7).
type CryptManager interface {
	Format(ctx context.Context, device string, pcrs []int) error
	Open(ctx context.Context, name, device string) error
	Close(ctx context.Context, name string) error
}

// EfiVarStore is the raw byte-level EFI variable interface pkg/efi builds
// its typed accessors on top of (§4.7/§6).
type EfiVarStore interface {
	ReadVariable(ctx context.Context, name, guid string) (attrs uint32, payload []byte, err error)
	WriteVariable(ctx context.Context, name, guid string, attrs uint32, payload []byte) error
}

// SystemdRepart drives the declarative systemd-repart tool against a
// definitions directory, used for first-boot partition growth
// (offline-initialize, §6).
type SystemdRepart interface {
	Apply(ctx context.Context, definitionsDir, disk string, dryRun bool) error
}

// DracutTool regenerates the initial ramdisk for a target root, used by
// the initrd subsystem during configure.
type DracutTool interface {
	Regenerate(ctx context.Context, root, kernelVersion string) error
}

// SetfilesTool relabels a filesystem tree against its SELinux policy,
// used by the selinux subsystem during configure.
type SetfilesTool interface {
	Relabel(ctx context.Context, root, policyFile string) error
}

// ScriptRunnerTool executes a user-supplied hook script chrooted into
// root, used by the hooks subsystem.
type ScriptRunnerTool interface {
	Run(ctx context.Context, root, scriptPath string, args []string) error
}
