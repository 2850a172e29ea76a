package osutils

import (
	"context"
	"fmt"

	"github.com/cuemby/hostd/pkg/types"
)

// Mkfs formats and resizes filesystems via the mkfs/e2fsck/resize2fs/
// xfs_growfs family of tools.
type Mkfs struct{}

var _ FilesystemFormatter = Mkfs{}

func mkfsBinary(t types.FilesystemType) (string, error) {
	switch t {
	case types.FilesystemTypeExt2:
		return "mkfs.ext2", nil
	case types.FilesystemTypeExt3:
		return "mkfs.ext3", nil
	case types.FilesystemTypeExt4:
		return "mkfs.ext4", nil
	case types.FilesystemTypeXFS:
		return "mkfs.xfs", nil
	case types.FilesystemTypeVFAT:
		return "mkfs.vfat", nil
	case types.FilesystemTypeNTFS:
		return "mkfs.ntfs", nil
	case types.FilesystemTypeSwap:
		return "mkswap", nil
	default:
		return "", fmt.Errorf("no mkfs tool for filesystem type %q", t)
	}
}

func (Mkfs) Format(ctx context.Context, device string, fsType types.FilesystemType, label string) error {
	binary, err := mkfsBinary(fsType)
	if err != nil {
		return err
	}

	args := []string{}
	if label != "" {
		switch fsType {
		case types.FilesystemTypeVFAT:
			args = append(args, "-n", label)
		case types.FilesystemTypeXFS:
			args = append(args, "-L", label)
		case types.FilesystemTypeSwap:
			args = append(args, "-L", label)
		default:
			args = append(args, "-L", label)
		}
	}
	args = append(args, device)

	_, err = runCommand(ctx, binary, args...)
	return err
}

// Check runs a filesystem consistency check prior to resize, for
// ext-family filesystems only (§4.3 step 5).
func (Mkfs) Check(ctx context.Context, device string, fsType types.FilesystemType) error {
	if !fsType.ExtFamily() {
		return nil
	}
	_, err := runCommand(ctx, "e2fsck", "-f", "-y", device)
	return err
}

// Resize grows an ext-family filesystem to fill its device. xfs_growfs
// requires a mount point rather than a device and is not used for the
// deploy-time resize path (§4.3 only resizes ext-family images).
func (Mkfs) Resize(ctx context.Context, device string, fsType types.FilesystemType) error {
	if !fsType.ExtFamily() {
		return fmt.Errorf("resize is only supported for ext-family filesystems, got %q", fsType)
	}
	_, err := runCommand(ctx, "resize2fs", device)
	return err
}
