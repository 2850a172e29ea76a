package osutils

import (
	"bufio"
	"context"
	"os"
	"strings"
)

// Mount mounts and unmounts filesystems via the mount(8)/umount(8) tools.
type Mount struct{}

var _ Mounter = Mount{}

func (Mount) Mount(ctx context.Context, device, target, fsType string, options []string) error {
	args := []string{}
	if fsType != "" {
		args = append(args, "-t", fsType)
	}
	if len(options) > 0 {
		args = append(args, "-o", strings.Join(options, ","))
	}
	args = append(args, device, target)
	_, err := runCommand(ctx, "mount", args...)
	return err
}

func (Mount) Unmount(ctx context.Context, target string, force bool) error {
	args := []string{}
	if force {
		args = append(args, "-f")
	}
	args = append(args, target)
	_, err := runCommand(ctx, "umount", args...)
	return err
}

// Mounted reports whether target appears as a mount point in
// /proc/self/mounts.
func (Mount) Mounted(ctx context.Context, target string) (bool, error) {
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == target {
			return true, nil
		}
	}
	return false, scanner.Err()
}
