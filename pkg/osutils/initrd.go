package osutils

import "context"

// Dracut regenerates the initial ramdisk for a target root, used by the
// initrd subsystem during configure (§2).
type Dracut struct{}

var _ DracutTool = Dracut{}

// Regenerate runs dracut against the kernel version found under root,
// forcing a rebuild of the existing image in place.
func (Dracut) Regenerate(ctx context.Context, root, kernelVersion string) error {
	_, err := runCommand(ctx, "dracut", "--force", "--root", root, "--kver", kernelVersion)
	return err
}
