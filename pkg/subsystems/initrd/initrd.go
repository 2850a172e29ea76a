// Package initrd implements the subsystem that regenerates the initial
// ramdisk for the target root after its configuration has settled, so the
// initrd reflects any module/driver changes the other subsystems made.
package initrd

import (
	"context"
	"fmt"

	"github.com/cuemby/hostd/pkg/osutils"
	"github.com/cuemby/hostd/pkg/subsystem"
)

// KernelVersionParam is the internal parameter naming the kernel version
// to regenerate the initrd for; a caller that knows the deployed kernel
// version passes it explicitly rather than have hostd probe the newroot.
const KernelVersionParam = "kernel-version"

type subsys struct {
	subsystem.Base
	dracut osutils.DracutTool
}

// New returns the initrd subsystem.
func New() subsystem.Subsystem { return &subsys{dracut: osutils.Dracut{}} }

func (*subsys) Name() string { return "initrd" }

// Configure regenerates the initrd inside the target root, if a kernel
// version was supplied for this invocation.
func (s *subsys) Configure(ctx *subsystem.Context) error {
	kernelVersion := ctx.InternalParams[KernelVersionParam]
	if kernelVersion == "" {
		return nil
	}
	if err := s.dracut.Regenerate(context.Background(), ctx.NewRootPath, kernelVersion); err != nil {
		return fmt.Errorf("regenerating initrd for kernel %s: %w", kernelVersion, err)
	}
	return nil
}
