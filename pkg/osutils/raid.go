package osutils

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cuemby/hostd/pkg/types"
)

// Mdadm assembles and stops software RAID arrays via mdadm(8).
type Mdadm struct{}

var _ RaidAssembler = Mdadm{}

func (Mdadm) Assemble(ctx context.Context, name string, level types.RaidLevel, members []string) error {
	devicePath := "/dev/" + name
	args := []string{
		"--create", devicePath,
		"--level=" + strconv.Itoa(int(level)),
		"--raid-devices=" + strconv.Itoa(len(members)),
		"--metadata=1.2",
		"--run",
	}
	args = append(args, members...)
	if _, err := runCommand(ctx, "mdadm", args...); err != nil {
		return fmt.Errorf("assembling raid array %s: %w", name, err)
	}
	return nil
}

func (Mdadm) Stop(ctx context.Context, name string) error {
	devicePath := "/dev/" + name
	if _, err := runCommand(ctx, "mdadm", "--stop", devicePath); err != nil {
		return fmt.Errorf("stopping raid array %s: %w", name, err)
	}
	return nil
}
