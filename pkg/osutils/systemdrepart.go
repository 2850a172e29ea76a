package osutils

import "context"

// SystemdRepartTool drives systemd-repart(8) against a definitions
// directory, used for first-boot partition growth (§6 offline-initialize,
// rebuild-raid).
type SystemdRepartTool struct{}

var _ SystemdRepart = SystemdRepartTool{}

func (SystemdRepartTool) Apply(ctx context.Context, definitionsDir, disk string, dryRun bool) error {
	args := []string{"--definitions=" + definitionsDir}
	if dryRun {
		args = append(args, "--dry-run=yes")
	} else {
		args = append(args, "--dry-run=no")
	}
	args = append(args, disk)

	_, err := runCommand(ctx, "systemd-repart", args...)
	return err
}
