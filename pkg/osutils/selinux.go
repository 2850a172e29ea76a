package osutils

import "context"

// Setfiles relabels a filesystem tree against its SELinux policy, used by
// the selinux subsystem during configure (§2).
type Setfiles struct{}

var _ SetfilesTool = Setfiles{}

// Relabel runs setfiles -r root against the policy file for every path
// under root.
func (Setfiles) Relabel(ctx context.Context, root, policyFile string) error {
	_, err := runCommand(ctx, "setfiles", "-r", root, policyFile, root)
	return err
}
