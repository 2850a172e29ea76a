package osutils

import "context"

// ScriptRunner executes a user-supplied hook script chrooted into root,
// used by the hooks subsystem (§3.1's opaque `scripts` section).
type ScriptRunner struct{}

var _ ScriptRunnerTool = ScriptRunner{}

// Run chroots into root and executes the script at scriptPath with args.
func (ScriptRunner) Run(ctx context.Context, root, scriptPath string, args []string) error {
	cmdArgs := append([]string{root, scriptPath}, args...)
	_, err := runCommand(ctx, "chroot", cmdArgs...)
	return err
}
