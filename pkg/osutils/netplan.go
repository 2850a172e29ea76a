package osutils

import "context"

// NetplanApply invokes "netplan apply" to bring the rendered config live,
// used by the network subsystem's host-facing entry point (§6
// start-network). The subsystem itself only ever writes config under a
// target root (§4.2.2); applying it against the live root is a distinct,
// narrower operation the CLI alone performs.
func NetplanApply(ctx context.Context) error {
	_, err := runCommand(ctx, "netplan", "apply")
	return err
}

// Reboot requests an immediate system reboot via systemd, used once
// finalize reports OutcomeNeedsReboot (§6).
func Reboot(ctx context.Context) error {
	_, err := runCommand(ctx, "systemctl", "reboot")
	return err
}
