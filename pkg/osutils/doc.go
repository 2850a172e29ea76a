// Package osutils wraps the external tools hostd shells out to —
// partitioning, filesystem formatting, mounting, RAID assembly, dm-verity
// and LUKS setup, and EFI variable access — behind narrow Go interfaces
// (§1, §4.6). The core engine and subsystems consume these interfaces;
// this package supplies the only concrete, os/exec-backed implementations,
// translating subprocess failures into the hosterrors taxonomy (§7).
package osutils
