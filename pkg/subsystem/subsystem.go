// Package subsystem defines the stable interface the engine drives every
// registered subsystem through (§4.4), and the per-invocation context
// threaded across its phases.
package subsystem

import (
	"github.com/cuemby/hostd/pkg/storagegraph"
	"github.com/cuemby/hostd/pkg/types"
)

// AllowedOperations gates a servicing invocation's right to stage and/or
// finalize (§4.2.7).
type AllowedOperations struct {
	Stage    bool
	Finalize bool
}

// Context is the mutable state a servicing invocation threads through
// servicing-type selection and all four pipeline phases. The engine owns
// it; subsystems read and annotate it but never persist it directly.
type Context struct {
	// Spec is the host configuration driving this invocation.
	Spec types.HostConfiguration
	// PreviousSpec is set during update and rollback flows.
	PreviousSpec *types.HostConfiguration

	// ServicingType is decided by SelectServicingType and then fixed for
	// the remainder of the invocation.
	ServicingType types.ServicingType

	// StorageGraph is built once from Spec before validate runs.
	StorageGraph *storagegraph.Graph

	// ResolvedDevices maps storage-graph node id -> /dev path, populated
	// once block devices are created and before provision runs.
	ResolvedDevices map[string]string

	// HostStatus is the record being evolved by this invocation. Subsystems
	// may read it but must not mutate persisted fields directly; the
	// engine is the only writer of the datastore (§4.5).
	HostStatus *types.HostStatus

	// Allowed records the stage/finalize gate for this invocation.
	Allowed AllowedOperations

	// NewRootPath is the scratch mount path ("/" for runtime update).
	NewRootPath string

	// InternalParams mirrors Spec.InternalParams for quick lookup.
	InternalParams map[string]string
}

// NoTransitionRequested reports the "no-transition" internal parameter
// (§3.4), used by finalize to decide between returning Done and
// requesting a reboot.
func (c *Context) NoTransitionRequested() bool {
	return c.InternalParams[types.InternalParamNoTransition] == "true"
}

// Subsystem is the stable contract every one of the ten fixed pipeline
// members implements (§4.4). Embed Base to get the common defaults
// (WritableEtcOverlay true, SelectServicingType abstaining, and no-op
// phases) and override only what the subsystem actually does.
type Subsystem interface {
	// Name identifies the subsystem in logs, errors, and metrics labels.
	Name() string

	// WritableEtcOverlay reports whether this subsystem needs /etc
	// writable during provision/configure when the root filesystem is
	// read-only (verity). Most subsystems need it; a subsystem that never
	// touches /etc may opt out to skip the overlay mount entirely when no
	// other subsystem in the phase needs it either.
	WritableEtcOverlay() bool

	// SelectServicingType proposes a servicing type for this invocation,
	// or (zero value, false) to abstain. The engine takes the strongest
	// proposal across all subsystems (§4.2.1).
	SelectServicingType(ctx *Context) (types.ServicingType, bool, error)

	// ValidateHostConfig statically and dynamically validates the portion
	// of Spec this subsystem owns.
	ValidateHostConfig(ctx *Context) error

	// Prepare performs non-destructive preparation: fetching, caching,
	// generating derived configuration.
	Prepare(ctx *Context) error

	// Provision writes to the newroot mounted at mountPath before it is
	// booted.
	Provision(ctx *Context, mountPath string) error

	// Configure finalizes configuration of the target root. It takes no
	// mountPath: there is no chroot, so implementations that write into
	// the target root must join ctx.NewRootPath themselves (it is "/"
	// for runtime update, where the target root is the live host).
	Configure(ctx *Context) error
}

// Base implements Subsystem with no-op defaults. Concrete subsystems embed
// it and override only the methods they need, matching the Rust trait's
// default-method shape (§4.4).
type Base struct{}

func (Base) WritableEtcOverlay() bool { return true }

func (Base) SelectServicingType(*Context) (types.ServicingType, bool, error) {
	return "", false, nil
}

func (Base) ValidateHostConfig(*Context) error { return nil }

func (Base) Prepare(*Context) error { return nil }

func (Base) Provision(*Context, string) error { return nil }

func (Base) Configure(*Context) error { return nil }

// RollbackKind names which in-place rollback method a subsystem should
// apply during a manual runtime rollback (§4.2.6).
type RollbackKind string

const (
	RollbackKindRuntime RollbackKind = "runtime"
)

// Rollbacker is implemented by subsystems that can reverse a prior
// configure in place, without a reboot, for manual runtime rollback. Most
// subsystems don't need this — runtime rollback targets configuration
// drift, not block-device content — so it's a narrower, optional
// interface rather than part of Subsystem itself.
type Rollbacker interface {
	Rollback(ctx *Context, previous types.HostConfiguration) error
}
