package engine

import (
	"context"

	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

// RuntimeUpdate runs the runtime-update/hot-patch envelope of §4.2.5: the
// same validate/prepare/provision/configure pipeline as A/B update but
// executed with newroot = "/", transitioning straight back to provisioned.
// No reboot is requested, except for update-and-reboot when the
// no-transition internal parameter is not set. servicingType must already be one of
// {no-active-servicing, hot-patch, normal-update, update-and-reboot}.
func (e *Engine) RuntimeUpdate(ctx context.Context, spec types.HostConfiguration, inv Invocation, servicingType types.ServicingType) (Outcome, error) {
	if servicingType == types.ServicingTypeNoActiveServicing {
		return OutcomeDone, nil
	}

	current, err := e.currentHostStatus(spec)
	if err != nil {
		return OutcomeDone, err
	}
	if current.ServicingState != types.ServicingStateProvisioned {
		return OutcomeDone, &hosterrors.InvalidRollbackState{
			Reason: "runtime update requires the host to already be provisioned",
		}
	}

	sctx := &subsystem.Context{
		Spec:           spec,
		PreviousSpec:   &current.Spec,
		ServicingType:  servicingType,
		HostStatus:     current,
		Allowed:        inv.Allowed,
		NewRootPath:    "/",
		InternalParams: spec.InternalParams,
	}

	if err := e.validateHostConfig(sctx); err != nil {
		return OutcomeDone, err
	}
	if err := e.prepare(sctx); err != nil {
		return OutcomeDone, err
	}
	if err := e.provision(ctx, sctx, "/"); err != nil {
		return OutcomeDone, e.recordFailure(spec, "engine", err)
	}
	if err := e.configure(ctx, sctx, "/", false); err != nil {
		return OutcomeDone, e.recordFailure(spec, "engine", err)
	}

	if _, err := e.store.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.Spec = spec
		hs.ServicingState = types.ServicingStateProvisioned
		hs.LastError = nil
		return nil
	}); err != nil {
		return OutcomeDone, &hosterrors.InternalError{Message: "persisting updated host status", Err: err}
	}

	if servicingType == types.ServicingTypeUpdateAndReboot && !sctx.NoTransitionRequested() {
		return OutcomeNeedsReboot, nil
	}
	return OutcomeDone, nil
}
