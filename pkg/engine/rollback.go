package engine

import (
	"context"
	"fmt"

	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

// ManualRollbackKind selects which in-place or A/B-swap rollback method
// to apply (§4.2.6).
type ManualRollbackKind string

const (
	ManualRollbackKindAB      ManualRollbackKind = "ab"
	ManualRollbackKindRuntime ManualRollbackKind = "runtime"
)

// RollbackChain returns the ordered, most-recent-first list of prior host
// statuses still recoverable for the current install (§4.2.6, §8).
func (e *Engine) RollbackChain(spec types.HostConfiguration) ([]*types.HostStatus, error) {
	current, err := e.currentHostStatus(spec)
	if err != nil {
		return nil, err
	}
	return e.store.RollbackChain(current.InstallIndex)
}

// RollbackTarget returns the spec that a manual rollback right now would
// restore, or nil if no rollback is available.
func (e *Engine) RollbackTarget(spec types.HostConfiguration) (*types.HostConfiguration, error) {
	chain, err := e.RollbackChain(spec)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return &chain[0].Spec, nil
}

// ManualRollback runs the manual-rollback flow of §4.2.6.
func (e *Engine) ManualRollback(ctx context.Context, spec types.HostConfiguration, kind ManualRollbackKind, inv Invocation) (Outcome, error) {
	switch kind {
	case ManualRollbackKindAB:
		return e.manualRollbackAB(ctx, spec, inv)
	case ManualRollbackKindRuntime:
		return e.manualRollbackRuntime(ctx, spec, inv)
	default:
		return OutcomeDone, &hosterrors.InvalidInput{Err: fmt.Errorf("unknown manual rollback kind %q", kind)}
	}
}

func (e *Engine) manualRollbackAB(ctx context.Context, spec types.HostConfiguration, inv Invocation) (Outcome, error) {
	current, err := e.currentHostStatus(spec)
	if err != nil {
		return OutcomeDone, err
	}
	if err := checkGate(current.ServicingState, inv, types.ServicingStateProvisioned, types.ServicingStateManualRollbackABStaged); err != nil {
		return OutcomeDone, err
	}

	target, err := e.RollbackTarget(spec)
	if err != nil {
		return OutcomeDone, err
	}
	if target == nil {
		return OutcomeDone, &hosterrors.InvalidRollbackState{Reason: "no recoverable A/B rollback target in the datastore history"}
	}

	rollbackSide := current.ActiveVolume.Other()

	hs, err := e.store.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.PreviousSpec = &current.Spec
		hs.Spec = *target
		hs.ServicingState = types.ServicingStateManualRollbackABStaged
		hs.ActiveVolume = rollbackSide
		hs.LastError = nil
		return nil
	})
	if err != nil {
		return OutcomeDone, &hosterrors.InternalError{Message: "persisting rollback-staged host status", Err: err}
	}

	if !inv.hasFinalize() {
		e.persistBestEffort("/", hs.ServicingState)
		return OutcomeDone, nil
	}

	if err := e.finalizeBootEntry(ctx, "/"); err != nil {
		return OutcomeDone, e.recordFailure(spec, "esp", err)
	}

	if _, err := e.store.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.ServicingState = types.ServicingStateManualRollbackABFinalized
		return nil
	}); err != nil {
		return OutcomeDone, &hosterrors.InternalError{Message: "persisting rollback-finalized host status", Err: err}
	}

	return OutcomeNeedsReboot, nil
}

func (e *Engine) manualRollbackRuntime(ctx context.Context, spec types.HostConfiguration, inv Invocation) (Outcome, error) {
	current, err := e.currentHostStatus(spec)
	if err != nil {
		return OutcomeDone, err
	}
	if err := checkGate(current.ServicingState, inv, types.ServicingStateProvisioned, types.ServicingStateManualRollbackRunStaged); err != nil {
		return OutcomeDone, err
	}

	target, err := e.RollbackTarget(spec)
	if err != nil {
		return OutcomeDone, err
	}
	if target == nil {
		return OutcomeDone, &hosterrors.InvalidRollbackState{Reason: "no recoverable runtime rollback target in the datastore history"}
	}

	if _, err := e.store.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.PreviousSpec = &current.Spec
		hs.ServicingState = types.ServicingStateManualRollbackRunStaged
		return nil
	}); err != nil {
		return OutcomeDone, &hosterrors.InternalError{Message: "persisting rollback-staged host status", Err: err}
	}

	sctx := &subsystem.Context{
		Spec:           *target,
		PreviousSpec:   &current.Spec,
		HostStatus:     current,
		Allowed:        inv.Allowed,
		NewRootPath:    "/",
		InternalParams: target.InternalParams,
	}
	if err := e.runPhase("rollback", func(s subsystem.Subsystem) error {
		rb, ok := s.(subsystem.Rollbacker)
		if !ok {
			return nil
		}
		return rb.Rollback(sctx, current.Spec)
	}); err != nil {
		return OutcomeDone, e.recordFailure(spec, "engine", err)
	}

	if _, err := e.store.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.Spec = *target
		hs.ServicingState = types.ServicingStateProvisioned
		hs.LastError = nil
		return nil
	}); err != nil {
		return OutcomeDone, &hosterrors.InternalError{Message: "persisting rollback-complete host status", Err: err}
	}

	return OutcomeDone, nil
}
