package engine

import (
	"context"

	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/storagegraph"
	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

// ABUpdate runs the A/B update flow of §4.2.4: stage the new spec onto
// the currently inactive side, then (if finalizing) flip the boot target
// to it.
func (e *Engine) ABUpdate(ctx context.Context, spec types.HostConfiguration, inv Invocation) (Outcome, error) {
	current, err := e.currentHostStatus(spec)
	if err != nil {
		return OutcomeDone, err
	}
	if current.ActiveVolume == types.ABSideNone {
		return OutcomeDone, &hosterrors.InvalidInput{Err: errNoActiveVolume}
	}

	if err := checkGate(current.ServicingState, inv, types.ServicingStateProvisioned, types.ServicingStateABUpdateStaged); err != nil {
		return OutcomeDone, err
	}

	graph, err := storagegraph.Build(spec)
	if err != nil {
		return OutcomeDone, &hosterrors.InvalidInput{Err: err}
	}

	sctx := &subsystem.Context{
		Spec:           spec,
		PreviousSpec:   &current.Spec,
		StorageGraph:   graph,
		HostStatus:     current,
		Allowed:        inv.Allowed,
		InternalParams: spec.InternalParams,
	}

	servicingType, err := e.selectServicingType(sctx)
	if err != nil {
		return OutcomeDone, err
	}
	if servicingType != types.ServicingTypeABUpdate {
		return e.RuntimeUpdate(ctx, spec, inv, servicingType)
	}
	sctx.ServicingType = servicingType

	if err := e.validateHostConfig(sctx); err != nil {
		return OutcomeDone, err
	}
	if err := e.prepare(sctx); err != nil {
		return OutcomeDone, err
	}

	// Step 4: close any stale verity devices from a previous failed
	// attempt before reformatting the inactive side.
	e.closeStaleVerityDevices(ctx, graph)

	inactiveSide := current.ActiveVolume.Other()
	sctx.NewRootPath = ScratchMountPath

	resolved, err := e.createBlockDevices(ctx, graph, spec)
	if err != nil {
		e.unmountAll(ctx, graph, ScratchMountPath)
		return OutcomeDone, e.recordFailure(spec, "storage", err)
	}
	if err := e.mountFilesystems(ctx, graph, resolved, ScratchMountPath); err != nil {
		e.unmountAll(ctx, graph, ScratchMountPath)
		return OutcomeDone, e.recordFailure(spec, "storage", err)
	}
	sctx.ResolvedDevices = resolved

	if err := e.provision(ctx, sctx, ScratchMountPath); err != nil {
		e.unmountAll(ctx, graph, ScratchMountPath)
		return OutcomeDone, e.recordFailure(spec, "engine", err)
	}
	if err := e.configure(ctx, sctx, ScratchMountPath, isUKIDeployment(spec)); err != nil {
		e.unmountAll(ctx, graph, ScratchMountPath)
		return OutcomeDone, e.recordFailure(spec, "engine", err)
	}

	e.unmountAll(ctx, graph, ScratchMountPath)

	hs, err := e.store.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.Spec = spec
		hs.PreviousSpec = &current.Spec
		hs.ServicingState = types.ServicingStateABUpdateStaged
		hs.ActiveVolume = inactiveSide
		hs.LastError = nil
		return nil
	})
	if err != nil {
		return OutcomeDone, &hosterrors.InternalError{Message: "persisting staged host status", Err: err}
	}

	if !inv.hasFinalize() {
		e.persistBestEffort(ScratchMountPath, hs.ServicingState)
		return OutcomeDone, nil
	}

	if err := e.finalizeBootEntry(ctx, ScratchMountPath); err != nil {
		return OutcomeDone, e.recordFailure(spec, "esp", err)
	}

	if _, err := e.store.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.ServicingState = types.ServicingStateABUpdateFinalized
		return nil
	}); err != nil {
		return OutcomeDone, &hosterrors.InternalError{Message: "persisting finalized host status", Err: err}
	}

	if sctx.NoTransitionRequested() {
		return OutcomeDone, nil
	}
	return OutcomeNeedsReboot, nil
}

// closeStaleVerityDevices best-effort tears down any verity device this
// graph declares, tolerating "not open" errors from a clean environment.
func (e *Engine) closeStaleVerityDevices(ctx context.Context, graph *storagegraph.Graph) {
	for _, v := range graph.NodesOfKind(storagegraph.NodeKindVerityDevice) {
		if err := e.verity.Close(ctx, v.Verity.DeviceMapperName); err != nil {
			e.logger.Debug().Err(err).Str("device", v.Verity.DeviceMapperName).Msg("no stale verity device to close")
		}
	}
}

var errNoActiveVolume = invalidInputErr("A/B update requires an active volume to already be set")

type invalidInputErr string

func (e invalidInputErr) Error() string { return string(e) }
