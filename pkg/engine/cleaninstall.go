package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/osutils"
	"github.com/cuemby/hostd/pkg/storagegraph"
	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

// ScratchMountPath is where clean install and A/B update mount the newroot
// before it is booted (§4.2.2, §4.2.3).
const ScratchMountPath = "/mnt/newroot"

// safetyOverridePath is the well-known marker file that lets clean install
// proceed on a host running from persistent storage with no adopted
// partitions (§4.2.3 step 1, §6).
const safetyOverridePath = "/etc/trident-clean-install-override"

// CleanInstall runs the clean-install flow of §4.2.3.
func (e *Engine) CleanInstall(ctx context.Context, spec types.HostConfiguration, inv Invocation) (Outcome, error) {
	current, err := e.currentHostStatus(spec)
	if err != nil {
		return OutcomeDone, err
	}

	if err := checkGate(current.ServicingState, inv, types.ServicingStateNotProvisioned, types.ServicingStateCleanInstallStaged); err != nil {
		return OutcomeDone, err
	}

	if err := e.cleanInstallSafetyCheck(spec, inv.SafetyOverride); err != nil {
		return OutcomeDone, err
	}

	// Step 2: reset any stale newroot mount at the scratch path.
	if mounted, _ := e.mounter.Mounted(ctx, ScratchMountPath); mounted {
		if err := e.mounter.Unmount(ctx, ScratchMountPath, true); err != nil {
			return OutcomeDone, &hosterrors.InitializationError{Reason: "unmounting stale newroot", Err: err}
		}
	}

	// Step 3: build the storage graph.
	graph, err := storagegraph.Build(spec)
	if err != nil {
		return OutcomeDone, &hosterrors.InvalidInput{Err: err}
	}

	sctx := &subsystem.Context{
		Spec:           spec,
		ServicingType:  types.ServicingTypeCleanInstall,
		StorageGraph:   graph,
		HostStatus:     current,
		Allowed:        inv.Allowed,
		NewRootPath:    ScratchMountPath,
		InternalParams: spec.InternalParams,
	}

	// Step 4: validate -> prepare.
	if err := e.validateHostConfig(sctx); err != nil {
		return OutcomeDone, err
	}
	if err := e.prepare(sctx); err != nil {
		return OutcomeDone, err
	}

	// Step 5-6: create block devices, mount newroot.
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

	// Step 7: select install-index.
	installIndex, err := e.selectInstallIndex()
	if err != nil {
		e.unmountAll(ctx, graph, ScratchMountPath)
		return OutcomeDone, e.recordFailure(spec, "engine", err)
	}

	// Step 8: provision -> configure.
	if err := e.provision(ctx, sctx, ScratchMountPath); err != nil {
		e.unmountAll(ctx, graph, ScratchMountPath)
		return OutcomeDone, e.recordFailure(spec, "engine", err)
	}
	if err := e.configure(ctx, sctx, ScratchMountPath, isUKIDeployment(spec)); err != nil {
		e.unmountAll(ctx, graph, ScratchMountPath)
		return OutcomeDone, e.recordFailure(spec, "engine", err)
	}

	// Step 9: transition to staged.
	hs, err := e.store.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.Spec = spec
		hs.ServicingState = types.ServicingStateCleanInstallStaged
		hs.InstallIndex = installIndex
		hs.LastError = nil
		return nil
	})
	if err != nil {
		e.unmountAll(ctx, graph, ScratchMountPath)
		return OutcomeDone, &hosterrors.InternalError{Message: "persisting staged host status", Err: err}
	}

	if !inv.hasFinalize() {
		e.persistBestEffort(ScratchMountPath, hs.ServicingState)
		e.unmountAll(ctx, graph, ScratchMountPath)
		return OutcomeDone, nil
	}

	// Step 10: finalize.
	if err := e.finalizeBootEntry(ctx, ScratchMountPath); err != nil {
		e.unmountAll(ctx, graph, ScratchMountPath)
		return OutcomeDone, e.recordFailure(spec, "esp", err)
	}

	hs, err = e.store.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.ServicingState = types.ServicingStateCleanInstallFinalized
		hs.ManagementOwned = true
		return nil
	})
	if err != nil {
		e.unmountAll(ctx, graph, ScratchMountPath)
		return OutcomeDone, &hosterrors.InternalError{Message: "persisting finalized host status", Err: err}
	}
	if err := e.store.Persist(joinRoot(ScratchMountPath, spec.Trident.DatastorePath)); err != nil {
		e.logger.Warn().Err(err).Msg("failed to persist datastore into newroot")
	}

	e.unmountAll(ctx, graph, ScratchMountPath)

	if sctx.NoTransitionRequested() {
		return OutcomeDone, nil
	}
	return OutcomeNeedsReboot, nil
}

func (e *Engine) currentHostStatus(spec types.HostConfiguration) (*types.HostStatus, error) {
	hs, err := e.store.HostStatus()
	if err != nil {
		return nil, &hosterrors.InternalError{Message: "reading current host status", Err: err}
	}
	if hs == nil {
		hs = types.NewHostStatus(spec)
	}
	return hs, nil
}

// cleanInstallSafetyCheck implements §4.2.3 step 1: clean install refuses
// to run against a host that's already running its OS from persistent
// storage unless the configuration adopts existing partitions or the
// safety-override marker is present.
func (e *Engine) cleanInstallSafetyCheck(spec types.HostConfiguration, override bool) error {
	cmdline, err := os.ReadFile("/proc/cmdline")
	if err != nil {
		return &hosterrors.InitializationError{Reason: "reading /proc/cmdline", Err: err}
	}
	if strings.Contains(string(cmdline), "root=/dev/ram0") || strings.Contains(string(cmdline), "root=live:LABEL=CDROM") {
		return nil
	}

	if override {
		return nil
	}
	if len(spec.Storage.AdoptedPartitions) > 0 {
		return nil
	}

	hostRoot, err := osutils.ResolveHostRoot()
	if err != nil {
		return &hosterrors.InitializationError{Reason: "resolving host root", Err: err}
	}
	if _, err := os.Stat(osutils.JoinHostPath(hostRoot, safetyOverridePath)); err == nil {
		return nil
	}

	return &hosterrors.InitializationError{Reason: "clean install on a host running from persistent storage requires adopted partitions or the safety-override marker"}
}

// selectInstallIndex picks the lowest unused non-negative install-index
// not present among coexisting (not-yet-superseded) installs in history
// (§3.4). The real agent additionally scans mounted candidates for
// install-marker files; this datastore-history-only approximation is
// sufficient because every coexisting install has a history entry.
func (e *Engine) selectInstallIndex() (int, error) {
	history, err := e.store.History()
	if err != nil {
		return 0, fmt.Errorf("reading install history: %w", err)
	}
	used := make(map[int]bool, len(history))
	for _, hs := range history {
		used[hs.InstallIndex] = true
	}
	for i := 0; ; i++ {
		if !used[i] {
			return i, nil
		}
	}
}

// recordFailure records err as the host status's last-error payload
// without changing servicing state, per §4.2.2's "records the error into
// host status, and returns".
func (e *Engine) recordFailure(spec types.HostConfiguration, subsystemName string, cause error) error {
	_, persistErr := e.store.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.LastError = &types.ErrorPayload{
			Kind:      errorKind(cause),
			Message:   cause.Error(),
			Subsystem: subsystemName,
		}
		return nil
	})
	if persistErr != nil {
		e.logger.Warn().Err(persistErr).Msg("failed to persist last-error payload")
	}
	return cause
}

func errorKind(err error) string {
	var hostErr hosterrors.HostError
	if ok := castHostError(err, &hostErr); ok {
		return string(hostErr.Kind())
	}
	return string(hosterrors.KindServicingError)
}

func castHostError(err error, target *hosterrors.HostError) bool {
	for err != nil {
		if he, ok := err.(hosterrors.HostError); ok {
			*target = he
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// persistBestEffort marks a staging checkpoint (§4.2.3 step 9) with a
// debug log record naming the state and root. It copies no logs or
// datastore state into the newroot.
func (e *Engine) persistBestEffort(root string, state types.ServicingState) {
	e.logger.Debug().Str("state", string(state)).Str("root", root).Msg("persisting staged logs")
}

// isUKIDeployment reports whether this spec deploys a unified kernel
// image, used to decide whether the configure-phase /etc overlay applies
// (§4.2.2).
func isUKIDeployment(spec types.HostConfiguration) bool {
	v, ok := spec.InternalParams["uki"]
	return ok && v == "true"
}
