package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

// selectServicingType asks every subsystem to propose a servicing type
// and takes the strongest proposal (§4.2.1). A subsystem that abstains
// contributes nothing. If nothing proposes, the result is
// no-active-servicing.
func (e *Engine) selectServicingType(sctx *subsystem.Context) (types.ServicingType, error) {
	result := types.ServicingTypeNoActiveServicing
	for _, s := range e.registry {
		proposed, ok, err := s.SelectServicingType(sctx)
		if err != nil {
			return "", &hosterrors.ServicingError{Subsystem: s.Name(), Message: "select servicing type failed", Err: err}
		}
		if !ok {
			continue
		}
		result = types.Strongest(result, proposed)
	}
	return result, nil
}

// validateHostConfig runs each subsystem's ValidateHostConfig in fixed
// order; the first failure aborts (§4.2.2 step 1).
func (e *Engine) validateHostConfig(sctx *subsystem.Context) error {
	return e.runPhase("validate", func(s subsystem.Subsystem) error {
		return s.ValidateHostConfig(sctx)
	})
}

// prepare runs each subsystem's non-destructive Prepare step (§4.2.2
// step 2).
func (e *Engine) prepare(sctx *subsystem.Context) error {
	return e.runPhase("prepare", func(s subsystem.Subsystem) error {
		return s.Prepare(sctx)
	})
}

// provision runs each subsystem's Provision step against mountPath,
// optionally under a writable /etc overlay when the root filesystem is
// verity-protected (§4.2.2, §4.4).
func (e *Engine) provision(ctx context.Context, sctx *subsystem.Context, mountPath string) error {
	useOverlay := sctx.StorageGraph != nil && sctx.StorageGraph.RootFilesystemIsVerity()
	return e.runPhaseWithOverlay(ctx, "provision", sctx, mountPath, useOverlay, func(s subsystem.Subsystem) error {
		return s.Provision(sctx, mountPath)
	})
}

// configure runs each subsystem's Configure step, optionally under a
// writable /etc overlay when the flow targets a verity root and is a
// clean install or A/B update that is not a UKI deployment (§4.2.2).
func (e *Engine) configure(ctx context.Context, sctx *subsystem.Context, mountPath string, isUKI bool) error {
	useOverlay := sctx.StorageGraph != nil && sctx.StorageGraph.RootFilesystemIsVerity() &&
		(sctx.ServicingType == types.ServicingTypeCleanInstall || sctx.ServicingType == types.ServicingTypeABUpdate) &&
		!isUKI
	return e.runPhaseWithOverlay(ctx, "configure", sctx, mountPath, useOverlay, func(s subsystem.Subsystem) error {
		return s.Configure(sctx)
	})
}

// runPhase iterates the registry in fixed order, invoking fn for each
// subsystem, recording per-subsystem phase duration, and wrapping the
// first error with subsystem context (§4.2.2, §7). A panic in fn is
// recovered and returned as a hosterrors.InternalError.
func (e *Engine) runPhase(phase string, fn func(subsystem.Subsystem) error) error {
	for _, s := range e.registry {
		start := time.Now()
		var recovered *hosterrors.InternalError
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					recovered = hosterrors.Recover(r, string(debug.Stack()))
					err = recovered
				}
			}()
			return fn(s)
		}()
		e.recordPhase(s.Name(), phase, time.Since(start), err)
		if recovered != nil {
			return recovered
		}
		if err != nil {
			return &hosterrors.ServicingError{
				Subsystem: s.Name(),
				Message:   fmt.Sprintf("step %q failed", phase),
				Err:       err,
			}
		}
	}
	return nil
}

// runPhaseWithOverlay is runPhase plus an optional scoped /etc overlay
// mount held for the duration of the phase, released on every exit path
// (success or failure).
func (e *Engine) runPhaseWithOverlay(ctx context.Context, phase string, sctx *subsystem.Context, mountPath string, useOverlay bool, fn func(subsystem.Subsystem) error) error {
	if !useOverlay {
		return e.runPhase(phase, fn)
	}

	release, err := acquireEtcOverlay(ctx, e.mounter, mountPath)
	if err != nil {
		return &hosterrors.ServicingError{Message: "failed to acquire writable /etc overlay", Err: err}
	}
	defer func() {
		if relErr := release(); relErr != nil {
			e.logger.Warn().Err(relErr).Msg("failed to release etc overlay")
		}
	}()

	return e.runPhase(phase, fn)
}

func (e *Engine) recordPhase(subsystemName, phase string, duration time.Duration, err error) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordPhase(subsystemName, phase, duration, err)
}
