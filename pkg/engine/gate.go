package engine

import (
	"fmt"

	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

// Invocation carries the stage/finalize gate and any safety override for
// one servicing call (§4.2.7).
type Invocation struct {
	Allowed subsystem.AllowedOperations
	// SafetyOverride bypasses the clean-install safety check against a
	// host running from persistent storage (§4.2.3 step 1) when explicitly
	// set by the caller (CLI --force or equivalent; see §6). It does not
	// relax checkGate: clean install still requires a not-provisioned host.
	SafetyOverride bool
}

func (inv Invocation) hasStage() bool    { return inv.Allowed.Stage }
func (inv Invocation) hasFinalize() bool { return inv.Allowed.Finalize }

// checkGate enforces §4.2.7: when staging and finalizing in the same
// call, the host must be in startState; when only finalizing, it must
// already be in stagedState.
func checkGate(current types.ServicingState, inv Invocation, startState, stagedState types.ServicingState) error {
	if !inv.hasFinalize() {
		if inv.hasStage() && current != startState {
			return &hosterrors.InvalidRollbackState{
				Reason: fmt.Sprintf("cannot stage: host in state %q, expected %q", current, startState),
			}
		}
		return nil
	}
	if inv.hasStage() {
		if current != startState {
			return &hosterrors.InvalidRollbackState{
				Reason: fmt.Sprintf("cannot stage+finalize: host in state %q, expected %q", current, startState),
			}
		}
		return nil
	}
	if current != stagedState {
		return &hosterrors.InvalidRollbackState{
			Reason: fmt.Sprintf("cannot finalize: host in state %q, expected %q", current, stagedState),
		}
	}
	return nil
}
