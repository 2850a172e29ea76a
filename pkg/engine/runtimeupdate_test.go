package engine

import (
	"context"
	"testing"

	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func provisionedEngine(t *testing.T, registry []subsystem.Subsystem) (*Engine, types.HostConfiguration) {
	t.Helper()
	store := openTestStore(t)
	spec := types.HostConfiguration{}
	_, err := store.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.ServicingState = types.ServicingStateProvisioned
		return nil
	})
	require.NoError(t, err)
	return &Engine{store: store, registry: registry, logger: zerolog.Nop()}, spec
}

func TestRuntimeUpdate_NoActiveServicingIsNoopDone(t *testing.T) {
	e, spec := provisionedEngine(t, nil)
	outcome, err := e.RuntimeUpdate(context.Background(), spec, Invocation{}, types.ServicingTypeNoActiveServicing)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
}

func TestRuntimeUpdate_RequiresProvisionedState(t *testing.T) {
	store := openTestStore(t)
	e := &Engine{store: store, logger: zerolog.Nop()}
	_, err := e.RuntimeUpdate(context.Background(), types.HostConfiguration{}, Invocation{}, types.ServicingTypeHotPatch)
	assert.Error(t, err)
}

func TestRuntimeUpdate_HotPatchRunsPipelineAndStaysProvisioned(t *testing.T) {
	var order []string
	e, spec := provisionedEngine(t, []subsystem.Subsystem{
		&fakeSubsystem{name: "a", order: &order},
		&fakeSubsystem{name: "b", order: &order},
	})

	outcome, err := e.RuntimeUpdate(context.Background(), spec, Invocation{}, types.ServicingTypeHotPatch)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, []string{"a", "b"}, order)

	hs, err := e.store.HostStatus()
	require.NoError(t, err)
	assert.Equal(t, types.ServicingStateProvisioned, hs.ServicingState)
}

func TestRuntimeUpdate_UpdateAndRebootRequestsReboot(t *testing.T) {
	e, spec := provisionedEngine(t, nil)
	outcome, err := e.RuntimeUpdate(context.Background(), spec, Invocation{}, types.ServicingTypeUpdateAndReboot)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsReboot, outcome)
}

func TestRuntimeUpdate_NoTransitionSuppressesReboot(t *testing.T) {
	spec := types.HostConfiguration{InternalParams: map[string]string{types.InternalParamNoTransition: "true"}}
	store := openTestStore(t)
	_, err := store.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.ServicingState = types.ServicingStateProvisioned
		return nil
	})
	require.NoError(t, err)
	e := &Engine{store: store, logger: zerolog.Nop()}

	outcome, err := e.RuntimeUpdate(context.Background(), spec, Invocation{}, types.ServicingTypeUpdateAndReboot)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
}
