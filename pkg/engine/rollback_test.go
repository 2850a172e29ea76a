package engine

import (
	"context"
	"testing"

	"github.com/cuemby/hostd/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollbackTarget_NoHistoryReturnsNil(t *testing.T) {
	store := openTestStore(t)
	e := &Engine{store: store, logger: zerolog.Nop()}
	target, err := e.RollbackTarget(types.HostConfiguration{})
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestManualRollback_UnknownKindIsInvalidInput(t *testing.T) {
	store := openTestStore(t)
	e := &Engine{store: store, logger: zerolog.Nop()}
	_, err := e.ManualRollback(context.Background(), types.HostConfiguration{}, ManualRollbackKind("bogus"), Invocation{})
	assert.Error(t, err)
}

func TestManualRollbackAB_NoRecoverableTargetFails(t *testing.T) {
	store := openTestStore(t)
	spec := types.HostConfiguration{}
	_, err := store.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.ServicingState = types.ServicingStateProvisioned
		hs.ActiveVolume = types.ABSideA
		return nil
	})
	require.NoError(t, err)
	e := &Engine{store: store, logger: zerolog.Nop()}

	_, err = e.ManualRollback(context.Background(), spec, ManualRollbackKindAB, Invocation{})
	assert.Error(t, err)
}

func TestManualRollbackRuntime_NoRecoverableTargetFails(t *testing.T) {
	store := openTestStore(t)
	spec := types.HostConfiguration{}
	_, err := store.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.ServicingState = types.ServicingStateProvisioned
		return nil
	})
	require.NoError(t, err)
	e := &Engine{store: store, logger: zerolog.Nop()}

	_, err = e.ManualRollback(context.Background(), spec, ManualRollbackKindRuntime, Invocation{})
	assert.Error(t, err)
}
