package engine

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/cuemby/hostd/pkg/datastore"
	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *datastore.Store {
	t.Helper()
	store, err := datastore.Open(filepath.Join(t.TempDir(), "hostd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSelectInstallIndex_StartsAtZeroOnFreshStore(t *testing.T) {
	e := &Engine{store: openTestStore(t)}
	idx, err := e.selectInstallIndex()
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestSelectInstallIndex_SkipsUsedIndices(t *testing.T) {
	store := openTestStore(t)
	e := &Engine{store: store}

	spec := types.HostConfiguration{}
	for _, idx := range []int{0, 1} {
		_, err := store.WithHostStatus(spec, func(hs *types.HostStatus) error {
			hs.InstallIndex = idx
			hs.ServicingState = types.ServicingStateCleanInstallFinalized
			return nil
		})
		require.NoError(t, err)
	}

	got, err := e.selectInstallIndex()
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestRecordFailure_PersistsLastErrorAndReturnsCause(t *testing.T) {
	store := openTestStore(t)
	e := &Engine{store: store, logger: zerolog.Nop()}
	spec := types.HostConfiguration{}
	cause := &hosterrors.ServicingError{Subsystem: "storage", Message: "deploy failed", Err: errors.New("io error")}

	got := e.recordFailure(spec, "storage", cause)
	assert.Equal(t, cause, got)

	hs, err := store.HostStatus()
	require.NoError(t, err)
	require.NotNil(t, hs.LastError)
	assert.Equal(t, "storage", hs.LastError.Subsystem)
	assert.Contains(t, hs.LastError.Message, "deploy failed")
}

func TestCurrentHostStatus_DefaultsToNotProvisionedOnFreshStore(t *testing.T) {
	e := &Engine{store: openTestStore(t)}
	hs, err := e.currentHostStatus(types.HostConfiguration{})
	require.NoError(t, err)
	assert.Equal(t, types.ServicingStateNotProvisioned, hs.ServicingState)
}
