package datastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hostd/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "host.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHostStatus_EmptyWhenFresh(t *testing.T) {
	s := openTestStore(t)
	hs, err := s.HostStatus()
	require.NoError(t, err)
	assert.Nil(t, hs)
}

func TestWithHostStatus_SeedsFromSpecOnFirstCall(t *testing.T) {
	s := openTestStore(t)
	spec := types.HostConfiguration{Trident: types.TridentConfig{DatastorePath: "/var/lib/hostd"}}

	hs, err := s.WithHostStatus(spec, func(hs *types.HostStatus) error {
		assert.Equal(t, types.ServicingStateNotProvisioned, hs.ServicingState)
		hs.ServicingState = types.ServicingStateCleanInstallStaged
		hs.InstallIndex = 0
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, types.ServicingStateCleanInstallStaged, hs.ServicingState)

	persisted, err := s.HostStatus()
	require.NoError(t, err)
	assert.Equal(t, types.ServicingStateCleanInstallStaged, persisted.ServicingState)
}

func TestWithHostStatus_MutateErrorDoesNotPersist(t *testing.T) {
	s := openTestStore(t)
	spec := types.HostConfiguration{}

	_, err := s.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.ServicingState = types.ServicingStateCleanInstallFinalized
		return assert.AnError
	})
	require.Error(t, err)

	hs, err := s.HostStatus()
	require.NoError(t, err)
	assert.Nil(t, hs)
}

func TestRollbackChain_ExcludesCurrentAndUnfinalized(t *testing.T) {
	s := openTestStore(t)
	spec := types.HostConfiguration{}

	for i, state := range []types.ServicingState{
		types.ServicingStateCleanInstallFinalized,
		types.ServicingStateABUpdateStaged,
		types.ServicingStateABUpdateFinalized,
	} {
		_, err := s.WithHostStatus(spec, func(hs *types.HostStatus) error {
			hs.InstallIndex = i
			hs.ServicingState = state
			return nil
		})
		require.NoError(t, err)
	}

	chain, err := s.RollbackChain(2)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, 0, chain[0].InstallIndex)
	assert.Equal(t, types.ServicingStateCleanInstallFinalized, chain[0].ServicingState)
}

func TestPersist_CopiesDatastoreFile(t *testing.T) {
	s := openTestStore(t)
	spec := types.HostConfiguration{}
	_, err := s.WithHostStatus(spec, func(hs *types.HostStatus) error {
		hs.InstallIndex = 0
		hs.ServicingState = types.ServicingStateCleanInstallFinalized
		return nil
	})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "newroot", "var", "lib", "hostd", "host.db")
	require.NoError(t, s.Persist(dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
