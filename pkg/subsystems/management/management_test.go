package management

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

func TestValidateHostConfig_DisabledSkipsCheck(t *testing.T) {
	s := New()
	ctx := &subsystem.Context{Spec: types.HostConfiguration{Trident: types.TridentConfig{Disabled: true}}}
	assert.NoError(t, s.ValidateHostConfig(ctx))
}

func TestValidateHostConfig_DatastoreChangeOutsideCleanInstall(t *testing.T) {
	s := New()
	prev := types.HostConfiguration{Trident: types.TridentConfig{DatastorePath: "/var/lib/hostd/a.db"}}
	ctx := &subsystem.Context{
		Spec:          types.HostConfiguration{Trident: types.TridentConfig{DatastorePath: "/var/lib/hostd/b.db"}},
		PreviousSpec:  &prev,
		ServicingType: types.ServicingTypeNormalUpdate,
	}
	err := s.ValidateHostConfig(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "datastore path changed")
}

func TestValidateHostConfig_DatastoreChangeAllowedOnCleanInstall(t *testing.T) {
	s := New()
	prev := types.HostConfiguration{Trident: types.TridentConfig{DatastorePath: "/var/lib/hostd/a.db"}}
	ctx := &subsystem.Context{
		Spec:          types.HostConfiguration{Trident: types.TridentConfig{DatastorePath: "/var/lib/hostd/b.db"}},
		PreviousSpec:  &prev,
		ServicingType: types.ServicingTypeCleanInstall,
	}
	assert.NoError(t, s.ValidateHostConfig(ctx))
}

func TestConfigure_CreatesAgentConfigUnderNewRoot(t *testing.T) {
	root := t.TempDir()
	s := New()
	ctx := &subsystem.Context{
		Spec:        types.HostConfiguration{Trident: types.TridentConfig{DatastorePath: "/var/lib/hostd/custom.db"}},
		NewRootPath: root,
	}
	require.NoError(t, s.Configure(ctx))

	data, err := os.ReadFile(filepath.Join(root, AgentConfigPath))
	require.NoError(t, err)
	assert.Contains(t, string(data), "DatastorePath=/var/lib/hostd/custom.db")
}

func TestConfigure_DefaultDatastoreNeedsNoFile(t *testing.T) {
	root := t.TempDir()
	s := New()
	ctx := &subsystem.Context{
		Spec:        types.HostConfiguration{Trident: types.TridentConfig{DatastorePath: "/var/lib/hostd/hostd.db"}},
		NewRootPath: root,
	}
	require.NoError(t, s.Configure(ctx))
	_, err := os.Stat(filepath.Join(root, AgentConfigPath))
	assert.True(t, os.IsNotExist(err))
}

func TestConfigure_MismatchedExistingConfigFails(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, AgentConfigPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("DatastorePath=/var/lib/hostd/old.db\n"), 0o644))

	s := New()
	ctx := &subsystem.Context{
		Spec:        types.HostConfiguration{Trident: types.TridentConfig{DatastorePath: "/var/lib/hostd/new.db"}},
		NewRootPath: root,
	}
	err := s.Configure(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match expected")
}

func TestConfigure_CustomDatastoreOnVerityRootWithoutConfigFails(t *testing.T) {
	root := t.TempDir()
	s := New()
	ctx := &subsystem.Context{
		Spec:        types.HostConfiguration{Trident: types.TridentConfig{DatastorePath: "/var/lib/hostd/custom.db"}},
		NewRootPath: root,
	}
	// No real storage graph needed here; Configure's rootIsVerity check
	// short-circuits to false whenever ctx.StorageGraph is nil, so force
	// the verity branch through the lower-level helper directly instead.
	err := configureAgentConfig(filepath.Join(root, AgentConfigPath), ctx.Spec.Trident.DatastorePath, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root filesystem is verity")
}

func TestCopyFile_CopiesBytes(t *testing.T) {
	srcDir := t.TempDir()
	binSrc := filepath.Join(srcDir, "hostd")
	require.NoError(t, os.WriteFile(binSrc, []byte("fake-binary"), 0o755))

	dst := filepath.Join(t.TempDir(), "nested", "hostd")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, copyFile(binSrc, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "fake-binary", string(data))
}

func TestName(t *testing.T) {
	assert.Equal(t, "management", New().Name())
}
