package managementos

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

func TestConfigure_WritesManagementOSBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "management-os.yaml")
	s := &subsys{configPath: path}
	ctx := &subsystem.Context{
		Spec: types.HostConfiguration{ManagementOS: map[string]interface{}{"hostname": "mgmt-1"}},
		// NewRootPath is deliberately left unset: managementos targets the
		// live running root, never the newroot.
	}
	require.NoError(t, s.Configure(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hostname: mgmt-1")
}

func TestConfigure_EmptyManagementOSIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "management-os.yaml")
	s := &subsys{configPath: path}
	require.NoError(t, s.Configure(&subsystem.Context{}))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWritableEtcOverlay_IsFalse(t *testing.T) {
	assert.False(t, New().WritableEtcOverlay())
}
