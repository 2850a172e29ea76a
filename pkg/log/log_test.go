package log

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesJSONToConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})
	defer Shutdown()

	Info("hello")
	Shutdown()

	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestWithComponent_TagsRecords(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	WithComponent("engine").Info().Msg("starting")
	Shutdown()

	assert.Contains(t, buf.String(), `"component":"engine"`)
}

func TestBeginState_CreatesNamedArtifactAndSwitchesOnNewState(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf, StateLogDir: dir})

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, BeginState("provisioning", now))
	Info("phase one")

	require.NoError(t, BeginState("configuring", now.Add(time.Minute)))
	Info("phase two")
	Shutdown()

	first, err := os.ReadFile(filepath.Join(dir, "trident-provisioning-20260102T030405Z.log"))
	require.NoError(t, err)
	assert.Contains(t, string(first), "phase one")
	assert.NotContains(t, string(first), "phase two")

	second, err := os.ReadFile(filepath.Join(dir, "trident-configuring-20260102T030505Z.log"))
	require.NoError(t, err)
	assert.Contains(t, string(second), "phase two")
}

func TestBeginState_NoopWithoutConfiguredDir(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})
	defer Shutdown()

	require.NoError(t, BeginState("provisioning", time.Now().UTC()))
}

func TestShutdown_IsSafeAfterAlreadyShuttingDown(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})
	Shutdown()

	assert.NotPanics(t, func() {
		Shutdown()
	})
}
