package osutils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hostd/pkg/hosterrors"
)

func TestRunCommand_MissingBinaryReportsMisconfiguration(t *testing.T) {
	_, err := runCommand(context.Background(), "hostd-definitely-not-a-real-binary")
	require.Error(t, err)
	var misconfig *hosterrors.ExecutionEnvironmentMisconfiguration
	require.ErrorAs(t, err, &misconfig)
	assert.Equal(t, "hostd-definitely-not-a-real-binary", misconfig.Binary)
}

func TestRunCommand_NonZeroExitReportsSubprocessFailure(t *testing.T) {
	_, err := runCommand(context.Background(), "false")
	require.Error(t, err)
	var failure *hosterrors.SubprocessFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, failure.ExitCode)
}

func TestRunCommand_SuccessReturnsStdout(t *testing.T) {
	out, err := runCommand(context.Background(), "echo", "-n", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestRunCommandStdin_FeedsStdinToProcess(t *testing.T) {
	out, err := runCommandStdin(context.Background(), "hello\n", "cat")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}
