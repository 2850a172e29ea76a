package osutils

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"

	"github.com/cuemby/hostd/pkg/hosterrors"
)

// runCommand runs binary with args, returning a hosterrors.SubprocessFailure
// on non-zero exit or a hosterrors.ExecutionEnvironmentMisconfiguration when
// the binary itself cannot be found, per §4.6/§7. Mirrors the teacher's
// exec.Command + CombinedOutput style (pkg/network/hostports.go).
func runCommand(ctx context.Context, binary string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return nil, &hosterrors.ExecutionEnvironmentMisconfiguration{Binary: binary, Err: err}
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	failure := &hosterrors.SubprocessFailure{
		Binary: binary,
		Args:   args,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		failure.ExitCode = exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			failure.Signal = status.Signal().String()
		}
		return nil, failure
	}
	return nil, &hosterrors.ExecutionEnvironmentMisconfiguration{Binary: binary, Err: err}
}

// runCommandStdin is runCommand with stdin fed from a string, used by tools
// that accept a script on stdin (sfdisk).
func runCommandStdin(ctx context.Context, stdin, binary string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return nil, &hosterrors.ExecutionEnvironmentMisconfiguration{Binary: binary, Err: err}
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = bytes.NewBufferString(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	failure := &hosterrors.SubprocessFailure{
		Binary: binary,
		Args:   args,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		failure.ExitCode = exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			failure.Signal = status.Signal().String()
		}
		return nil, failure
	}
	return nil, &hosterrors.ExecutionEnvironmentMisconfiguration{Binary: binary, Err: err}
}
