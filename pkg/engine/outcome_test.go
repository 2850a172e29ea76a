package engine

import (
	"errors"
	"testing"

	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "done", OutcomeDone.String())
	assert.Equal(t, "needs-reboot", OutcomeNeedsReboot.String())
}

func TestErrorKind_UnwrapsToHostError(t *testing.T) {
	wrapped := &hosterrors.ServicingError{Subsystem: "storage", Message: "wrap", Err: errors.New("inner")}
	assert.Equal(t, string(hosterrors.KindServicingError), errorKind(wrapped))
}

func TestErrorKind_PlainErrorDefaultsToServicingError(t *testing.T) {
	assert.Equal(t, string(hosterrors.KindServicingError), errorKind(errors.New("plain")))
}

func TestErrorKind_InternalErrorPreservesKind(t *testing.T) {
	err := &hosterrors.InternalError{Message: "db write failed", Err: errors.New("disk full")}
	assert.Equal(t, string(hosterrors.KindInternalError), errorKind(err))
}

func TestIsUKIDeployment(t *testing.T) {
	spec := types.HostConfiguration{InternalParams: map[string]string{"uki": "true"}}
	assert.True(t, isUKIDeployment(spec))

	spec = types.HostConfiguration{InternalParams: map[string]string{"uki": "false"}}
	assert.False(t, isUKIDeployment(spec))

	spec = types.HostConfiguration{}
	assert.False(t, isUKIDeployment(spec))
}
