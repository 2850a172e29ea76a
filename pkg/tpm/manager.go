package tpm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/hostd/pkg/osutils"
)

// ErrPcrlockRegenerationUnsupported is returned by RegeneratePcrlockPolicy.
// The Open Question of §9 (how pcrlock policy should be regenerated for a
// rotated UKI during manual rollback) is resolved by treating it as
// unsupported and failing fast rather than guessing at undocumented
// pcrlock tooling behavior.
var ErrPcrlockRegenerationUnsupported = errors.New("pcrlock policy regeneration is not supported")

// SealPolicy formats and TPM2-seals an encrypted volume against the
// configured PCR set (§3.7).
type SealPolicy interface {
	Seal(ctx context.Context, device string, pcrs []int) error
	RegeneratePcrlockPolicy(ctx context.Context, ukiPath string) error
}

// Manager implements SealPolicy using osutils.CryptManager.
type Manager struct {
	Crypt osutils.CryptManager
}

// NewManager returns a Manager backed by the default cryptsetup
// implementation.
func NewManager() *Manager {
	return &Manager{Crypt: osutils.Cryptsetup{}}
}

// Seal validates the PCR set then formats device with a TPM2-sealed unlock
// policy over it.
func (m *Manager) Seal(ctx context.Context, device string, pcrs []int) error {
	if err := ValidatePcrs(pcrs); err != nil {
		return err
	}
	if err := m.Crypt.Format(ctx, device, pcrs); err != nil {
		return fmt.Errorf("sealing %s to tpm2 pcr policy: %w", device, err)
	}
	return nil
}

// RegeneratePcrlockPolicy always fails: see ErrPcrlockRegenerationUnsupported.
func (m *Manager) RegeneratePcrlockPolicy(ctx context.Context, ukiPath string) error {
	return ErrPcrlockRegenerationUnsupported
}
