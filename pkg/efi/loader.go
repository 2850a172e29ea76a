package efi

import (
	"context"
	"fmt"

	"github.com/cuemby/hostd/pkg/osutils"
)

// EFI variable GUIDs named in §6.
const (
	GlobalVariableGUID      = "8be4df61-93ca-11d2-aa0d-00e098032b8c"
	BootloaderInterfaceGUID = "4a67b082-0a4c-41cf-b6c7-440b29bb8c4f"
)

const (
	varSecureBoot         = "SecureBoot"
	varLoaderEntryOneShot = "LoaderEntryOneShot"
	varLoaderEntryDefault = "LoaderEntryDefault"
	varLoaderEntrySelected = "LoaderEntrySelected"
	varLoaderEntries      = "LoaderEntries"
)

// Non-Volatile | Boot Service Access | Runtime Access, the attribute set
// systemd-boot itself writes its loader variables with.
const defaultAttrs uint32 = 0x00000007

// LoaderEntries is the read/write surface over systemd-boot's loader
// variables the engine uses to steer the next boot (§4.7/§6).
type LoaderEntries struct {
	Store osutils.EfiVarStore
}

// NewLoaderEntries returns a LoaderEntries backed by the default
// efivar-CLI-based EfiVarStore.
func NewLoaderEntries() *LoaderEntries {
	return &LoaderEntries{Store: osutils.Efivar{}}
}

// SetDefault writes LoaderEntryDefault, selecting which entry systemd-boot
// boots by default (§4.2.4 finalize, §4.2.6 rollback).
func (l *LoaderEntries) SetDefault(ctx context.Context, entry string) error {
	return l.Store.WriteVariable(ctx, varLoaderEntryDefault, BootloaderInterfaceGUID, defaultAttrs, EncodeUTF16LE(entry))
}

// SetOneShot writes LoaderEntryOneShot, selecting the entry for the very
// next boot only.
func (l *LoaderEntries) SetOneShot(ctx context.Context, entry string) error {
	return l.Store.WriteVariable(ctx, varLoaderEntryOneShot, BootloaderInterfaceGUID, defaultAttrs, EncodeUTF16LE(entry))
}

// Selected reads LoaderEntrySelected, the entry systemd-boot actually
// booted.
func (l *LoaderEntries) Selected(ctx context.Context) (string, error) {
	_, payload, err := l.Store.ReadVariable(ctx, varLoaderEntrySelected, BootloaderInterfaceGUID)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", varLoaderEntrySelected, err)
	}
	return DecodeUTF16LE(payload), nil
}

// SecureBoot reports whether SecureBoot is enabled. Per the original
// semantics, an unreadable or absent variable is treated as disabled
// rather than propagated as an error.
func (l *LoaderEntries) SecureBoot(ctx context.Context) bool {
	_, payload, err := l.Store.ReadVariable(ctx, varSecureBoot, GlobalVariableGUID)
	if err != nil || len(payload) == 0 {
		return false
	}
	return payload[0] == 1
}

// Entries reads the LoaderEntries variable, a null-separated UTF-16LE list
// of boot entry names in systemd-boot menu order.
func (l *LoaderEntries) Entries(ctx context.Context) ([]string, error) {
	_, payload, err := l.Store.ReadVariable(ctx, varLoaderEntries, BootloaderInterfaceGUID)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", varLoaderEntries, err)
	}
	return DecodeUTF16LEList(payload), nil
}

// SetDefaultToCurrent sets LoaderEntryDefault to the currently selected
// entry, used when finalizing a successful clean install or A/B update.
func (l *LoaderEntries) SetDefaultToCurrent(ctx context.Context) error {
	current, err := l.Selected(ctx)
	if err != nil {
		return err
	}
	return l.SetDefault(ctx, current)
}

// SetDefaultToPrevious sets LoaderEntryDefault to the boot entry listed
// right after the current one in LoaderEntries, used when finalizing a
// manual rollback (§4.2.6). The current entry must be listed first and at
// least two entries must be present; otherwise it returns an error.
func (l *LoaderEntries) SetDefaultToPrevious(ctx context.Context) error {
	current, err := l.Selected(ctx)
	if err != nil {
		return err
	}
	entries, err := l.Entries(ctx)
	if err != nil {
		return err
	}
	if len(entries) < 2 {
		return fmt.Errorf("not enough boot entries to determine previous entry")
	}
	if entries[0] != current {
		return fmt.Errorf("current boot entry %q does not match first entry in boot entries list", current)
	}
	return l.SetDefault(ctx, entries[1])
}
