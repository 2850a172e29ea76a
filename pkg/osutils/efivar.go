package osutils

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cuemby/hostd/pkg/hosterrors"
)

// Efivar reads and writes EFI variables through the efivar(1) CLI tool
// rather than poking /sys/firmware/efi/efivars directly, so the
// immutable-attribute dance (chattr -i, write, chattr +i) stays inside a
// single well-tested external binary per §1/§4.6.
type Efivar struct{}

var _ EfiVarStore = Efivar{}

// ReadVariable prints the named variable's raw payload (4 attribute bytes
// followed by value) to stdout and splits them apart, matching §6's "the
// first 4 bytes on read are EFI attributes and are stripped".
func (Efivar) ReadVariable(ctx context.Context, name, guid string) (uint32, []byte, error) {
	varName := fmt.Sprintf("%s-%s", guid, name)
	out, err := runCommand(ctx, "efivar", "--name", varName, "--print", "--output", "-")
	if err != nil {
		return 0, nil, err
	}
	if len(out) < 4 {
		return 0, nil, &hosterrors.ExecutionEnvironmentMisconfiguration{
			Binary: "efivar",
			Err:    fmt.Errorf("variable %s: payload shorter than the 4-byte attribute header", varName),
		}
	}
	attrs := binary.LittleEndian.Uint32(out[:4])
	return attrs, out[4:], nil
}

// WriteVariable writes attrs followed by payload to the named variable via
// a temp file, since efivar's --fromfile flag requires the attribute
// header to already be part of the input.
func (Efivar) WriteVariable(ctx context.Context, name, guid string, attrs uint32, payload []byte) error {
	varName := fmt.Sprintf("%s-%s", guid, name)

	tmp, err := os.CreateTemp("", "hostd-efivar-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], attrs)
	if _, err := tmp.Write(header[:]); err != nil {
		return err
	}
	if _, err := tmp.Write(payload); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	_, err = runCommand(ctx, "efivar", "--name", varName, "--write", "--fromfile", tmp.Name())
	return err
}
