package osutils

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Cryptsetup formats and opens LUKS2 volumes, sealing the key to a TPM PCR
// policy via systemd-cryptenroll when PCRs are configured (§3.7).
type Cryptsetup struct{}

var _ CryptManager = Cryptsetup{}

func (Cryptsetup) Format(ctx context.Context, device string, pcrs []int) error {
	if _, err := runCommandStdin(ctx, "\n", "cryptsetup", "luksFormat", "--type", "luks2", "-q", device); err != nil {
		return fmt.Errorf("formatting luks volume %s: %w", device, err)
	}
	if len(pcrs) == 0 {
		return nil
	}

	pcrList := make([]string, len(pcrs))
	for i, p := range pcrs {
		pcrList[i] = strconv.Itoa(p)
	}
	_, err := runCommand(ctx, "systemd-cryptenroll", "--tpm2-device=auto",
		"--tpm2-pcrs="+strings.Join(pcrList, "+"), device)
	if err != nil {
		return fmt.Errorf("enrolling tpm2 pcr policy on %s: %w", device, err)
	}
	return nil
}

func (Cryptsetup) Open(ctx context.Context, name, device string) error {
	_, err := runCommand(ctx, "systemd-cryptsetup", "attach", name, device, "-", "tpm2-device=auto")
	return err
}

func (Cryptsetup) Close(ctx context.Context, name string) error {
	_, err := runCommand(ctx, "cryptsetup", "close", name)
	return err
}
