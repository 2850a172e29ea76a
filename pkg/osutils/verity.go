package osutils

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// Veritysetup formats and activates dm-verity device pairs via
// veritysetup(8).
type Veritysetup struct{}

var _ VerityManager = Veritysetup{}

func (Veritysetup) Format(ctx context.Context, dataDevice, hashDevice string) (string, error) {
	out, err := runCommand(ctx, "veritysetup", "format", dataDevice, hashDevice)
	if err != nil {
		return "", fmt.Errorf("formatting verity pair %s/%s: %w", dataDevice, hashDevice, err)
	}
	return parseRootHash(string(out))
}

func (Veritysetup) Open(ctx context.Context, name, dataDevice, hashDevice, rootHash string) error {
	_, err := runCommand(ctx, "veritysetup", "open", dataDevice, name, hashDevice, rootHash)
	return err
}

func (Veritysetup) Close(ctx context.Context, name string) error {
	_, err := runCommand(ctx, "veritysetup", "close", name)
	return err
}

// parseRootHash extracts the "Root hash:" field from veritysetup format
// output, which is the only value the caller needs to later open the pair.
func parseRootHash(output string) (string, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "Root hash:") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1]), nil
			}
		}
	}
	return "", fmt.Errorf("root hash not found in veritysetup output")
}
