package engine

import (
	"context"

	"github.com/cuemby/hostd/pkg/efi"
)

// finalizeBootEntry sets LoaderEntryDefault to the entry the firmware
// reports as booted this time (LoaderEntrySelected), via
// SetDefaultToCurrent (§4.2.3 step 10, §4.2.4 step 8). It does not look up
// the newly staged install's own entry, and it writes nothing to the ESP's
// removable-media fallback path; mountPath is only logged.
func (e *Engine) finalizeBootEntry(ctx context.Context, mountPath string) error {
	loader := efi.NewLoaderEntries()
	if err := loader.SetDefaultToCurrent(ctx); err != nil {
		return err
	}
	e.logger.Debug().Str("newroot", mountPath).Msg("set default boot entry to the current one")
	return nil
}
