package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/hostd/pkg/osutils"
)

// acquireEtcOverlay mounts a writable overlay over mountPath/etc so
// subsystems can edit configuration files on an otherwise read-only
// (verity-protected) root (§4.2.2 "scoped acquisition ... whose release
// is guaranteed on all exit paths"). The returned release func is always
// non-nil and safe to call exactly once; callers must defer it
// immediately after a nil error.
func acquireEtcOverlay(ctx context.Context, mounter osutils.Mounter, mountPath string) (release func() error, err error) {
	etcPath := filepath.Join(mountPath, "etc")
	scratch := filepath.Join(mountPath, ".trident-etc-overlay")
	upper := filepath.Join(scratch, "upper")
	work := filepath.Join(scratch, "work")

	for _, dir := range []string{upper, work} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return noopRelease, fmt.Errorf("preparing etc overlay scratch dir %s: %w", dir, err)
		}
	}

	options := []string{
		fmt.Sprintf("lowerdir=%s", etcPath),
		fmt.Sprintf("upperdir=%s", upper),
		fmt.Sprintf("workdir=%s", work),
	}
	if err := mounter.Mount(ctx, "overlay", etcPath, "overlay", options); err != nil {
		return noopRelease, fmt.Errorf("mounting etc overlay at %s: %w", etcPath, err)
	}

	released := false
	return func() error {
		if released {
			return nil
		}
		released = true
		return mounter.Unmount(ctx, etcPath, true)
	}, nil
}

func noopRelease() error { return nil }
