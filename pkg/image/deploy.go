package image

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/cuemby/hostd/pkg/osutils"
	"github.com/cuemby/hostd/pkg/types"
)

// DigestMismatch is returned when a deployed payload's computed SHA-384
// does not match the manifest's expected digest. Per §7, this is always
// fatal and never retried.
type DigestMismatch struct {
	Path     string
	Expected string
	Actual   string
}

func (e *DigestMismatch) Error() string {
	return fmt.Sprintf("%s: digest mismatch, expected %s got %s", e.Path, e.Expected, e.Actual)
}

// DeviceTooSmall is returned when the target block device is smaller than
// the image's declared uncompressed size.
type DeviceTooSmall struct {
	DevicePath       string
	DeviceBytes      int64
	UncompressedSize int64
}

func (e *DeviceTooSmall) Error() string {
	return fmt.Sprintf("device %s is %d bytes, too small for %d-byte image", e.DevicePath, e.DeviceBytes, e.UncompressedSize)
}

// Deployer streams a single filesystem payload out of a FileReader, through
// zstd decompression and SHA-384 verification, onto a target block device
// (§4.3 "Deployment algorithm").
type Deployer struct {
	// SizeProbe returns the byte size of the block device at path. Exists
	// as a seam so tests don't need real block devices.
	SizeProbe func(devicePath string) (int64, error)
	// Resizer runs filesystem-check-then-resize for ext-family read-write
	// filesystems deployed from an image (step 5). Nil disables resizing.
	Resizer func(devicePath string, fsType types.FilesystemType) error
}

// NewDeployer returns a Deployer using real device stat and e2fsprogs-based
// resize.
func NewDeployer() *Deployer {
	return &Deployer{
		SizeProbe: statDeviceSize,
		Resizer:   resizeExt,
	}
}

// DeployFilesystem runs steps 1-5 of §4.3 for a single non-verity
// filesystem already resolved to devicePath: size-check, stream-decompress-
// verify-write, then (for a read-write ext-family filesystem) resize.
func (d *Deployer) DeployFilesystem(ctx context.Context, reader FileReader, manifest CosiFilesystemManifest, devicePath string, fsType types.FilesystemType, readOnly bool) error {
	if err := d.checkDeviceSize(devicePath, manifest.UncompressedSize); err != nil {
		return err
	}
	if err := d.streamVerify(ctx, reader, manifest.Image, manifest.SHA384, devicePath); err != nil {
		return err
	}
	if !readOnly && fsType.ExtFamily() && d.Resizer != nil {
		if err := d.Resizer(devicePath, fsType); err != nil {
			return fmt.Errorf("resizing %s after deploy: %w", devicePath, err)
		}
	}
	return nil
}

// DeployVerityPair deploys a verity-backed filesystem's data and hash
// images to their respective partitions. Neither side is resized (§4.3
// step 6).
func (d *Deployer) DeployVerityPair(ctx context.Context, reader FileReader, manifest CosiFilesystemManifest, dataDevicePath, hashDevicePath string) error {
	if err := d.checkDeviceSize(dataDevicePath, manifest.UncompressedSize); err != nil {
		return err
	}
	if err := d.streamVerify(ctx, reader, manifest.Image, manifest.SHA384, dataDevicePath); err != nil {
		return err
	}
	// The hash image's uncompressed size is not separately tracked in the
	// manifest; skip the size guard and rely on digest verification alone.
	return d.streamVerify(ctx, reader, manifest.VerityHashImage, manifest.VerityHashSHA384, hashDevicePath)
}

func (d *Deployer) checkDeviceSize(devicePath string, uncompressedSize int64) error {
	if d.SizeProbe == nil {
		return nil
	}
	actual, err := d.SizeProbe(devicePath)
	if err != nil {
		return fmt.Errorf("probing size of %s: %w", devicePath, err)
	}
	if actual < uncompressedSize {
		return &DeviceTooSmall{DevicePath: devicePath, DeviceBytes: actual, UncompressedSize: uncompressedSize}
	}
	return nil
}

// streamVerify performs step 3-4: decompress the section reader for
// imagePath through zstd, write the output to devicePath while hashing it
// with SHA-384, then compare the digest of the decompressed bytes.
func (d *Deployer) streamVerify(ctx context.Context, reader FileReader, imagePath string, expectedDigest, devicePath string) error {
	entries, ok := reader.(cosiEntryLookup)
	var rc io.ReadCloser
	var err error
	if ok {
		offset, size, found := entries.CosiOffset(imagePath)
		if !found {
			return fmt.Errorf("cosi image %q not found in entries registry", imagePath)
		}
		rc, err = reader.SectionReader(ctx, offset, size)
	} else {
		rc, err = reader.Reader(ctx)
	}
	if err != nil {
		return fmt.Errorf("opening image payload %q: %w", imagePath, err)
	}
	defer rc.Close()

	zr, err := zstd.NewReader(rc)
	if err != nil {
		return fmt.Errorf("initializing zstd decompressor for %q: %w", imagePath, err)
	}
	defer zr.Close()

	out, err := os.OpenFile(devicePath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening target device %s: %w", devicePath, err)
	}
	defer out.Close()

	hasher := sha512.New384()
	written, err := io.Copy(io.MultiWriter(out, hasher), zr)
	if err != nil {
		return fmt.Errorf("streaming %q onto %s (%d bytes written): %w", imagePath, devicePath, written, err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", devicePath, err)
	}

	actual := hex.EncodeToString(hasher.Sum(nil))
	if actual != expectedDigest {
		return &DigestMismatch{Path: imagePath, Expected: expectedDigest, Actual: actual}
	}
	return nil
}

// cosiEntryLookup is implemented by FileReader variants that know how to
// resolve a COSI-relative path into an (offset, size) pair; satisfied via
// a CosiReader wrapper rather than by the bare FileReader variants.
type cosiEntryLookup interface {
	CosiOffset(path string) (offset, size int64, ok bool)
}

// CosiReader pairs a FileReader over a whole COSI stream with its parsed
// entries registry, letting Deployer resolve payload paths to byte ranges.
type CosiReader struct {
	FileReader
	Entries *CosiEntries
}

// CosiOffset implements cosiEntryLookup.
func (c *CosiReader) CosiOffset(path string) (int64, int64, bool) {
	e, ok := c.Entries.Get(path)
	if !ok {
		return 0, 0, false
	}
	return e.Offset, e.Size, true
}

func statDeviceSize(devicePath string) (int64, error) {
	f, err := os.Open(devicePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	return size, nil
}

// resizeExt runs a filesystem check then grows an ext-family filesystem to
// fill its device after a raw image write, via the osutils.Mkfs
// implementation backing FilesystemFormatter.
func resizeExt(devicePath string, fsType types.FilesystemType) error {
	ctx := context.Background()
	formatter := osutils.Mkfs{}
	if err := formatter.Check(ctx, devicePath, fsType); err != nil {
		return err
	}
	return formatter.Resize(ctx, devicePath, fsType)
}
