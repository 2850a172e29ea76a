package image

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hostd/pkg/types"
)

func compressedFixture(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(raw)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func sha384Hex(raw []byte) string {
	sum := sha512.Sum384(raw)
	return hex.EncodeToString(sum[:])
}

func TestDeployer_DeployFilesystem_Success(t *testing.T) {
	dir := t.TempDir()
	raw := bytes.Repeat([]byte{0xAB}, 64*1024)
	compressed := compressedFixture(t, raw)

	imagePath := filepath.Join(dir, "image.zst")
	require.NoError(t, os.WriteFile(imagePath, compressed, 0o644))
	devicePath := filepath.Join(dir, "device")
	require.NoError(t, os.WriteFile(devicePath, make([]byte, len(raw)), 0o644))

	reader, err := newFileReaderFile(imagePath)
	require.NoError(t, err)

	d := &Deployer{
		SizeProbe: func(string) (int64, error) { return int64(len(raw)), nil },
	}
	manifest := CosiFilesystemManifest{
		MountPoint:       "/",
		Image:            "root.img",
		UncompressedSize: int64(len(raw)),
		SHA384:           sha384Hex(raw),
	}

	err = d.DeployFilesystem(context.Background(), reader, manifest, devicePath, types.FilesystemTypeVFAT, true)
	require.NoError(t, err)

	got, err := os.ReadFile(devicePath)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestDeployer_DeployFilesystem_DigestMismatch(t *testing.T) {
	dir := t.TempDir()
	raw := bytes.Repeat([]byte{0x11}, 4096)
	compressed := compressedFixture(t, raw)

	imagePath := filepath.Join(dir, "image.zst")
	require.NoError(t, os.WriteFile(imagePath, compressed, 0o644))
	devicePath := filepath.Join(dir, "device")
	require.NoError(t, os.WriteFile(devicePath, make([]byte, len(raw)), 0o644))

	reader, err := newFileReaderFile(imagePath)
	require.NoError(t, err)

	d := &Deployer{SizeProbe: func(string) (int64, error) { return int64(len(raw)), nil }}
	manifest := CosiFilesystemManifest{
		Image:            "root.img",
		UncompressedSize: int64(len(raw)),
		SHA384:           "0000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000",
	}

	err = d.DeployFilesystem(context.Background(), reader, manifest, devicePath, types.FilesystemTypeVFAT, true)
	require.Error(t, err)
	var mismatch *DigestMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestDeployer_DeployFilesystem_DeviceTooSmall(t *testing.T) {
	d := &Deployer{SizeProbe: func(string) (int64, error) { return 10, nil }}
	manifest := CosiFilesystemManifest{UncompressedSize: 1000}

	err := d.DeployFilesystem(context.Background(), nil, manifest, "/dev/null", types.FilesystemTypeExt4, false)
	require.Error(t, err)
	var tooSmall *DeviceTooSmall
	require.ErrorAs(t, err, &tooSmall)
}

func TestDeployer_DeployFilesystem_ResizeSkippedWhenReadOnly(t *testing.T) {
	dir := t.TempDir()
	raw := bytes.Repeat([]byte{0x22}, 1024)
	compressed := compressedFixture(t, raw)
	imagePath := filepath.Join(dir, "image.zst")
	require.NoError(t, os.WriteFile(imagePath, compressed, 0o644))
	devicePath := filepath.Join(dir, "device")
	require.NoError(t, os.WriteFile(devicePath, make([]byte, len(raw)), 0o644))

	reader, err := newFileReaderFile(imagePath)
	require.NoError(t, err)

	resizeCalled := false
	d := &Deployer{
		SizeProbe: func(string) (int64, error) { return int64(len(raw)), nil },
		Resizer:   func(string, types.FilesystemType) error { resizeCalled = true; return nil },
	}
	manifest := CosiFilesystemManifest{Image: "root.img", UncompressedSize: int64(len(raw)), SHA384: sha384Hex(raw)}

	require.NoError(t, d.DeployFilesystem(context.Background(), reader, manifest, devicePath, types.FilesystemTypeExt4, true))
	assert.False(t, resizeCalled)
}

func TestCosiReader_ResolvesOffsetFromEntries(t *testing.T) {
	dir := t.TempDir()
	rootRaw := bytes.Repeat([]byte{0x33}, 2048)
	espRaw := bytes.Repeat([]byte{0x44}, 1024)
	rootCompressed := compressedFixture(t, rootRaw)
	espCompressed := compressedFixture(t, espRaw)

	var stream bytes.Buffer
	stream.Write(rootCompressed)
	for stream.Len()%512 != 0 {
		stream.WriteByte(0)
	}
	espOffset := int64(stream.Len())
	stream.Write(espCompressed)

	streamPath := filepath.Join(dir, "cosi.stream")
	require.NoError(t, os.WriteFile(streamPath, stream.Bytes(), 0o644))

	entries, err := NewCosiEntriesFromSlice([]CosiEntry{
		{Path: "root.img", Offset: 0, Size: int64(len(rootCompressed))},
		{Path: "esp.img", Offset: espOffset, Size: int64(len(espCompressed))},
	})
	require.NoError(t, err)

	base, err := newFileReaderFile(streamPath)
	require.NoError(t, err)
	cosiReader := &CosiReader{FileReader: base, Entries: entries}

	devicePath := filepath.Join(dir, "root-device")
	require.NoError(t, os.WriteFile(devicePath, make([]byte, len(rootRaw)), 0o644))

	d := &Deployer{SizeProbe: func(string) (int64, error) { return int64(len(rootRaw)), nil }}
	manifest := CosiFilesystemManifest{Image: "root.img", UncompressedSize: int64(len(rootRaw)), SHA384: sha384Hex(rootRaw)}

	require.NoError(t, d.DeployFilesystem(context.Background(), cosiReader, manifest, devicePath, types.FilesystemTypeVFAT, true))
	got, err := os.ReadFile(devicePath)
	require.NoError(t, err)
	assert.Equal(t, rootRaw, got)
}
