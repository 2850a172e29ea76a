package storage

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hostd/pkg/image"
	"github.com/cuemby/hostd/pkg/storagegraph"
	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

type fakeMounter struct {
	mounts []string
}

func (f *fakeMounter) Mount(ctx context.Context, device, target, fsType string, options []string) error {
	f.mounts = append(f.mounts, device+"->"+target)
	return nil
}
func (f *fakeMounter) Unmount(ctx context.Context, target string, force bool) error { return nil }
func (f *fakeMounter) Mounted(ctx context.Context, target string) (bool, error)     { return false, nil }

type fakeVerity struct {
	opened []string
}

func (f *fakeVerity) Format(ctx context.Context, dataDevice, hashDevice string) (string, error) {
	return "", fmt.Errorf("format should not be called for image-sourced verity devices")
}
func (f *fakeVerity) Open(ctx context.Context, name, dataDevice, hashDevice, rootHash string) error {
	f.opened = append(f.opened, fmt.Sprintf("%s:%s:%s:%s", name, dataDevice, hashDevice, rootHash))
	return nil
}
func (f *fakeVerity) Close(ctx context.Context, name string) error { return nil }

// buildVerityGraph builds a storage graph whose disk device points at a
// tmp-dir prefix, so BlockDevicePath resolves the data/hash partitions to
// real files the test can pre-create and write through.
func buildVerityGraph(t *testing.T, diskDevice string) *storagegraph.Graph {
	t.Helper()
	cfg := types.HostConfiguration{
		Storage: types.StorageConfig{
			Disks: []types.Disk{{
				ID:                 "disk0",
				Device:             diskDevice,
				PartitionTableType: types.PartitionTableTypeGPT,
				Partitions: []types.Partition{
					{ID: "root-data", Type: types.PartitionTypeRoot, Size: types.PartitionSize{Bytes: 1 << 30}},
					{ID: "root-hash", Type: types.PartitionTypeRootVerity, Size: types.PartitionSize{Bytes: 1 << 20}},
				},
			}},
			VerityDevices: []types.VerityDevice{{
				ID:               "root-verity",
				DataDeviceID:     "root-data",
				HashDeviceID:     "root-hash",
				DeviceMapperName: "root",
			}},
			Filesystems: []types.Filesystem{{
				DeviceID:   "root-verity",
				Type:       types.FilesystemTypeExt4,
				Source:     types.FilesystemSourceImage,
				MountPoint: &types.MountPoint{Path: "/", Options: "ro"},
			}},
		},
	}
	g, err := storagegraph.Build(cfg)
	require.NoError(t, err)
	return g
}

// zstdCompress compresses data, as the deployer expects every COSI payload
// to be zstd-encoded on the wire.
func zstdCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// preallocate creates a file at path at least size bytes long, standing in
// for a raw block-device partition the deployer writes through.
func preallocate(t *testing.T, path string, size int64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Truncate(size))
}

// cosiFixture builds an in-memory COSI-shaped byte stream: length-prefixed
// JSON entry index, metadata.json, and the data/hash payloads themselves,
// laid out the way image.ParseCosiIndex/LoadManifest expect. Entry offsets
// are absolute from the start of the stream, so the index's own length
// (which depends on those offsets) is found by a short fixed-point loop.
func cosiFixture(t *testing.T, manifest image.CosiManifest, payloads map[string][]byte) []byte {
	t.Helper()

	type namedPayload struct {
		path string
		data []byte
	}
	ordered := []namedPayload{}
	metadataJSON, err := json.Marshal(manifest)
	require.NoError(t, err)
	ordered = append(ordered, namedPayload{image.ManifestEntryPath, metadataJSON})
	for path, data := range payloads {
		ordered = append(ordered, namedPayload{path, data})
	}

	relativeOffset := func() []int64 {
		offs := make([]int64, len(ordered))
		var at int64
		for i, p := range ordered {
			offs[i] = at
			at += int64(len(p.data))
		}
		return offs
	}
	rel := relativeOffset()

	indexJSON := []byte{}
	base := int64(8)
	for i := 0; i < 8; i++ {
		entries := make([]image.CosiEntry, len(ordered))
		for j, p := range ordered {
			entries[j] = image.CosiEntry{Path: p.path, Offset: base + rel[j], Size: int64(len(p.data))}
		}
		candidate, err := json.Marshal(entries)
		require.NoError(t, err)
		newBase := int64(8) + int64(len(candidate))
		indexJSON = candidate
		if newBase == base {
			break
		}
		base = newBase
	}

	var out bytes.Buffer
	var lenPrefix [8]byte
	binary.BigEndian.PutUint64(lenPrefix[:], uint64(len(indexJSON)))
	out.Write(lenPrefix[:])
	out.Write(indexJSON)
	for _, p := range ordered {
		out.Write(p.data)
	}
	return out.Bytes()
}

type memFileReader struct {
	data []byte
}

func (m *memFileReader) Reader(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

func (m *memFileReader) SectionReader(ctx context.Context, offset, size int64) (io.ReadCloser, error) {
	end := offset + size
	if end > int64(len(m.data)) {
		return nil, fmt.Errorf("section out of range")
	}
	return io.NopCloser(bytes.NewReader(m.data[offset:end])), nil
}

func (m *memFileReader) Size() int64 { return int64(len(m.data)) }

func TestDeployFilesystem_VerityWritesRawPartitionsAndOpensDevice(t *testing.T) {
	tmp := t.TempDir()
	diskDevice := filepath.Join(tmp, "disk0")
	graph := buildVerityGraph(t, diskDevice)
	dataDevicePath := diskDevice + "p1"
	hashDevicePath := diskDevice + "p2"

	dataPayload := bytes.Repeat([]byte{0xAB}, 4096)
	hashPayload := bytes.Repeat([]byte{0xCD}, 512)
	preallocate(t, dataDevicePath, int64(len(dataPayload)))
	preallocate(t, hashDevicePath, int64(len(hashPayload)))
	sum := sha512.Sum384(dataPayload)
	hashSum := sha512.Sum384(hashPayload)

	manifest := image.CosiManifest{
		Filesystems: []image.CosiFilesystemManifest{{
			MountPoint:       "/",
			Image:            "root.raw",
			UncompressedSize: int64(len(dataPayload)),
			SHA384:           fmt.Sprintf("%x", sum),
			Verity:           true,
			VerityHashImage:  "root.hash",
			VerityHashSHA384: fmt.Sprintf("%x", hashSum),
			VerityRootHash:   "deadbeef",
		}},
	}
	stream := cosiFixture(t, manifest, map[string][]byte{
		"root.raw":  zstdCompress(t, dataPayload),
		"root.hash": zstdCompress(t, hashPayload),
	})

	reader := &memFileReader{data: stream}
	entries, err := image.ParseCosiIndex(context.Background(), reader)
	require.NoError(t, err)
	loaded, err := image.LoadManifest(context.Background(), reader, entries)
	require.NoError(t, err)
	cosiReader := &image.CosiReader{FileReader: reader, Entries: entries}

	mounter := &fakeMounter{}
	verity := &fakeVerity{}
	s := &subsys{deployer: image.NewDeployer(), mounter: mounter, verity: verity}

	resolved := map[string]string{}
	ctx := &subsystem.Context{StorageGraph: graph, ResolvedDevices: resolved}

	fsNode := graph.NodesOfKind(storagegraph.NodeKindFilesystem)[0]
	err = s.deployFilesystem(ctx, cosiReader, loaded, fsNode, "/mnt/newroot")
	require.NoError(t, err)

	require.Len(t, verity.opened, 1)
	assert.Contains(t, verity.opened[0], "root:"+dataDevicePath+":"+hashDevicePath+":deadbeef")
	assert.Equal(t, "/dev/mapper/root", resolved["root-verity"])
	require.Len(t, mounter.mounts, 1)
	assert.Equal(t, "/dev/mapper/root->/mnt/newroot/", mounter.mounts[0])

	written, err := os.ReadFile(dataDevicePath)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(written, dataPayload))
}

func TestDeployFilesystem_VerityManifestWithoutRootHashFails(t *testing.T) {
	tmp := t.TempDir()
	diskDevice := filepath.Join(tmp, "disk0")
	graph := buildVerityGraph(t, diskDevice)

	dataPayload := []byte("data")
	hashPayload := []byte("hash")
	manifest := image.CosiManifest{
		Filesystems: []image.CosiFilesystemManifest{{
			MountPoint:      "/",
			Image:           "root.raw",
			SHA384:          fmt.Sprintf("%x", sha512.Sum384(dataPayload)),
			Verity:          true,
			VerityHashImage: "root.hash",
		}},
	}
	stream := cosiFixture(t, manifest, map[string][]byte{"root.raw": dataPayload, "root.hash": hashPayload})
	reader := &memFileReader{data: stream}
	entries, err := image.ParseCosiIndex(context.Background(), reader)
	require.NoError(t, err)
	loaded, err := image.LoadManifest(context.Background(), reader, entries)
	require.NoError(t, err)
	cosiReader := &image.CosiReader{FileReader: reader, Entries: entries}

	s := &subsys{deployer: image.NewDeployer(), mounter: &fakeMounter{}, verity: &fakeVerity{}}
	ctx := &subsystem.Context{StorageGraph: graph, ResolvedDevices: map[string]string{}}
	fsNode := graph.NodesOfKind(storagegraph.NodeKindFilesystem)[0]

	err = s.deployFilesystem(ctx, cosiReader, loaded, fsNode, "/mnt/newroot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no root hash")
}

func TestFilesystemsSourcedFromImage(t *testing.T) {
	graph := buildVerityGraph(t, "/dev/sda")
	found := filesystemsSourcedFromImage(graph)
	require.Len(t, found, 1)
	assert.Equal(t, types.FilesystemSourceImage, found[0].Filesystem.Source)
}

func TestValidateHostConfig_RejectsDiskLayoutChangeOutsideInstallOrUpdate(t *testing.T) {
	s := &subsys{}
	prev := types.HostConfiguration{Storage: types.StorageConfig{Disks: []types.Disk{{ID: "a"}}}}
	ctx := &subsystem.Context{
		Spec:          types.HostConfiguration{Storage: types.StorageConfig{}},
		PreviousSpec:  &prev,
		ServicingType: types.ServicingTypeHotPatch,
	}
	err := s.ValidateHostConfig(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clean install or an A/B update")
}
