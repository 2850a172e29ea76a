package storagegraph

import (
	"testing"

	"github.com/cuemby/hostd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleDisk(id, device string, parts ...types.Partition) types.Disk {
	return types.Disk{ID: id, Device: device, PartitionTableType: types.PartitionTableTypeGPT, Partitions: parts}
}

func fixedSize(bytes uint64) types.PartitionSize { return types.PartitionSize{Bytes: bytes} }

func baseConfig() types.HostConfiguration {
	return types.HostConfiguration{
		Trident: types.TridentConfig{DatastorePath: "/var/lib/hostd"},
		Storage: types.StorageConfig{
			Disks: []types.Disk{
				simpleDisk("disk1", "/dev/sda",
					types.Partition{ID: "esp1", Type: types.PartitionTypeESP, Size: fixedSize(100 << 20)},
					types.Partition{ID: "root1", Type: types.PartitionTypeRoot, Size: fixedSize(4 << 30)},
				),
			},
			Filesystems: []types.Filesystem{
				{DeviceID: "esp1", Type: types.FilesystemTypeVFAT, Source: types.FilesystemSourceNew, MountPoint: &types.MountPoint{Path: "/boot/efi"}},
				{DeviceID: "root1", Type: types.FilesystemTypeExt4, Source: types.FilesystemSourceNew, MountPoint: &types.MountPoint{Path: "/"}},
			},
		},
	}
}

func TestBuild_Deterministic(t *testing.T) {
	cfg := baseConfig()
	g1, err := Build(cfg)
	require.NoError(t, err)
	g2, err := Build(cfg)
	require.NoError(t, err)

	assert.Equal(t, nodeIDs(g1), nodeIDs(g2))
	assert.Equal(t, g1.Edges(), g2.Edges())
}

func nodeIDs(g *Graph) []string {
	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestBuild_DuplicateDeviceId(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.Disks[0].Partitions = append(cfg.Storage.Disks[0].Partitions,
		types.Partition{ID: "esp1", Type: types.PartitionTypeVar, Size: fixedSize(1 << 20)})

	_, err := Build(cfg)
	require.Error(t, err)
	var dupErr *DuplicateDeviceId
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "esp1", dupErr.ID)
}

func TestBuild_NonAbsoluteMountPath(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.Filesystems[1].MountPoint.Path = "relative/path"

	_, err := Build(cfg)
	require.Error(t, err)
	var nonAbs *NonAbsoluteMountPath
	require.ErrorAs(t, err, &nonAbs)
}

func TestBuild_DuplicateMountPath(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.Filesystems[0].MountPoint.Path = "/"

	_, err := Build(cfg)
	require.Error(t, err)
	var dupMount *DuplicateMountPath
	require.ErrorAs(t, err, &dupMount)
}

// Scenario 5 (§8): a RAID-1 definition with only one member.
func TestBuild_RaidCardinality(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.Disks[0].Partitions = append(cfg.Storage.Disks[0].Partitions,
		types.Partition{ID: "root2", Type: types.PartitionTypeRoot, Size: fixedSize(4 << 30)})
	cfg.Storage.RaidArrays = []types.RaidArray{
		{ID: "raid1", Name: "md0", Level: types.RaidLevel1, Members: []string{"root2"}},
	}

	_, err := Build(cfg)
	require.Error(t, err)
	var countErr *InvalidTargetCount
	require.ErrorAs(t, err, &countErr)
	assert.Equal(t, "raid1", countErr.Referrer)
	assert.Equal(t, 1, countErr.Actual)
	assert.Equal(t, 2, countErr.Min)
}

func TestBuild_RaidPartitionSizeMismatch(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.Disks[0].Partitions = append(cfg.Storage.Disks[0].Partitions,
		types.Partition{ID: "root2", Type: types.PartitionTypeRoot, Size: fixedSize(4 << 30)},
		types.Partition{ID: "root3", Type: types.PartitionTypeRoot, Size: fixedSize(8 << 30)},
	)
	cfg.Storage.RaidArrays = []types.RaidArray{
		{ID: "raid1", Name: "md0", Level: types.RaidLevel1, Members: []string{"root2", "root3"}},
	}

	_, err := Build(cfg)
	require.Error(t, err)
	var sizeErr *PartitionSizeMismatch
	require.ErrorAs(t, err, &sizeErr)
}

func TestBuild_VerityPartitionTypeMismatch(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.Disks[0].Partitions = append(cfg.Storage.Disks[0].Partitions,
		types.Partition{ID: "roothash", Type: types.PartitionTypeUsrVerity, Size: fixedSize(64 << 20)},
	)
	cfg.Storage.VerityDevices = []types.VerityDevice{
		{ID: "verity1", DataDeviceID: "root1", HashDeviceID: "roothash", DeviceMapperName: "root"},
	}

	_, err := Build(cfg)
	require.Error(t, err)
	var vErr *VerityPartitionTypeMismatch
	require.ErrorAs(t, err, &vErr)
}

func TestBuild_NonExistentReference(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.RaidArrays = []types.RaidArray{
		{ID: "raid1", Name: "md0", Level: types.RaidLevel1, Members: []string{"root1", "missing"}},
	}

	_, err := Build(cfg)
	require.Error(t, err)
	var nonExist *NonExistentReference
	require.ErrorAs(t, err, &nonExist)
	assert.Equal(t, "missing", nonExist.TargetID)
}

// Scenario 6 (§8): datastore path on the volume wrapped by an A/B pair.
func TestBuild_DatastorePathInABUpdateVolume(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.Disks[0].Partitions = append(cfg.Storage.Disks[0].Partitions,
		types.Partition{ID: "root2", Type: types.PartitionTypeRoot, Size: fixedSize(4 << 30)},
	)
	cfg.Storage.ABVolumePairs = []types.ABVolumePair{
		{ID: "root", VolumeA: "root1", VolumeB: "root2"},
	}
	cfg.Storage.Filesystems[1].DeviceID = "root"
	cfg.Trident.DatastorePath = "/var/lib/hostd"

	_, err := Build(cfg)
	require.Error(t, err)
	var dsErr *DatastorePathInABUpdateVolume
	require.ErrorAs(t, err, &dsErr)
	assert.Equal(t, "root", dsErr.VolumeID)

	// Moving the datastore off the A/B volume resolves the error.
	cfg.Storage.Disks[0].Partitions = append(cfg.Storage.Disks[0].Partitions,
		types.Partition{ID: "varpart", Type: types.PartitionTypeVar, Size: fixedSize(1 << 30)})
	cfg.Storage.Filesystems = append(cfg.Storage.Filesystems, types.Filesystem{
		DeviceID: "varpart", Type: types.FilesystemTypeExt4, Source: types.FilesystemSourceNew,
		MountPoint: &types.MountPoint{Path: "/var/lib/hostd"},
	})
	_, err = Build(cfg)
	assert.NoError(t, err)
}

func TestBuild_ValidGraph_AllNodesReachableAndEdgesValid(t *testing.T) {
	cfg := baseConfig()
	g, err := Build(cfg)
	require.NoError(t, err)

	for _, e := range g.Edges() {
		assert.True(t, g.HasNode(e.From), "edge from missing node %s", e.From)
		assert.True(t, g.HasNode(e.To), "edge to missing node %s", e.To)
	}
}

func TestBuild_UnsupportedPartitionTable(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.Disks[0].PartitionTableType = "mbr"

	_, err := Build(cfg)
	require.Error(t, err)
	var tblErr *UnsupportedPartitionTable
	require.ErrorAs(t, err, &tblErr)
}

func TestBuild_GrowPartitionMustBeLast(t *testing.T) {
	cfg := types.HostConfiguration{
		Storage: types.StorageConfig{
			Disks: []types.Disk{
				simpleDisk("disk1", "/dev/sda",
					types.Partition{ID: "grow1", Type: types.PartitionTypeHome, Size: types.PartitionSize{Grow: true}},
					types.Partition{ID: "root1", Type: types.PartitionTypeRoot, Size: fixedSize(4 << 30)},
				),
			},
		},
	}

	_, err := Build(cfg)
	require.Error(t, err)
	var growErr *MultipleGrowPartitions
	require.ErrorAs(t, err, &growErr)
}
