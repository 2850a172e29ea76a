package storagegraph

import (
	"fmt"

	"github.com/cuemby/hostd/pkg/types"
)

// RootFilesystemIsVerity reports whether the filesystem mounted at "/"
// ultimately sits on a verity device.
func (g *Graph) RootFilesystemIsVerity() bool {
	root := g.Node("mount:/")
	if root == nil {
		return false
	}
	fsEdges := g.EdgesTo(root.ID)
	if len(fsEdges) == 0 {
		return false
	}
	fsNode := g.Node(fsEdges[0].From)
	if fsNode == nil || fsNode.Filesystem.DeviceID == "" {
		return false
	}
	return g.isKindAncestor(fsNode.Filesystem.DeviceID, NodeKindVerityDevice, make(map[string]bool))
}

// HasABCapabilities reports whether id, or something id wraps (walking
// through encrypted/verity/raid/filesystem wrapping edges, i.e. edges
// other than the A/B pair's own side edges), is an A/B volume pair.
func (g *Graph) HasABCapabilities(id string) bool {
	return g.isKindAncestor(id, NodeKindABPair, make(map[string]bool))
}

// isKindAncestor walks the wrapping chain starting at id (following edges
// FROM id, i.e. the things id is built on top of) and reports whether any
// node reached, including id itself, has the given kind. It never descends
// past a node of the target kind, matching "ancestor through non-<kind>
// edges" from §4.1.
func (g *Graph) isKindAncestor(id string, kind NodeKind, visited map[string]bool) bool {
	if visited[id] {
		return false
	}
	visited[id] = true
	node := g.Node(id)
	if node == nil {
		return false
	}
	if node.Kind == kind {
		return true
	}
	for _, e := range g.EdgesFrom(id) {
		if g.isKindAncestor(e.To, kind, visited) {
			return true
		}
	}
	return false
}

// BlockDevicePath resolves a logical block-device id to a /dev path,
// composing disk+partition numbering, device-mapper names, and kernel RAID
// names. Not defined for filesystem or mount-point nodes.
//
// resolved supplies paths that cannot be derived structurally: adopted
// partitions (matched by UUID/label at runtime) and A/B pairs (whichever
// side is currently active). Callers populate resolved from the persisted
// HostStatus before calling.
func (g *Graph) BlockDevicePath(id string, resolved map[string]string) (string, error) {
	if p, ok := resolved[id]; ok {
		return p, nil
	}
	node := g.Node(id)
	if node == nil {
		return "", &NonExistentReference{Referrer: "BlockDevicePath", TargetID: id}
	}
	switch node.Kind {
	case NodeKindDisk:
		return node.Disk.Device, nil
	case NodeKindPartition:
		disk := g.Node(node.DiskID)
		if disk == nil {
			return "", &PartitionNotOwned{PartitionID: id}
		}
		return partitionDevicePath(disk.Disk.Device, node.PartitionIndex), nil
	case NodeKindRaidArray:
		return "/dev/" + node.Raid.Name, nil
	case NodeKindEncryptedVolume:
		return "/dev/mapper/" + node.Encrypted.DeviceMapperName, nil
	case NodeKindVerityDevice:
		return "/dev/mapper/" + node.Verity.DeviceMapperName, nil
	case NodeKindAdoptedPartition:
		return "", fmt.Errorf("block device path for adopted partition %q requires a runtime-resolved entry", id)
	case NodeKindABPair:
		return "", fmt.Errorf("block device path for a/b pair %q requires a runtime-resolved active side", id)
	default:
		return "", fmt.Errorf("block device path is not defined for node kind %s", node.Kind)
	}
}

// partitionDevicePath composes a partition's device node path from its
// disk's device path and 1-based index, handling the "pN" suffix
// convention for devices whose base name ends in a digit (nvme0n1,
// mmcblk0, loop0, ...).
func partitionDevicePath(diskDevice string, index int) string {
	if len(diskDevice) > 0 {
		last := diskDevice[len(diskDevice)-1]
		if last >= '0' && last <= '9' {
			return fmt.Sprintf("%sp%d", diskDevice, index)
		}
	}
	return fmt.Sprintf("%s%d", diskDevice, index)
}

// Partitions returns every partition node, sorted by id.
func (g *Graph) Partitions() []*types.Partition {
	var out []*types.Partition
	for _, n := range g.NodesOfKind(NodeKindPartition) {
		out = append(out, n.Partition)
	}
	return out
}

// Filesystems returns every filesystem, sorted by node id.
func (g *Graph) Filesystems() []*types.Filesystem {
	var out []*types.Filesystem
	for _, n := range g.NodesOfKind(NodeKindFilesystem) {
		out = append(out, n.Filesystem)
	}
	return out
}

// MountPoints returns every mount point, sorted by path.
func (g *Graph) MountPoints() []*types.MountPoint {
	var out []*types.MountPoint
	for _, n := range g.NodesOfKind(NodeKindMountPoint) {
		out = append(out, n.MountPoint)
	}
	return out
}

// FilesystemForMountPath returns the filesystem mounted at path, if any.
func (g *Graph) FilesystemForMountPath(path string) (*types.Filesystem, bool) {
	mp := g.Node("mount:" + path)
	if mp == nil {
		return nil, false
	}
	for _, e := range g.EdgesTo(mp.ID) {
		fsNode := g.Node(e.From)
		if fsNode != nil {
			return fsNode.Filesystem, true
		}
	}
	return nil, false
}

// PartitionSizeBytes looks up a partition's resolved size; "grow"
// partitions return ok=false since their size is only known once the
// target disk's real geometry is read.
func (g *Graph) PartitionSizeBytes(id string) (bytes uint64, ok bool) {
	n := g.Node(id)
	if n == nil || n.Kind != NodeKindPartition {
		return 0, false
	}
	if n.Partition.Size.Grow {
		return 0, false
	}
	return n.Partition.Size.Bytes, true
}

// DeviceDescription renders a short human-readable description of a node,
// used in log messages and error formatting.
func DeviceDescription(n *Node) string {
	switch n.Kind {
	case NodeKindDisk:
		return fmt.Sprintf("disk %s (%s)", n.ID, n.Disk.Device)
	case NodeKindPartition:
		return fmt.Sprintf("partition %s (%s on %s)", n.ID, n.Partition.Type, n.DiskID)
	default:
		return fmt.Sprintf("%s %s", n.Kind, n.ID)
	}
}
