package storagegraph

import (
	"sort"

	"github.com/cuemby/hostd/pkg/types"
)

// NodeKind tags the closed set of storage-graph node kinds (§3.2-§3.4).
type NodeKind string

const (
	NodeKindDisk             NodeKind = "disk"
	NodeKindPartition        NodeKind = "partition"
	NodeKindAdoptedPartition NodeKind = "adopted-partition"
	NodeKindRaidArray        NodeKind = "raid-array"
	NodeKindABPair           NodeKind = "ab-pair"
	NodeKindEncryptedVolume  NodeKind = "encrypted-volume"
	NodeKindVerityDevice     NodeKind = "verity-device"
	NodeKindFilesystem       NodeKind = "filesystem"
	NodeKindMountPoint       NodeKind = "mount-point"
)

// EdgeKind tags the reference relationship an Edge represents.
type EdgeKind string

const (
	EdgeKindOwnsPartition   EdgeKind = "owns-partition"
	EdgeKindRaidMember      EdgeKind = "raid-member"
	EdgeKindABSideA         EdgeKind = "ab-side-a"
	EdgeKindABSideB         EdgeKind = "ab-side-b"
	EdgeKindEncryptedTarget EdgeKind = "encrypted-target"
	EdgeKindVerityData      EdgeKind = "verity-data"
	EdgeKindVerityHash      EdgeKind = "verity-hash"
	EdgeKindFilesystemOn    EdgeKind = "filesystem-on"
	EdgeKindMountedAt       EdgeKind = "mounted-at"
)

// Node is a single entry in the storage graph's arena.
type Node struct {
	ID       string
	Kind     NodeKind
	Disk     *types.Disk             // set when Kind == NodeKindDisk
	Partition *types.Partition       // set when Kind == NodeKindPartition
	Adopted  *types.AdoptedPartition // set when Kind == NodeKindAdoptedPartition
	Raid     *types.RaidArray        // set when Kind == NodeKindRaidArray
	ABPair   *types.ABVolumePair     // set when Kind == NodeKindABPair
	Encrypted *types.EncryptedVolume // set when Kind == NodeKindEncryptedVolume
	Verity   *types.VerityDevice     // set when Kind == NodeKindVerityDevice
	Filesystem *types.Filesystem     // set when Kind == NodeKindFilesystem
	MountPoint *types.MountPoint     // set when Kind == NodeKindMountPoint
	// DiskID is set on NodeKindPartition nodes to name the owning disk.
	DiskID string
	// PartitionIndex is this partition's 1-based position within its
	// disk's partition list, used by BlockDevicePath.
	PartitionIndex int
}

// Edge is one typed, directed reference from a referrer node to a target
// node.
type Edge struct {
	From string
	To   string
	Kind EdgeKind
}

// Graph is the validated, built storage dependency graph. Two graphs built
// from identical storage sections are observably equal (§8): field order is
// fixed, node slices are sorted by id, and edge slices keep insertion
// order, which follows the configuration's own order.
type Graph struct {
	nodes map[string]*Node
	edges []Edge
	// order records node-insertion order; Nodes and NodesOfKind sort by id
	// rather than read it.
	order []string
}

func newGraph() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

func (g *Graph) addNode(n *Node) {
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
}

func (g *Graph) addEdge(e Edge) {
	g.edges = append(g.edges, e)
}

// Node returns the node with the given id, or nil if absent.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// HasNode reports whether id exists in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Edges returns a copy of the graph's edge list, in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// EdgesFrom returns the edges whose From == id, in insertion order.
func (g *Graph) EdgesFrom(id string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// EdgesTo returns the edges whose To == id, in insertion order.
func (g *Graph) EdgesTo(id string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.To == id {
			out = append(out, e)
		}
	}
	return out
}

// Nodes returns all nodes sorted by id, for deterministic iteration.
func (g *Graph) Nodes() []*Node {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = g.nodes[id]
	}
	return out
}

// NodesOfKind returns nodes of the given kind, sorted by id.
func (g *Graph) NodesOfKind(kind NodeKind) []*Node {
	var out []*Node
	for _, n := range g.Nodes() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
