package storagegraph

import (
	"fmt"
	"strings"

	"github.com/cuemby/hostd/pkg/types"
)

// sharingPeers returns the set of referrer kinds that may share a target
// with a referrer of kind k. By default no kind may share — every
// block-device target is consumed exclusively by exactly one referrer
// (§3.7), matching "a partition is owned exclusively by exactly one disk"
// generalized to every wrapping relationship in the graph.
func sharingPeers(k NodeKind) []NodeKind {
	return nil
}

// Build constructs and validates the storage graph for cfg.Storage (§4.1).
// Iteration order of internal rule checks is not itself observable (§5);
// each rule checks the whole graph before the next begins, and the first
// failing rule's error is returned. The datastore path (cfg.Trident) is
// consulted for the DatastorePathInABUpdateVolume check (§3.7).
func Build(cfg types.HostConfiguration) (*Graph, error) {
	storage := cfg.Storage
	g := newGraph()
	seenIDs := make(map[string]bool)

	// --- Step 1: insert block-device entities, reject duplicate ids ---
	partitionOwner := make(map[string]string) // partition id -> disk id
	for di, disk := range storage.Disks {
		if disk.PartitionTableType != types.PartitionTableTypeGPT {
			return nil, &UnsupportedPartitionTable{DiskID: disk.ID, Type: string(disk.PartitionTableType)}
		}
		if err := insertID(seenIDs, disk.ID); err != nil {
			return nil, err
		}
		diskCopy := storage.Disks[di]
		g.addNode(&Node{ID: disk.ID, Kind: NodeKindDisk, Disk: &diskCopy})

		growSeen := false
		for pi, part := range disk.Partitions {
			if err := insertID(seenIDs, part.ID); err != nil {
				return nil, err
			}
			if part.Size.Grow {
				if growSeen {
					return nil, &MultipleGrowPartitions{DiskID: disk.ID, Reason: "at most one grow partition is allowed per disk"}
				}
				if pi != len(disk.Partitions)-1 {
					return nil, &MultipleGrowPartitions{DiskID: disk.ID, Reason: "the grow partition must be the last partition"}
				}
				growSeen = true
			}
			partCopy := disk.Partitions[pi]
			g.addNode(&Node{
				ID: part.ID, Kind: NodeKindPartition, Partition: &partCopy,
				DiskID: disk.ID, PartitionIndex: pi + 1,
			})
			g.addEdge(Edge{From: disk.ID, To: part.ID, Kind: EdgeKindOwnsPartition})
			partitionOwner[part.ID] = disk.ID
		}
	}

	for i, ap := range storage.AdoptedPartitions {
		if err := insertID(seenIDs, ap.ID); err != nil {
			return nil, err
		}
		apCopy := storage.AdoptedPartitions[i]
		g.addNode(&Node{ID: ap.ID, Kind: NodeKindAdoptedPartition, Adopted: &apCopy})
	}

	for i, raid := range storage.RaidArrays {
		if err := insertID(seenIDs, raid.ID); err != nil {
			return nil, err
		}
		raidCopy := storage.RaidArrays[i]
		g.addNode(&Node{ID: raid.ID, Kind: NodeKindRaidArray, Raid: &raidCopy})
	}

	for i, pair := range storage.ABVolumePairs {
		if err := insertID(seenIDs, pair.ID); err != nil {
			return nil, err
		}
		pairCopy := storage.ABVolumePairs[i]
		g.addNode(&Node{ID: pair.ID, Kind: NodeKindABPair, ABPair: &pairCopy})
	}

	for i, ev := range storage.EncryptedVolumes {
		if err := insertID(seenIDs, ev.ID); err != nil {
			return nil, err
		}
		evCopy := storage.EncryptedVolumes[i]
		g.addNode(&Node{ID: ev.ID, Kind: NodeKindEncryptedVolume, Encrypted: &evCopy})
	}

	for i, vd := range storage.VerityDevices {
		if err := insertID(seenIDs, vd.ID); err != nil {
			return nil, err
		}
		vdCopy := storage.VerityDevices[i]
		g.addNode(&Node{ID: vd.ID, Kind: NodeKindVerityDevice, Verity: &vdCopy})
	}

	// --- Step 2: insert filesystem + mount-point nodes ---
	seenMountPaths := make(map[string]bool)
	fsIDs := make([]string, len(storage.Filesystems))
	for i := range storage.Filesystems {
		fsCopy := storage.Filesystems[i]
		fsID := filesystemNodeID(fsCopy, i)
		fsIDs[i] = fsID
		g.addNode(&Node{ID: fsID, Kind: NodeKindFilesystem, Filesystem: &fsCopy})

		switch fsCopy.Source {
		case types.FilesystemSourceImage, types.FilesystemSourceAdopted:
			if fsCopy.DeviceID == "" {
				return nil, &FilesystemMissingDeviceID{Reason: fmt.Sprintf("filesystem %q: image/adopted filesystems require a device id", fsID)}
			}
		}
		if fsCopy.Type == types.FilesystemTypeTmpfs || fsCopy.Type == types.FilesystemTypeOverlay {
			if fsCopy.DeviceID != "" {
				return nil, &FilesystemMissingDeviceID{Reason: fmt.Sprintf("filesystem %q: tmpfs/overlay filesystems must not carry a device id", fsID)}
			}
		}
		if fsCopy.Type == types.FilesystemTypeSwap && fsCopy.MountPoint != nil {
			return nil, &FilesystemUnexpectedMountPoint{DeviceID: fsID, Reason: "swap filesystems must not have a mount point"}
		}

		if fsCopy.MountPoint != nil {
			path := fsCopy.MountPoint.Path
			if !strings.HasPrefix(path, "/") {
				return nil, &NonAbsoluteMountPath{Path: path}
			}
			if seenMountPaths[path] {
				return nil, &DuplicateMountPath{Path: path}
			}
			seenMountPaths[path] = true
			mpCopy := *fsCopy.MountPoint
			mpID := "mount:" + path
			g.addNode(&Node{ID: mpID, Kind: NodeKindMountPoint, MountPoint: &mpCopy})
			g.addEdge(Edge{From: fsID, To: mpID, Kind: EdgeKindMountedAt})
		}
	}

	// --- Step 3: per-referrer reference validation ---
	for _, raid := range storage.RaidArrays {
		if err := validateMembers(g, raid.ID, raid.Members,
			[]NodeKind{NodeKindPartition, NodeKindAdoptedPartition},
			types.MinMembersForLevel(raid.Level), 0); err != nil {
			return nil, err
		}
		switch raid.Level {
		case types.RaidLevel1, types.RaidLevel5, types.RaidLevel6, types.RaidLevel10:
		default:
			return nil, &InvalidRaidLevel{Referrer: raid.ID, Level: raid.Level}
		}
		for _, m := range raid.Members {
			g.addEdge(Edge{From: raid.ID, To: m, Kind: EdgeKindRaidMember})
		}
	}

	for _, pair := range storage.ABVolumePairs {
		if err := validateMembers(g, pair.ID, []string{pair.VolumeA, pair.VolumeB},
			[]NodeKind{NodeKindPartition, NodeKindAdoptedPartition, NodeKindRaidArray, NodeKindEncryptedVolume, NodeKindVerityDevice},
			2, 2); err != nil {
			return nil, err
		}
		g.addEdge(Edge{From: pair.ID, To: pair.VolumeA, Kind: EdgeKindABSideA})
		g.addEdge(Edge{From: pair.ID, To: pair.VolumeB, Kind: EdgeKindABSideB})
	}

	blockedEncryptionUnderlying := map[types.PartitionType]bool{
		types.PartitionTypeESP:      true,
		types.PartitionTypeXBootLDR: true,
	}
	for _, ev := range storage.EncryptedVolumes {
		if err := validateMembers(g, ev.ID, []string{ev.DeviceID},
			[]NodeKind{NodeKindPartition, NodeKindRaidArray}, 1, 1); err != nil {
			return nil, err
		}
		if target := g.Node(ev.DeviceID); target != nil && target.Kind == NodeKindPartition {
			if blockedEncryptionUnderlying[target.Partition.Type] {
				return nil, &InvalidReferenceKind{
					Referrer: ev.ID, Target: ev.DeviceID, TargetKind: target.Kind,
					Allowed: []NodeKind{NodeKindPartition, NodeKindRaidArray},
				}
			}
		}
		g.addEdge(Edge{From: ev.ID, To: ev.DeviceID, Kind: EdgeKindEncryptedTarget})
	}

	for _, vd := range storage.VerityDevices {
		if err := validateMembers(g, vd.ID, []string{vd.DataDeviceID, vd.HashDeviceID},
			[]NodeKind{NodeKindPartition}, 2, 2); err != nil {
			return nil, err
		}
		dataNode := g.Node(vd.DataDeviceID)
		hashNode := g.Node(vd.HashDeviceID)
		expectedHash, ok := types.VerityPartitionPairs[dataNode.Partition.Type]
		if !ok || hashNode.Partition.Type != expectedHash {
			return nil, &VerityPartitionTypeMismatch{Referrer: vd.ID}
		}
		g.addEdge(Edge{From: vd.ID, To: vd.DataDeviceID, Kind: EdgeKindVerityData})
		g.addEdge(Edge{From: vd.ID, To: vd.HashDeviceID, Kind: EdgeKindVerityHash})
	}

	for i, fsID := range fsIDs {
		fs := storage.Filesystems[i]
		if fs.DeviceID == "" {
			continue
		}
		if err := validateMembers(g, fsID, []string{fs.DeviceID},
			[]NodeKind{NodeKindPartition, NodeKindAdoptedPartition, NodeKindRaidArray, NodeKindEncryptedVolume, NodeKindVerityDevice, NodeKindABPair},
			1, 1); err != nil {
			return nil, err
		}
		g.addEdge(Edge{From: fsID, To: fs.DeviceID, Kind: EdgeKindFilesystemOn})
	}

	// --- Step 4: cross-edge checks ---
	if err := checkSharing(g); err != nil {
		return nil, err
	}
	if err := checkABHomogeneity(g, storage); err != nil {
		return nil, err
	}
	if err := checkFilesystemOnVerity(g); err != nil {
		return nil, err
	}
	if err := checkRootMountPoint(g, storage); err != nil {
		return nil, err
	}
	if err := checkVarTmpReadWrite(g); err != nil {
		return nil, err
	}
	if err := checkEncryptionBlock(storage); err != nil {
		return nil, err
	}
	if err := checkDatastorePath(g, cfg.Trident.DatastorePath); err != nil {
		return nil, err
	}

	return g, nil
}

// checkDatastorePath rejects a datastore path that resolves onto a volume
// that is one side of an A/B update pair (§3.7): rollback must never
// destroy the datastore. The datastore path is matched against mount
// points by longest-prefix match, the same rule the kernel uses to resolve
// which mount "owns" a path.
func checkDatastorePath(g *Graph, datastorePath string) error {
	if datastorePath == "" {
		return nil
	}
	var best *Node
	for _, n := range g.NodesOfKind(NodeKindMountPoint) {
		path := n.MountPoint.Path
		if datastorePath == path || strings.HasPrefix(datastorePath, strings.TrimSuffix(path, "/")+"/") {
			if best == nil || len(n.MountPoint.Path) > len(best.MountPoint.Path) {
				best = n
			}
		}
	}
	if best == nil {
		return nil
	}
	fsEdges := g.EdgesTo(best.ID)
	if len(fsEdges) == 0 {
		return nil
	}
	fsID := fsEdges[0].From
	fsNode := g.Node(fsID)
	if fsNode == nil || fsNode.Filesystem.DeviceID == "" {
		return nil
	}
	if volumeID, ok := g.findABPairAncestor(fsNode.Filesystem.DeviceID, make(map[string]bool)); ok {
		return &DatastorePathInABUpdateVolume{DatastorePath: datastorePath, VolumeID: volumeID}
	}
	return nil
}

// findABPairAncestor walks the wrapping chain starting at id (the device a
// filesystem is built on) and returns the id of the first A/B pair found,
// including id itself.
func (g *Graph) findABPairAncestor(id string, visited map[string]bool) (string, bool) {
	if visited[id] {
		return "", false
	}
	visited[id] = true
	node := g.Node(id)
	if node == nil {
		return "", false
	}
	if node.Kind == NodeKindABPair {
		return id, true
	}
	for _, e := range g.EdgesFrom(id) {
		if volumeID, ok := g.findABPairAncestor(e.To, visited); ok {
			return volumeID, true
		}
	}
	return "", false
}

func insertID(seen map[string]bool, id string) error {
	if id == "" {
		return &NonExistentReference{Referrer: "<unknown>", TargetID: ""}
	}
	if seen[id] {
		return &DuplicateDeviceId{ID: id}
	}
	seen[id] = true
	return nil
}

func filesystemNodeID(fs types.Filesystem, index int) string {
	if fs.DeviceID != "" {
		return "fs:" + fs.DeviceID
	}
	if fs.MountPoint != nil {
		return "fs-mount:" + fs.MountPoint.Path
	}
	return fmt.Sprintf("fs#%d", index)
}

// validateMembers checks existence, allowed kind, distinctness and
// cardinality for a referrer's target list, per §4.1 step 3.
func validateMembers(g *Graph, referrer string, targets []string, allowed []NodeKind, min, max int) error {
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if seen[t] {
			return &DuplicateReferenceTarget{Referrer: referrer, TargetID: t}
		}
		seen[t] = true
		node := g.Node(t)
		if node == nil {
			return &NonExistentReference{Referrer: referrer, TargetID: t}
		}
		if !kindAllowed(node.Kind, allowed) {
			return &InvalidReferenceKind{Referrer: referrer, Target: t, TargetKind: node.Kind, Allowed: allowed}
		}
	}
	if len(targets) < min || (max > 0 && len(targets) > max) {
		return &InvalidTargetCount{Referrer: referrer, Actual: len(targets), Min: min, Max: max}
	}
	return nil
}

func kindAllowed(k NodeKind, allowed []NodeKind) bool {
	for _, a := range allowed {
		if a == k {
			return true
		}
	}
	return false
}

// referrerEdgeKinds are the edge kinds that represent exclusive device
// consumption, subject to the sharing-compatibility rule.
var referrerEdgeKinds = []EdgeKind{
	EdgeKindRaidMember, EdgeKindABSideA, EdgeKindABSideB,
	EdgeKindEncryptedTarget, EdgeKindVerityData, EdgeKindVerityHash,
	EdgeKindFilesystemOn,
}

func checkSharing(g *Graph) error {
	referrersByTarget := make(map[string][]Edge)
	for _, e := range g.Edges() {
		for _, k := range referrerEdgeKinds {
			if e.Kind == k {
				referrersByTarget[e.To] = append(referrersByTarget[e.To], e)
			}
		}
	}
	for target, edges := range referrersByTarget {
		if len(edges) <= 1 {
			continue
		}
		a, b := edges[0], edges[1]
		fromA, fromB := g.Node(a.From), g.Node(b.From)
		peersA := sharingPeers(fromA.Kind)
		if !kindAllowed(fromB.Kind, peersA) {
			return &ReferrerForbiddenSharing{
				Target: target, ReferrerA: a.From, ReferrerB: b.From, AllowedPeers: peersA,
			}
		}
	}
	return nil
}

func checkABHomogeneity(g *Graph, storage types.StorageConfig) error {
	for _, pair := range storage.ABVolumePairs {
		a, b := g.Node(pair.VolumeA), g.Node(pair.VolumeB)
		if a == nil || b == nil {
			continue // already reported as NonExistentReference above
		}
		if a.Kind != b.Kind {
			return &ABPairKindMismatch{PairID: pair.ID, KindA: a.Kind, KindB: b.Kind}
		}
		if a.Kind == NodeKindPartition {
			if a.Partition.Type != b.Partition.Type {
				return &PartitionTypeMismatch{Referrer: pair.ID}
			}
			if !sizesEqual(a.Partition.Size, b.Partition.Size) {
				return &PartitionSizeMismatch{Referrer: pair.ID}
			}
		}
	}
	for _, raid := range storage.RaidArrays {
		var refType *types.PartitionType
		var refSize *types.PartitionSize
		for _, m := range raid.Members {
			node := g.Node(m)
			if node == nil || node.Kind != NodeKindPartition {
				continue
			}
			if refType == nil {
				t := node.Partition.Type
				refType = &t
				s := node.Partition.Size
				refSize = &s
				continue
			}
			if node.Partition.Type != *refType {
				return &PartitionTypeMismatch{Referrer: raid.ID}
			}
			if !sizesEqual(node.Partition.Size, *refSize) {
				return &PartitionSizeMismatch{Referrer: raid.ID}
			}
		}
	}
	return nil
}

func sizesEqual(a, b types.PartitionSize) bool {
	if a.Grow != b.Grow {
		return false
	}
	if a.Grow {
		return true
	}
	return a.Bytes == b.Bytes
}

func checkFilesystemOnVerity(g *Graph) error {
	for _, n := range g.NodesOfKind(NodeKindFilesystem) {
		if n.Filesystem.DeviceID == "" {
			continue
		}
		target := g.Node(n.Filesystem.DeviceID)
		if target == nil || target.Kind != NodeKindVerityDevice {
			continue
		}
		if !n.Filesystem.Type.ExtFamily() {
			return &FilesystemOnVerityInvalid{DeviceID: n.ID, Type: string(n.Filesystem.Type)}
		}
	}
	return nil
}

func checkRootMountPoint(g *Graph, storage types.StorageConfig) error {
	if len(storage.Filesystems) == 0 {
		return nil
	}
	if !g.HasNode("mount:/") {
		return &MissingRootMountPoint{}
	}
	return nil
}

func checkVarTmpReadWrite(g *Graph) error {
	n := g.Node("mount:/var/tmp")
	if n == nil {
		return nil
	}
	if strings.Contains(n.MountPoint.Options, "ro") && !strings.Contains(n.MountPoint.Options, "rw") {
		return &VarTmpNotReadWrite{}
	}
	return nil
}

func checkEncryptionBlock(storage types.StorageConfig) error {
	if storage.Encryption == nil {
		return nil
	}
	enc := storage.Encryption
	if !strings.HasPrefix(enc.RecoveryKeyURL, "file://") {
		return &EncryptionRecoveryKeySchemeInvalid{URL: enc.RecoveryKeyURL}
	}
	if len(enc.PCRs) == 0 {
		return &EncryptionPCRInvalid{Reason: "encryption block must list at least one PCR"}
	}
	for _, pcr := range enc.PCRs {
		if !types.AllowedPCRs[pcr] {
			return &EncryptionPCRInvalid{Reason: fmt.Sprintf("pcr %d is not in the allowed set {4,7,11}", pcr)}
		}
	}
	return nil
}
