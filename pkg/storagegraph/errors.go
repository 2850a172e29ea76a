package storagegraph

import (
	"fmt"

	"github.com/cuemby/hostd/pkg/types"
)

// ValidationError is the common shape of every named error variant in this
// package: each carries the offending ids and, where applicable, the
// expected-vs-actual values (§4.1).
type ValidationError interface {
	error
	// Variant is a stable, documentation-matchable identifier, e.g.
	// "DuplicateDeviceId".
	Variant() string
}

// DuplicateDeviceId is returned when two block-device entities share an id.
type DuplicateDeviceId struct {
	ID string
}

func (e *DuplicateDeviceId) Error() string {
	return fmt.Sprintf("duplicate device id %q", e.ID)
}
func (e *DuplicateDeviceId) Variant() string { return "DuplicateDeviceId" }

// DuplicateMountPath is returned when two mount points share an absolute
// path.
type DuplicateMountPath struct {
	Path string
}

func (e *DuplicateMountPath) Error() string {
	return fmt.Sprintf("duplicate mount path %q", e.Path)
}
func (e *DuplicateMountPath) Variant() string { return "DuplicateMountPath" }

// NonAbsoluteMountPath is returned when a mount point's path is not
// absolute.
type NonAbsoluteMountPath struct {
	Path string
}

func (e *NonAbsoluteMountPath) Error() string {
	return fmt.Sprintf("mount path %q is not absolute", e.Path)
}
func (e *NonAbsoluteMountPath) Variant() string { return "NonAbsoluteMountPath" }

// NonExistentReference is returned when a referrer names a target id that
// does not exist anywhere in the graph.
type NonExistentReference struct {
	Referrer string
	TargetID string
}

func (e *NonExistentReference) Error() string {
	return fmt.Sprintf("%s references non-existent id %q", e.Referrer, e.TargetID)
}
func (e *NonExistentReference) Variant() string { return "NonExistentReference" }

// InvalidReferenceKind is returned when a target's kind is not in the
// referrer's allowed-target set.
type InvalidReferenceKind struct {
	Referrer   string
	Target     string
	TargetKind NodeKind
	Allowed    []NodeKind
}

func (e *InvalidReferenceKind) Error() string {
	return fmt.Sprintf("%s references %s of kind %s, allowed kinds are %v", e.Referrer, e.Target, e.TargetKind, e.Allowed)
}
func (e *InvalidReferenceKind) Variant() string { return "InvalidReferenceKind" }

// DuplicateReferenceTarget is returned when a single referrer names the
// same target id more than once where distinctness is required.
type DuplicateReferenceTarget struct {
	Referrer string
	TargetID string
}

func (e *DuplicateReferenceTarget) Error() string {
	return fmt.Sprintf("%s references target %q more than once", e.Referrer, e.TargetID)
}
func (e *DuplicateReferenceTarget) Variant() string { return "DuplicateReferenceTarget" }

// InvalidTargetCount is returned when a referrer's target cardinality is
// outside its allowed range.
type InvalidTargetCount struct {
	Referrer string
	Actual   int
	Min      int
	Max      int // 0 means unbounded
}

func (e *InvalidTargetCount) Error() string {
	if e.Max == 0 {
		return fmt.Sprintf("%s has %d targets, expected >= %d", e.Referrer, e.Actual, e.Min)
	}
	return fmt.Sprintf("%s has %d targets, expected between %d and %d", e.Referrer, e.Actual, e.Min, e.Max)
}
func (e *InvalidTargetCount) Variant() string { return "InvalidTargetCount" }

// ReferrerForbiddenSharing is returned when a target is referenced by two
// referrers whose kinds are not mutually allowed to share it.
type ReferrerForbiddenSharing struct {
	Target     string
	ReferrerA  string
	ReferrerB  string
	AllowedPeers []NodeKind
}

func (e *ReferrerForbiddenSharing) Error() string {
	return fmt.Sprintf("target %q is shared by %s and %s, which may not share it", e.Target, e.ReferrerA, e.ReferrerB)
}
func (e *ReferrerForbiddenSharing) Variant() string { return "ReferrerForbiddenSharing" }

// ABPairKindMismatch is returned when an A/B pair's two sides are not the
// same node kind.
type ABPairKindMismatch struct {
	PairID  string
	KindA   NodeKind
	KindB   NodeKind
}

func (e *ABPairKindMismatch) Error() string {
	return fmt.Sprintf("ab pair %q has mismatched side kinds %s/%s", e.PairID, e.KindA, e.KindB)
}
func (e *ABPairKindMismatch) Variant() string { return "ABPairKindMismatch" }

// PartitionSizeMismatch is returned when member/side partitions of a RAID
// array or A/B pair do not share the same size.
type PartitionSizeMismatch struct {
	Referrer string
}

func (e *PartitionSizeMismatch) Error() string {
	return fmt.Sprintf("%s has members/sides with mismatched partition sizes", e.Referrer)
}
func (e *PartitionSizeMismatch) Variant() string { return "PartitionSizeMismatch" }

// PartitionTypeMismatch is returned when member/side partitions of a RAID
// array or A/B pair do not share the same partition type.
type PartitionTypeMismatch struct {
	Referrer string
}

func (e *PartitionTypeMismatch) Error() string {
	return fmt.Sprintf("%s has members/sides with mismatched partition types", e.Referrer)
}
func (e *PartitionTypeMismatch) Variant() string { return "PartitionTypeMismatch" }

// InvalidRaidLevel is returned when a RAID array's level is not one of the
// supported levels (1, 5, 6, 10).
type InvalidRaidLevel struct {
	Referrer string
	Level    types.RaidLevel
}

func (e *InvalidRaidLevel) Error() string {
	return fmt.Sprintf("%s has unsupported raid level %d", e.Referrer, e.Level)
}
func (e *InvalidRaidLevel) Variant() string { return "InvalidRaidLevel" }

// VerityPartitionTypeMismatch is returned when a verity device's data/hash
// partitions are not a matching pair (root/root-verity or usr/usr-verity).
type VerityPartitionTypeMismatch struct {
	Referrer string
}

func (e *VerityPartitionTypeMismatch) Error() string {
	return fmt.Sprintf("%s has a data/hash partition pair that is not a valid verity pairing", e.Referrer)
}
func (e *VerityPartitionTypeMismatch) Variant() string { return "VerityPartitionTypeMismatch" }

// FilesystemUnexpectedMountPoint is returned when a filesystem that must
// not have a mount point (swap) has one, or one that must (non-swap,
// non-tmpfs-overlay-without-device) is missing one where required.
type FilesystemUnexpectedMountPoint struct {
	DeviceID string
	Reason   string
}

func (e *FilesystemUnexpectedMountPoint) Error() string {
	return fmt.Sprintf("filesystem %q: %s", e.DeviceID, e.Reason)
}
func (e *FilesystemUnexpectedMountPoint) Variant() string { return "FilesystemUnexpectedMountPoint" }

// FilesystemMissingDeviceID is returned when an image/adopted filesystem
// lacks a DeviceID, or a tmpfs/overlay filesystem has one.
type FilesystemMissingDeviceID struct {
	Reason string
}

func (e *FilesystemMissingDeviceID) Error() string { return e.Reason }
func (e *FilesystemMissingDeviceID) Variant() string { return "FilesystemMissingDeviceID" }

// FilesystemOnVerityInvalid is returned when a filesystem mounted on a
// verity device is not read-only ext-family (or equivalent).
type FilesystemOnVerityInvalid struct {
	DeviceID string
	Type     string
}

func (e *FilesystemOnVerityInvalid) Error() string {
	return fmt.Sprintf("filesystem %q of type %s on verity device must be read-only ext-family", e.DeviceID, e.Type)
}
func (e *FilesystemOnVerityInvalid) Variant() string { return "FilesystemOnVerityInvalid" }

// MissingRootMountPoint is returned when no mount point targets "/" while
// a payload-consuming subsystem is enabled.
type MissingRootMountPoint struct{}

func (e *MissingRootMountPoint) Error() string { return "no mount point targets \"/\"" }
func (e *MissingRootMountPoint) Variant() string { return "MissingRootMountPoint" }

// VarTmpNotReadWrite is returned when /var/tmp is configured on a volume
// that is not read-write.
type VarTmpNotReadWrite struct{}

func (e *VarTmpNotReadWrite) Error() string { return "/var/tmp must sit on a read-write volume" }
func (e *VarTmpNotReadWrite) Variant() string { return "VarTmpNotReadWrite" }

// DatastorePathInABUpdateVolume is returned when the configured datastore
// path resolves onto a volume that is one side of an A/B update pair
// (§3.7: rollback must never destroy the datastore).
type DatastorePathInABUpdateVolume struct {
	DatastorePath string
	VolumeID      string
}

func (e *DatastorePathInABUpdateVolume) Error() string {
	return fmt.Sprintf("datastore path %q resolves onto a/b update volume %q", e.DatastorePath, e.VolumeID)
}
func (e *DatastorePathInABUpdateVolume) Variant() string { return "DatastorePathInABUpdateVolume" }

// PartitionNotOwned is returned if a partition id appears with no owning
// disk (should be unreachable given the builder's own insertion, retained
// as a defensive invariant check surfaced to callers instead of a panic).
type PartitionNotOwned struct {
	PartitionID string
}

func (e *PartitionNotOwned) Error() string {
	return fmt.Sprintf("partition %q is not owned by any disk", e.PartitionID)
}
func (e *PartitionNotOwned) Variant() string { return "PartitionNotOwned" }

// MultipleGrowPartitions is returned when a disk has more than one "grow"
// partition, or the grow partition is not last.
type MultipleGrowPartitions struct {
	DiskID string
	Reason string
}

func (e *MultipleGrowPartitions) Error() string {
	return fmt.Sprintf("disk %q: %s", e.DiskID, e.Reason)
}
func (e *MultipleGrowPartitions) Variant() string { return "MultipleGrowPartitions" }

// UnsupportedPartitionTable is returned for a partition table type other
// than GPT.
type UnsupportedPartitionTable struct {
	DiskID string
	Type   string
}

func (e *UnsupportedPartitionTable) Error() string {
	return fmt.Sprintf("disk %q has unsupported partition table type %q", e.DiskID, e.Type)
}
func (e *UnsupportedPartitionTable) Variant() string { return "UnsupportedPartitionTable" }

// EncryptionPCRInvalid is returned when the encryption block's PCR set is
// empty or outside {4,7,11}, or a grub target carries a PCR other than 7.
type EncryptionPCRInvalid struct {
	Reason string
}

func (e *EncryptionPCRInvalid) Error() string   { return e.Reason }
func (e *EncryptionPCRInvalid) Variant() string { return "EncryptionPCRInvalid" }

// EncryptionRecoveryKeySchemeInvalid is returned when the recovery-key URL
// is not file:// scheme.
type EncryptionRecoveryKeySchemeInvalid struct {
	URL string
}

func (e *EncryptionRecoveryKeySchemeInvalid) Error() string {
	return fmt.Sprintf("recovery key url %q must use the file:// scheme", e.URL)
}
func (e *EncryptionRecoveryKeySchemeInvalid) Variant() string {
	return "EncryptionRecoveryKeySchemeInvalid"
}
