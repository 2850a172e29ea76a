package types

import "time"

// HostConfiguration is the declarative document the agent is handed for a
// servicing invocation. Unknown top-level fields are rejected by the YAML
// loader (pkg/config), not by this type.
type HostConfiguration struct {
	Trident        TridentConfig          `yaml:"trident" json:"trident"`
	Storage        StorageConfig          `yaml:"storage" json:"storage"`
	OSImage        *OSImageRef            `yaml:"os-image,omitempty" json:"osImage,omitempty"`
	OS             map[string]interface{} `yaml:"os,omitempty" json:"os,omitempty"`
	Scripts        map[string]interface{} `yaml:"scripts,omitempty" json:"scripts,omitempty"`
	ManagementOS   map[string]interface{} `yaml:"management-os,omitempty" json:"managementOs,omitempty"`
	InternalParams map[string]string      `yaml:"internal-params,omitempty" json:"internalParams,omitempty"`
}

// InternalParam names recognized by the engine.
const (
	// InternalParamNoTransition, when "true", makes finalize return Done
	// instead of requesting a reboot.
	InternalParamNoTransition = "no-transition"
)

// TridentConfig is the agent's self-configuration section.
type TridentConfig struct {
	DatastorePath string `yaml:"datastore-path" json:"datastorePath" validate:"required_if=Disabled false"`
	Disabled      bool   `yaml:"disabled" json:"disabled"`
	SelfUpgrade   bool   `yaml:"self-upgrade" json:"selfUpgrade"`
}

// OSImageRef points at a COSI image to deploy.
type OSImageRef struct {
	URL string `yaml:"url" json:"url" validate:"required,uri"`
}

// StorageConfig is the `storage` section of HostConfiguration: the full set
// of block-device and filesystem entities the storage graph is built from.
type StorageConfig struct {
	Disks             []Disk             `yaml:"disks,omitempty" json:"disks,omitempty"`
	AdoptedPartitions []AdoptedPartition `yaml:"adoptedPartitions,omitempty" json:"adoptedPartitions,omitempty"`
	RaidArrays        []RaidArray        `yaml:"raid,omitempty" json:"raid,omitempty"`
	ABVolumePairs     []ABVolumePair     `yaml:"abVolumePairs,omitempty" json:"abVolumePairs,omitempty"`
	EncryptedVolumes  []EncryptedVolume  `yaml:"encryptedVolumes,omitempty" json:"encryptedVolumes,omitempty"`
	VerityDevices     []VerityDevice     `yaml:"verity,omitempty" json:"verity,omitempty"`
	Encryption        *EncryptionBlock   `yaml:"encryption,omitempty" json:"encryption,omitempty"`
	ABUpdate          *ABUpdateBlock     `yaml:"abUpdate,omitempty" json:"abUpdate,omitempty"`
	Filesystems       []Filesystem       `yaml:"filesystems,omitempty" json:"filesystems,omitempty"`
}

// PartitionTableType names the partition table scheme on a Disk. Only GPT
// is currently supported.
type PartitionTableType string

const (
	PartitionTableTypeGPT PartitionTableType = "gpt"
)

// Disk is a physical or virtual block device owning an ordered set of
// partitions exclusively.
type Disk struct {
	ID                 string             `yaml:"id" json:"id"`
	Device             string             `yaml:"device" json:"device"`
	PartitionTableType PartitionTableType `yaml:"partitionTableType" json:"partitionTableType"`
	Partitions         []Partition        `yaml:"partitions" json:"partitions"`
}

// PartitionType is the tagged set of partition roles hostd understands.
type PartitionType string

const (
	PartitionTypeESP          PartitionType = "esp"
	PartitionTypeRoot         PartitionType = "root"
	PartitionTypeRootVerity   PartitionType = "root-verity"
	PartitionTypeUsr          PartitionType = "usr"
	PartitionTypeUsrVerity    PartitionType = "usr-verity"
	PartitionTypeHome         PartitionType = "home"
	PartitionTypeVar          PartitionType = "var"
	PartitionTypeTmp          PartitionType = "tmp"
	PartitionTypeSwap         PartitionType = "swap"
	PartitionTypeSrv          PartitionType = "srv"
	PartitionTypeXBootLDR     PartitionType = "xbootldr"
	PartitionTypeLinuxGeneric PartitionType = "linux-generic"
)

// VerityPartitionPairs maps a data partition type to its expected hash
// partition type, per §3.2.
var VerityPartitionPairs = map[PartitionType]PartitionType{
	PartitionTypeRoot: PartitionTypeRootVerity,
	PartitionTypeUsr:  PartitionTypeUsrVerity,
}

// PartitionSize is either a fixed byte count or "grow" (consume the rest of
// the disk). At most one partition per disk may grow, and it must be last.
type PartitionSize struct {
	Grow  bool   `yaml:"grow,omitempty" json:"grow,omitempty"`
	Bytes uint64 `yaml:"bytes,omitempty" json:"bytes,omitempty"`
}

// Partition is a GPT partition owned by exactly one Disk.
type Partition struct {
	ID   string        `yaml:"id" json:"id"`
	Type PartitionType `yaml:"type" json:"type"`
	Size PartitionSize `yaml:"size" json:"size"`
}

// AdoptedMatchKind selects how an AdoptedPartition locates its target.
type AdoptedMatchKind string

const (
	AdoptedMatchByPartitionUUID AdoptedMatchKind = "partition-uuid"
	AdoptedMatchByLabel         AdoptedMatchKind = "label"
)

// AdoptedPartition refers to an existing partition already present on disk,
// identified by UUID or label rather than created by hostd.
type AdoptedPartition struct {
	ID         string           `yaml:"id" json:"id"`
	MatchBy    AdoptedMatchKind `yaml:"matchBy" json:"matchBy"`
	MatchValue string           `yaml:"matchValue" json:"matchValue"`
}

// RaidLevel is a supported software RAID level.
type RaidLevel int

const (
	RaidLevel1  RaidLevel = 1
	RaidLevel5  RaidLevel = 5
	RaidLevel6  RaidLevel = 6
	RaidLevel10 RaidLevel = 10
)

// MinMembersForLevel returns the minimum member count for a RAID level.
func MinMembersForLevel(level RaidLevel) int {
	switch level {
	case RaidLevel1:
		return 2
	case RaidLevel5:
		return 3
	case RaidLevel6:
		return 4
	case RaidLevel10:
		return 4
	default:
		return 2
	}
}

// RaidArray is a software RAID array assembled from ≥2 member devices.
type RaidArray struct {
	ID      string    `yaml:"id" json:"id"`
	Name    string    `yaml:"name" json:"name"` // kernel device name, e.g. "md0"
	Level   RaidLevel `yaml:"level" json:"level"`
	Members []string  `yaml:"members" json:"members"` // referenced device ids
}

// ABVolumePair names the two sides of an A/B update rotation.
type ABVolumePair struct {
	ID      string `yaml:"id" json:"id"`
	VolumeA string `yaml:"volumeA" json:"volumeA"`
	VolumeB string `yaml:"volumeB" json:"volumeB"`
}

// EncryptedVolume wraps a single underlying device with LUKS2 encryption.
type EncryptedVolume struct {
	ID               string `yaml:"id" json:"id"`
	DeviceID         string `yaml:"deviceId" json:"deviceId"`
	DeviceMapperName string `yaml:"deviceMapperName" json:"deviceMapperName"`
}

// VerityDevice pairs a data device with a hash device under dm-verity.
type VerityDevice struct {
	ID               string `yaml:"id" json:"id"`
	DataDeviceID     string `yaml:"dataDeviceId" json:"dataDeviceId"`
	HashDeviceID     string `yaml:"hashDeviceId" json:"hashDeviceId"`
	DeviceMapperName string `yaml:"deviceMapperName" json:"deviceMapperName"`
}

// EncryptionBlock configures TPM-backed unlock for the listed encrypted
// volumes.
type EncryptionBlock struct {
	RecoveryKeyURL    string   `yaml:"recoveryKeyUrl" json:"recoveryKeyUrl"` // file:// scheme only
	Volumes           []string `yaml:"volumes" json:"volumes"`
	PCRs              []int    `yaml:"pcrs" json:"pcrs"` // subset of {4,7,11}
	ClearTPMOnInstall bool     `yaml:"clearTpmOnInstall,omitempty" json:"clearTpmOnInstall,omitempty"`
}

// AllowedPCRs is the set of PCR indices hostd will seal policy to.
var AllowedPCRs = map[int]bool{4: true, 7: true, 11: true}

// ABUpdateBlock being present enables the A/B update flow.
type ABUpdateBlock struct {
	VolumePairs []string `yaml:"volumePairs" json:"volumePairs"`
}

// FilesystemType enumerates the filesystem kinds hostd understands.
type FilesystemType string

const (
	FilesystemTypeExt2    FilesystemType = "ext2"
	FilesystemTypeExt3    FilesystemType = "ext3"
	FilesystemTypeExt4    FilesystemType = "ext4"
	FilesystemTypeXFS     FilesystemType = "xfs"
	FilesystemTypeVFAT    FilesystemType = "vfat"
	FilesystemTypeNTFS    FilesystemType = "ntfs"
	FilesystemTypeSwap    FilesystemType = "swap"
	FilesystemTypeTmpfs   FilesystemType = "tmpfs"
	FilesystemTypeOverlay FilesystemType = "overlay"
	FilesystemTypeAuto    FilesystemType = "auto"
)

// ExtFamily reports whether a filesystem type is one of the ext2/3/4
// family, relevant for resize-after-deploy and verity-image eligibility.
func (t FilesystemType) ExtFamily() bool {
	switch t {
	case FilesystemTypeExt2, FilesystemTypeExt3, FilesystemTypeExt4:
		return true
	default:
		return false
	}
}

// FilesystemSource tags where a filesystem's contents originate.
type FilesystemSource string

const (
	FilesystemSourceNew     FilesystemSource = "new"
	FilesystemSourceImage   FilesystemSource = "image"
	FilesystemSourceAdopted FilesystemSource = "adopted"
)

// MountPoint is a path plus mount options. Paths must be absolute and
// unique across the configuration.
type MountPoint struct {
	Path    string `yaml:"path" json:"path"`
	Options string `yaml:"options,omitempty" json:"options,omitempty"`
}

// Filesystem describes the content and mounting of one filesystem.
// Tmpfs/overlay carry no DeviceID; image/adopted filesystems must have one;
// swap has no MountPoint.
type Filesystem struct {
	DeviceID   string           `yaml:"deviceId,omitempty" json:"deviceId,omitempty"`
	Type       FilesystemType   `yaml:"type" json:"type"`
	MountPoint *MountPoint      `yaml:"mountPoint,omitempty" json:"mountPoint,omitempty"`
	Source     FilesystemSource `yaml:"source" json:"source"`
	// ImageFile is the COSI-relative path for Source == FilesystemSourceImage.
	ImageFile string `yaml:"imageFile,omitempty" json:"imageFile,omitempty"`
}

// ServicingState is the finite state machine of §3.6. Transitions are the
// only legal way this value may change.
type ServicingState string

const (
	ServicingStateNotProvisioned              ServicingState = "not-provisioned"
	ServicingStateCleanInstallStaged          ServicingState = "clean-install-staged"
	ServicingStateCleanInstallFinalized       ServicingState = "clean-install-finalized"
	ServicingStateProvisioned                 ServicingState = "provisioned"
	ServicingStateABUpdateStaged              ServicingState = "ab-update-staged"
	ServicingStateABUpdateFinalized           ServicingState = "ab-update-finalized"
	ServicingStateManualRollbackABStaged      ServicingState = "manual-rollback-ab-staged"
	ServicingStateManualRollbackABFinalized   ServicingState = "manual-rollback-ab-finalized"
	ServicingStateManualRollbackRunStaged     ServicingState = "manual-rollback-runtime-staged"
	ServicingStateManualRollbackRunFinalized  ServicingState = "manual-rollback-runtime-finalized"
)

// ServicingType is the flow a servicing invocation selects (§4.2.1). The
// ordering of the constants below is significant: later constants rank
// strictly stronger than earlier ones. See Rank.
type ServicingType string

const (
	ServicingTypeNoActiveServicing ServicingType = "no-active-servicing"
	ServicingTypeHotPatch          ServicingType = "hot-patch"
	ServicingTypeNormalUpdate      ServicingType = "normal-update"
	ServicingTypeUpdateAndReboot   ServicingType = "update-and-reboot"
	ServicingTypeABUpdate          ServicingType = "ab-update"
	ServicingTypeCleanInstall      ServicingType = "clean-install"
)

var servicingTypeRank = map[ServicingType]int{
	ServicingTypeNoActiveServicing: 0,
	ServicingTypeHotPatch:          1,
	ServicingTypeNormalUpdate:      2,
	ServicingTypeUpdateAndReboot:   3,
	ServicingTypeABUpdate:          4,
	ServicingTypeCleanInstall:      5,
}

// Rank returns t's strength; a higher rank wins when subsystems disagree on
// the servicing type to select.
func (t ServicingType) Rank() int {
	return servicingTypeRank[t]
}

// Strongest returns whichever of a, b ranks higher.
func Strongest(a, b ServicingType) ServicingType {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ABSide names one side of an A/B volume pair, or none when A/B is unused.
type ABSide string

const (
	ABSideA    ABSide = "volume-a"
	ABSideB    ABSide = "volume-b"
	ABSideNone ABSide = "none"
)

// Other returns the opposite side (A<->B); ABSideNone maps to itself.
func (s ABSide) Other() ABSide {
	switch s {
	case ABSideA:
		return ABSideB
	case ABSideB:
		return ABSideA
	default:
		return ABSideNone
	}
}

// ErrorPayload is the serialized form of a top-level engine error, stored
// in HostStatus.LastError for operator inspection.
type ErrorPayload struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Subsystem string    `json:"subsystem,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HostStatus is the persisted record described in §3.5.
type HostStatus struct {
	Spec             HostConfiguration `json:"spec"`
	PreviousSpec     *HostConfiguration `json:"previousSpec,omitempty"`
	ServicingState   ServicingState     `json:"servicingState"`
	LastError        *ErrorPayload      `json:"lastError,omitempty"`
	DevicePaths      map[string]string  `json:"devicePaths"`
	ActiveVolume     ABSide             `json:"activeVolume"`
	DiskUUIDs        map[string]string  `json:"diskUuids"`
	InstallIndex     int                `json:"installIndex"`
	ManagementOwned  bool               `json:"managementOwned"`
}

// NewHostStatus returns a freshly initialized, not-provisioned status.
func NewHostStatus(spec HostConfiguration) *HostStatus {
	return &HostStatus{
		Spec:           spec,
		ServicingState: ServicingStateNotProvisioned,
		DevicePaths:    make(map[string]string),
		ActiveVolume:   ABSideNone,
		DiskUUIDs:      make(map[string]string),
		InstallIndex:   -1,
	}
}
