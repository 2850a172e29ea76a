// Package storage implements the subsystem that streams OS images onto
// block devices during provision and mounts the deployed filesystems for
// the configure phase to chroot into (§4.3).
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/hostd/pkg/image"
	"github.com/cuemby/hostd/pkg/osutils"
	"github.com/cuemby/hostd/pkg/storagegraph"
	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

type subsys struct {
	subsystem.Base
	deployer *image.Deployer
	mounter  osutils.Mounter
	verity   osutils.VerityManager
}

// New returns the storage subsystem with its default image deployer and
// mount-tool implementations.
func New() subsystem.Subsystem {
	return &subsys{
		deployer: image.NewDeployer(),
		mounter:  osutils.Mount{},
		verity:   osutils.Veritysetup{},
	}
}

func (*subsys) Name() string { return "storage" }

// WritableEtcOverlay is false: storage never touches /etc, only block
// devices and their own mount points.
func (*subsys) WritableEtcOverlay() bool { return false }

// ValidateHostConfig rejects a change in the number of disks outside a
// clean install or A/B update: runtime update/hot-patch can't repartition
// or reformat the live root. Other storage changes are not compared.
func (*subsys) ValidateHostConfig(ctx *subsystem.Context) error {
	if ctx.PreviousSpec == nil {
		return nil
	}
	if ctx.ServicingType == types.ServicingTypeCleanInstall || ctx.ServicingType == types.ServicingTypeABUpdate {
		return nil
	}
	if len(ctx.Spec.Storage.Disks) != len(ctx.PreviousSpec.Storage.Disks) {
		return fmt.Errorf("disk layout change requires a clean install or an A/B update")
	}
	return nil
}

// Provision deploys every image-sourced filesystem's bytes onto its
// resolved block device, then mounts it at its target path so configure
// can chroot into it (§4.3's deployment algorithm).
func (s *subsys) Provision(ctx *subsystem.Context, mountPath string) error {
	if ctx.StorageGraph == nil {
		return nil
	}

	imageFilesystems := filesystemsSourcedFromImage(ctx.StorageGraph)
	if len(imageFilesystems) == 0 {
		return nil
	}
	if ctx.Spec.OSImage == nil {
		return fmt.Errorf("host configuration declares image-sourced filesystems but no os-image is set")
	}

	reader, err := image.OpenFileReader(context.Background(), ctx.Spec.OSImage.URL)
	if err != nil {
		return fmt.Errorf("opening os image %s: %w", ctx.Spec.OSImage.URL, err)
	}

	entries, err := image.ParseCosiIndex(context.Background(), reader)
	if err != nil {
		return fmt.Errorf("parsing os image index: %w", err)
	}
	manifest, err := image.LoadManifest(context.Background(), reader, entries)
	if err != nil {
		return err
	}
	cosiReader := &image.CosiReader{FileReader: reader, Entries: entries}

	for _, fs := range imageFilesystems {
		if err := s.deployFilesystem(ctx, cosiReader, manifest, fs, mountPath); err != nil {
			return err
		}
	}
	return nil
}

func (s *subsys) deployFilesystem(ctx *subsystem.Context, reader image.FileReader, manifest *image.CosiManifest, fs *storagegraph.Node, mountPath string) error {
	manifestEntry, ok := manifest.ForMountPoint(fs.Filesystem.MountPoint.Path)
	if !ok {
		return fmt.Errorf("os image manifest has no entry for mount point %s", fs.Filesystem.MountPoint.Path)
	}

	deviceNode := ctx.StorageGraph.Node(fs.Filesystem.DeviceID)
	if deviceNode == nil {
		return fmt.Errorf("filesystem %s references unknown device %s", fs.ID, fs.Filesystem.DeviceID)
	}

	mountDevicePath, err := ctx.StorageGraph.BlockDevicePath(fs.Filesystem.DeviceID, ctx.ResolvedDevices)
	if err != nil {
		return fmt.Errorf("resolving image filesystem %s device: %w", fs.ID, err)
	}

	if manifestEntry.Verity {
		if deviceNode.Kind != storagegraph.NodeKindVerityDevice {
			return fmt.Errorf("filesystem %s manifest entry is verity but its device %s is not a verity device", fs.ID, fs.Filesystem.DeviceID)
		}
		// The data and hash images are written directly onto the raw
		// partitions, not the activated dm-verity mapper device: both
		// ship pre-built in the image with their own digests, so no
		// on-host hash-tree computation is required.
		dataDevicePath, err := ctx.StorageGraph.BlockDevicePath(deviceNode.Verity.DataDeviceID, ctx.ResolvedDevices)
		if err != nil {
			return fmt.Errorf("resolving verity data device for %s: %w", fs.ID, err)
		}
		hashDevicePath, err := ctx.StorageGraph.BlockDevicePath(deviceNode.Verity.HashDeviceID, ctx.ResolvedDevices)
		if err != nil {
			return fmt.Errorf("resolving verity hash device for %s: %w", fs.ID, err)
		}
		if manifestEntry.VerityRootHash == "" {
			return fmt.Errorf("os image manifest entry for %s is verity but carries no root hash", fs.Filesystem.MountPoint.Path)
		}
		if err := s.deployer.DeployVerityPair(context.Background(), reader, *manifestEntry, dataDevicePath, hashDevicePath); err != nil {
			return fmt.Errorf("deploying verity filesystem %s: %w", fs.ID, err)
		}
		if err := s.verity.Open(context.Background(), deviceNode.Verity.DeviceMapperName, dataDevicePath, hashDevicePath, manifestEntry.VerityRootHash); err != nil {
			return fmt.Errorf("opening verity device %s: %w", deviceNode.ID, err)
		}
		ctx.ResolvedDevices[deviceNode.ID] = mountDevicePath
	} else {
		readOnly := isReadOnlyMount(fs.Filesystem.MountPoint.Options)
		if err := s.deployer.DeployFilesystem(context.Background(), reader, *manifestEntry, mountDevicePath, fs.Filesystem.Type, readOnly); err != nil {
			return fmt.Errorf("deploying filesystem %s: %w", fs.ID, err)
		}
	}

	target := joinMountPath(mountPath, fs.Filesystem.MountPoint.Path)
	if err := s.mounter.Mount(context.Background(), mountDevicePath, target, string(fs.Filesystem.Type), optionsOf(fs.Filesystem.MountPoint.Options)); err != nil {
		return fmt.Errorf("mounting deployed filesystem %s at %s: %w", fs.ID, target, err)
	}
	return nil
}

func filesystemsSourcedFromImage(graph *storagegraph.Graph) []*storagegraph.Node {
	var out []*storagegraph.Node
	for _, n := range graph.NodesOfKind(storagegraph.NodeKindFilesystem) {
		if n.Filesystem.Source == types.FilesystemSourceImage && n.Filesystem.MountPoint != nil {
			out = append(out, n)
		}
	}
	return out
}

func isReadOnlyMount(options string) bool {
	for _, opt := range optionsOf(options) {
		if opt == "ro" {
			return true
		}
	}
	return false
}

func optionsOf(options string) []string {
	if options == "" {
		return nil
	}
	return strings.Split(options, ",")
}

func joinMountPath(root, path string) string {
	if root == "" || root == "/" {
		return path
	}
	return strings.TrimSuffix(root, "/") + path
}
