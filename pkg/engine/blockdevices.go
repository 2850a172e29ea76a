package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/hostd/pkg/storagegraph"
	"github.com/cuemby/hostd/pkg/types"
)

// createBlockDevices materializes every block device named in graph:
// partitions disks, assembles RAID arrays, formats and opens encrypted
// volumes, opens verity devices, and formats new filesystems (§4.2.3 step
// 5). It does not check whether a device already exists: every disk with
// partitions is repartitioned and every encrypted volume reformatted.
// It returns the resolved id -> /dev path map later phases and
// mountFilesystems consume.
func (e *Engine) createBlockDevices(ctx context.Context, graph *storagegraph.Graph, spec types.HostConfiguration) (map[string]string, error) {
	resolved := make(map[string]string)

	for _, disk := range graph.NodesOfKind(storagegraph.NodeKindDisk) {
		if len(disk.Disk.Partitions) > 0 {
			if err := e.repart.Partition(ctx, disk.Disk.Device, disk.Disk.Partitions); err != nil {
				return nil, fmt.Errorf("partitioning disk %s: %w", disk.Disk.Device, err)
			}
		}
		resolved[disk.ID] = disk.Disk.Device
	}
	for _, p := range graph.NodesOfKind(storagegraph.NodeKindPartition) {
		path, err := graph.BlockDevicePath(p.ID, resolved)
		if err != nil {
			return nil, fmt.Errorf("resolving partition %s: %w", p.ID, err)
		}
		resolved[p.ID] = path
	}

	for _, raid := range graph.NodesOfKind(storagegraph.NodeKindRaidArray) {
		members := make([]string, 0, len(raid.Raid.Members))
		for _, m := range raid.Raid.Members {
			path, err := graph.BlockDevicePath(m, resolved)
			if err != nil {
				return nil, fmt.Errorf("resolving raid member %s of %s: %w", m, raid.ID, err)
			}
			members = append(members, path)
		}
		if err := e.raid.Assemble(ctx, raid.Raid.Name, raid.Raid.Level, members); err != nil {
			return nil, fmt.Errorf("assembling raid array %s: %w", raid.Raid.Name, err)
		}
		resolved[raid.ID] = "/dev/" + raid.Raid.Name
	}

	for _, enc := range graph.NodesOfKind(storagegraph.NodeKindEncryptedVolume) {
		underlying, err := graph.BlockDevicePath(enc.Encrypted.DeviceID, resolved)
		if err != nil {
			return nil, fmt.Errorf("resolving encrypted volume %s target: %w", enc.ID, err)
		}
		pcrs := encryptionPCRs(spec)
		if err := e.crypt.Format(ctx, underlying, pcrs); err != nil {
			return nil, fmt.Errorf("formatting encrypted volume %s: %w", enc.ID, err)
		}
		if err := e.crypt.Open(ctx, enc.Encrypted.DeviceMapperName, underlying); err != nil {
			return nil, fmt.Errorf("opening encrypted volume %s: %w", enc.ID, err)
		}
		resolved[enc.ID] = "/dev/mapper/" + enc.Encrypted.DeviceMapperName
	}

	for _, ver := range graph.NodesOfKind(storagegraph.NodeKindVerityDevice) {
		if backsImageFilesystem(graph, ver.ID) {
			// The data and hash images ship with a pre-built hash tree and
			// their own root hash; the storage subsystem computes no hash
			// tree on-host and opens the device itself once the image
			// bytes have landed on both partitions (§4.3).
			continue
		}
		dataDev, err := graph.BlockDevicePath(ver.Verity.DataDeviceID, resolved)
		if err != nil {
			return nil, fmt.Errorf("resolving verity data device for %s: %w", ver.ID, err)
		}
		hashDev, err := graph.BlockDevicePath(ver.Verity.HashDeviceID, resolved)
		if err != nil {
			return nil, fmt.Errorf("resolving verity hash device for %s: %w", ver.ID, err)
		}
		rootHash, err := e.verity.Format(ctx, dataDev, hashDev)
		if err != nil {
			return nil, fmt.Errorf("formatting verity device %s: %w", ver.ID, err)
		}
		if err := e.verity.Open(ctx, ver.Verity.DeviceMapperName, dataDev, hashDev, rootHash); err != nil {
			return nil, fmt.Errorf("opening verity device %s: %w", ver.ID, err)
		}
		resolved[ver.ID] = "/dev/mapper/" + ver.Verity.DeviceMapperName
	}

	for _, fs := range graph.NodesOfKind(storagegraph.NodeKindFilesystem) {
		if fs.Filesystem.Source != "new" || fs.Filesystem.DeviceID == "" {
			continue
		}
		dev, err := graph.BlockDevicePath(fs.Filesystem.DeviceID, resolved)
		if err != nil {
			return nil, fmt.Errorf("resolving filesystem %s device: %w", fs.ID, err)
		}
		if err := e.mkfs.Format(ctx, dev, fs.Filesystem.Type, fs.ID); err != nil {
			return nil, fmt.Errorf("formatting filesystem %s: %w", fs.ID, err)
		}
	}

	return resolved, nil
}

// backsImageFilesystem reports whether any image-sourced filesystem in
// graph targets verityDeviceID directly: such a device is opened by the
// storage subsystem after it deploys the image, not here.
func backsImageFilesystem(graph *storagegraph.Graph, verityDeviceID string) bool {
	for _, fs := range graph.NodesOfKind(storagegraph.NodeKindFilesystem) {
		if fs.Filesystem.DeviceID == verityDeviceID && fs.Filesystem.Source == types.FilesystemSourceImage {
			return true
		}
	}
	return false
}

// encryptionPCRs extracts the configured TPM PCR policy for encrypted
// volumes from the active encryption block, if any.
func encryptionPCRs(spec types.HostConfiguration) []int {
	if spec.Storage.Encryption == nil {
		return nil
	}
	return spec.Storage.Encryption.PCRs
}

// mountFilesystems mounts every non-tmpfs, non-overlay, non-swap
// filesystem at root+mountPath, parents before children (§4.2.3 step 6).
func (e *Engine) mountFilesystems(ctx context.Context, graph *storagegraph.Graph, resolved map[string]string, root string) error {
	type mountJob struct {
		device  string
		target  string
		fsType  string
		options []string
	}

	var jobs []mountJob
	for _, fs := range graph.NodesOfKind(storagegraph.NodeKindFilesystem) {
		if fs.Filesystem.MountPoint == nil {
			continue
		}
		switch fs.Filesystem.Type {
		case "tmpfs", "overlay", "swap":
			continue
		}
		if fs.Filesystem.Source == types.FilesystemSourceImage {
			// Image-sourced filesystems are deployed (and mounted) by the
			// storage subsystem during provision, since the raw partition
			// has no filesystem on it until the image bytes land (§4.3).
			continue
		}
		target := joinRoot(root, fs.Filesystem.MountPoint.Path)
		device := ""
		if fs.Filesystem.DeviceID != "" {
			dev, err := graph.BlockDevicePath(fs.Filesystem.DeviceID, resolved)
			if err != nil {
				return fmt.Errorf("resolving mount device for %s: %w", fs.ID, err)
			}
			device = dev
		}
		var options []string
		if fs.Filesystem.MountPoint.Options != "" {
			options = strings.Split(fs.Filesystem.MountPoint.Options, ",")
		}
		jobs = append(jobs, mountJob{device: device, target: target, fsType: string(fs.Filesystem.Type), options: options})
	}

	sort.Slice(jobs, func(i, j int) bool {
		return strings.Count(jobs[i].target, "/") < strings.Count(jobs[j].target, "/")
	})

	for _, j := range jobs {
		if err := e.mounter.Mount(ctx, j.device, j.target, j.fsType, j.options); err != nil {
			return fmt.Errorf("mounting %s at %s: %w", j.device, j.target, err)
		}
	}
	return nil
}

// unmountAll unwinds every mount under root in reverse (children before
// parents), best-effort: it keeps going past individual failures so a
// teardown after a mid-phase error doesn't itself get stuck (§4.2.2 "on
// any subsystem failure the engine unwinds").
func (e *Engine) unmountAll(ctx context.Context, graph *storagegraph.Graph, root string) {
	var targets []string
	for _, fs := range graph.NodesOfKind(storagegraph.NodeKindFilesystem) {
		if fs.Filesystem.MountPoint == nil {
			continue
		}
		targets = append(targets, joinRoot(root, fs.Filesystem.MountPoint.Path))
	}
	sort.Slice(targets, func(i, j int) bool {
		return strings.Count(targets[i], "/") > strings.Count(targets[j], "/")
	})
	for _, t := range targets {
		if err := e.mounter.Unmount(ctx, t, true); err != nil {
			e.logger.Warn().Err(err).Str("target", t).Msg("failed to unmount during teardown")
		}
	}
}

func joinRoot(root, path string) string {
	if root == "" || root == "/" {
		return path
	}
	return strings.TrimSuffix(root, "/") + path
}
