package engine

import (
	"context"
	"fmt"

	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/storagegraph"
	"github.com/cuemby/hostd/pkg/types"
)

// RebuildRaid re-assembles every RAID array named in spec's storage graph
// against its configured members (§6 rebuild-raid), without touching
// filesystems or mount state. It is used to recover an array's metadata
// after a member disk was replaced out from under a provisioned host.
func (e *Engine) RebuildRaid(ctx context.Context, spec types.HostConfiguration) error {
	graph, err := storagegraph.Build(spec)
	if err != nil {
		return &hosterrors.InvalidInput{Err: err}
	}

	resolved := make(map[string]string)
	for _, disk := range graph.NodesOfKind(storagegraph.NodeKindDisk) {
		resolved[disk.ID] = disk.Disk.Device
	}
	for _, p := range graph.NodesOfKind(storagegraph.NodeKindPartition) {
		path, err := graph.BlockDevicePath(p.ID, resolved)
		if err != nil {
			return &hosterrors.InvalidInput{Err: fmt.Errorf("resolving partition %s: %w", p.ID, err)}
		}
		resolved[p.ID] = path
	}

	for _, raid := range graph.NodesOfKind(storagegraph.NodeKindRaidArray) {
		members := make([]string, 0, len(raid.Raid.Members))
		for _, m := range raid.Raid.Members {
			path, err := graph.BlockDevicePath(m, resolved)
			if err != nil {
				return &hosterrors.InvalidInput{Err: fmt.Errorf("resolving raid member %s of %s: %w", m, raid.ID, err)}
			}
			members = append(members, path)
		}
		if err := e.raid.Assemble(ctx, raid.Raid.Name, raid.Raid.Level, members); err != nil {
			return &hosterrors.ServicingError{Subsystem: "storage", Message: fmt.Sprintf("rebuilding raid array %s", raid.Raid.Name), Err: err}
		}
	}
	return nil
}
