package osutils

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/hostd/pkg/types"
)

// Sfdisk partitions disks via the sfdisk(8) script interface, fed a
// GPT layout line per partition (§4.2.3 step 5).
type Sfdisk struct{}

var _ Repartitioner = Sfdisk{}

func (Sfdisk) Partition(ctx context.Context, diskDevice string, partitions []types.Partition) error {
	script := sfdiskScript(partitions)
	_, err := runCommandStdin(ctx, script, "sfdisk", diskDevice)
	return err
}

// sfdiskScript renders an sfdisk "dump" script: one "size=N,type=T" line
// per partition, in order, with the last "grow" partition given no size
// so it consumes the remainder of the disk.
func sfdiskScript(partitions []types.Partition) string {
	var b strings.Builder
	b.WriteString("label: gpt\n")
	for _, p := range partitions {
		gptType := gptTypeGUID(p.Type)
		if p.Size.Grow {
			fmt.Fprintf(&b, "type=%s, name=%s\n", gptType, p.ID)
			continue
		}
		sizeSectors := p.Size.Bytes / 512
		fmt.Fprintf(&b, "size=%s, type=%s, name=%s\n", strconv.FormatUint(sizeSectors, 10), gptType, p.ID)
	}
	return b.String()
}

// gptTypeGUID maps a hostd partition role to the GPT partition type GUID
// conventionally used for it (discoverable partitions spec).
func gptTypeGUID(t types.PartitionType) string {
	switch t {
	case types.PartitionTypeESP:
		return "c12a7328-f81f-11d2-ba4b-00a0c93ec93b"
	case types.PartitionTypeRoot, types.PartitionTypeRootVerity:
		return "4f68bce3-e8cd-4db1-96e7-fbcaf984b709"
	case types.PartitionTypeUsr, types.PartitionTypeUsrVerity:
		return "8484680c-9521-48c6-9c11-b0720656f69e"
	case types.PartitionTypeSwap:
		return "0657fd6d-a4ab-43c4-84e5-0933c84b4f4f"
	case types.PartitionTypeXBootLDR:
		return "bc13c2ff-59e6-4262-a352-b275fd6f7172"
	default:
		return "0fc63daf-8483-4772-8e79-3d69d8477de4" // linux-generic
	}
}
