package osutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/hostd/pkg/types"
)

func TestSfdiskScript_FixedSizeAndGrowPartitions(t *testing.T) {
	partitions := []types.Partition{
		{ID: "esp", Type: types.PartitionTypeESP, Size: types.PartitionSize{Bytes: 512 * 1024 * 1024}},
		{ID: "root", Type: types.PartitionTypeRoot, Size: types.PartitionSize{Grow: true}},
	}

	script := sfdiskScript(partitions)

	assert.True(t, strings.HasPrefix(script, "label: gpt\n"))
	assert.Contains(t, script, "size=1048576, type=c12a7328-f81f-11d2-ba4b-00a0c93ec93b, name=esp")
	assert.Contains(t, script, "type=4f68bce3-e8cd-4db1-96e7-fbcaf984b709, name=root")

	lines := strings.Split(strings.TrimSpace(script), "\n")
	rootLine := lines[len(lines)-1]
	assert.NotContains(t, rootLine, "size=")
}

func TestGptTypeGUID_UnknownRoleFallsBackToLinuxGeneric(t *testing.T) {
	assert.Equal(t, "0fc63daf-8483-4772-8e79-3d69d8477de4", gptTypeGUID(types.PartitionTypeSrv))
}
