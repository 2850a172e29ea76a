package image

import (
	"strconv"
	"strings"
	"testing"
)

func itoa(n int) string { return strconv.Itoa(n) }

// parseTestRange parses a "bytes=start-end" Range header for the test
// server; end is clamped to dataLen-1 and an open end ("bytes=start-")
// extends to the last byte.
func parseTestRange(t *testing.T, header string, dataLen int) (start, end int) {
	t.Helper()
	spec := strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(spec, "-", 2)
	start, _ = strconv.Atoi(parts[0])
	if len(parts) < 2 || parts[1] == "" {
		end = dataLen - 1
	} else {
		end, _ = strconv.Atoi(parts[1])
		if end >= dataLen {
			end = dataLen - 1
		}
	}
	return start, end
}
