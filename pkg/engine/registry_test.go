package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRegistry_FixedTenSubsystemOrder(t *testing.T) {
	names := make([]string, 0, 10)
	for _, s := range DefaultRegistry() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{
		"managementos", "esp", "storage", "boot", "network",
		"osconfig", "management", "hooks", "initrd", "selinux",
	}, names)
}
