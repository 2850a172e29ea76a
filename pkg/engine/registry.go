// Package engine drives a host through clean-install, A/B update, runtime
// update, and manual-rollback flows (§4.2) over the fixed ten-subsystem
// pipeline (§2, §4.4).
package engine

import (
	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/subsystems/boot"
	"github.com/cuemby/hostd/pkg/subsystems/esp"
	"github.com/cuemby/hostd/pkg/subsystems/hooks"
	"github.com/cuemby/hostd/pkg/subsystems/initrd"
	"github.com/cuemby/hostd/pkg/subsystems/management"
	"github.com/cuemby/hostd/pkg/subsystems/managementos"
	"github.com/cuemby/hostd/pkg/subsystems/network"
	"github.com/cuemby/hostd/pkg/subsystems/osconfig"
	"github.com/cuemby/hostd/pkg/subsystems/selinux"
	"github.com/cuemby/hostd/pkg/subsystems/storage"
)

// DefaultRegistry returns the ten subsystems in their fixed pipeline
// order. The order is significant: it is the order validate, prepare,
// provision, and configure iterate in for every servicing invocation.
func DefaultRegistry() []subsystem.Subsystem {
	return []subsystem.Subsystem{
		managementos.New(),
		esp.New(),
		storage.New(),
		boot.New(),
		network.New(),
		osconfig.New(),
		management.New(),
		hooks.New(),
		initrd.New(),
		selinux.New(),
	}
}
