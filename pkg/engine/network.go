package engine

import (
	"context"

	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/osutils"
	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/subsystems/network"
	"github.com/cuemby/hostd/pkg/types"
)

// StartNetwork renders spec's netplan section directly onto the live
// root and applies it (§6 start-network). It runs before any datastore
// exists — typically to bring up connectivity an image fetch needs
// during a subsequent install — so it never touches host status.
func (e *Engine) StartNetwork(ctx context.Context, spec types.HostConfiguration) error {
	sctx := &subsystem.Context{Spec: spec, NewRootPath: "/"}
	if err := network.New().Configure(sctx); err != nil {
		return &hosterrors.ServicingError{Subsystem: "network", Message: "rendering netplan config", Err: err}
	}
	if err := osutils.NetplanApply(ctx); err != nil {
		return &hosterrors.ServicingError{Subsystem: "network", Message: "applying netplan config", Err: err}
	}
	return nil
}
