// Package selinux implements the subsystem that relabels the target root
// against its SELinux policy once every other subsystem has finished
// writing configuration, so freshly written files carry correct contexts.
package selinux

import (
	"context"
	"fmt"

	"github.com/cuemby/hostd/pkg/osutils"
	"github.com/cuemby/hostd/pkg/subsystem"
)

// PolicyFileParam is the internal parameter naming the SELinux policy file
// to relabel against; relabeling is skipped when unset, since not every
// deployment carries SELinux.
const PolicyFileParam = "selinux-policy-file"

type subsys struct {
	subsystem.Base
	setfiles osutils.SetfilesTool
}

// New returns the selinux subsystem.
func New() subsystem.Subsystem { return &subsys{setfiles: osutils.Setfiles{}} }

func (*subsys) Name() string { return "selinux" }

// Configure relabels the target root against its policy file, if set for
// this invocation.
func (s *subsys) Configure(ctx *subsystem.Context) error {
	policyFile := ctx.InternalParams[PolicyFileParam]
	if policyFile == "" {
		return nil
	}
	if err := s.setfiles.Relabel(context.Background(), ctx.NewRootPath, policyFile); err != nil {
		return fmt.Errorf("relabeling %s against %s: %w", ctx.NewRootPath, policyFile, err)
	}
	return nil
}
