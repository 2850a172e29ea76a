// Package hooks implements the subsystem that runs user-supplied scripts
// chrooted into the newroot at well-known pipeline points, per the host
// configuration's opaque `scripts` section.
package hooks

import (
	"context"
	"fmt"

	"github.com/cuemby/hostd/pkg/osutils"
	"github.com/cuemby/hostd/pkg/subsystem"
)

// Hook names matching the `scripts` section's top-level keys, each holding
// a list of {path, args} entries run in order.
const (
	HookProvision = "provision"
	HookConfigure = "configure"
)

type hookSpec struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args,omitempty"`
}

type subsys struct {
	subsystem.Base
	runner osutils.ScriptRunnerTool
}

// New returns the hooks subsystem.
func New() subsystem.Subsystem { return &subsys{runner: osutils.ScriptRunner{}} }

func (*subsys) Name() string { return "hooks" }

func (s *subsys) Provision(ctx *subsystem.Context, mountPath string) error {
	return s.runHooks(ctx, mountPath, HookProvision)
}

func (s *subsys) Configure(ctx *subsystem.Context) error {
	return s.runHooks(ctx, ctx.NewRootPath, HookConfigure)
}

func (s *subsys) runHooks(ctx *subsystem.Context, root, hook string) error {
	specs, err := hooksFor(ctx.Spec.Scripts, hook)
	if err != nil {
		return fmt.Errorf("reading %s hooks: %w", hook, err)
	}
	for _, h := range specs {
		if err := s.runner.Run(context.Background(), root, h.Path, h.Args); err != nil {
			return fmt.Errorf("running %s hook %s: %w", hook, h.Path, err)
		}
	}
	return nil
}

func hooksFor(scripts map[string]interface{}, hook string) ([]hookSpec, error) {
	raw, ok := scripts[hook]
	if !ok {
		return nil, nil
	}
	entries, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("scripts.%s must be a list", hook)
	}

	out := make([]hookSpec, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("scripts.%s entries must be objects", hook)
		}
		path, _ := m["path"].(string)
		if path == "" {
			return nil, fmt.Errorf("scripts.%s entry missing path", hook)
		}
		var args []string
		if rawArgs, ok := m["args"].([]interface{}); ok {
			for _, a := range rawArgs {
				if s, ok := a.(string); ok {
					args = append(args, s)
				}
			}
		}
		out = append(out, hookSpec{Path: path, Args: args})
	}
	return out, nil
}
