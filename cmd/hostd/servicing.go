package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cuemby/hostd/pkg/engine"
	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

func init() {
	installCmd.Flags().String("config", "", "Path to the host configuration file (required)")
	installCmd.Flags().Bool("force", false, "Bypass the clean-install safety check (§4.2.3 step 1)")
	installCmd.Flags().String("status", "", "Write the resulting host status to this file")
	installCmd.Flags().String("error", "", "Write the failure, if any, to this file")
	allowedOperationsFlags(installCmd)

	updateCmd.Flags().String("config", "", "Path to the host configuration file (required)")
	updateCmd.Flags().String("status", "", "Write the resulting host status to this file")
	updateCmd.Flags().String("error", "", "Write the failure, if any, to this file")
	allowedOperationsFlags(updateCmd)

	commitCmd.Flags().String("config", "", "Path to the host configuration file (required)")
	commitCmd.Flags().String("status", "", "Write the resulting host status to this file")
	commitCmd.Flags().String("error", "", "Write the failure, if any, to this file")
}

// installCmd implements §6's install verb: the clean-install flow of
// §4.2.3.
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Clean-install the host from a host configuration document",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		force, _ := cmd.Flags().GetBool("force")
		allowed, err := readAllowedOperations(cmd)
		if err != nil {
			return err
		}

		e, spec, store, err := openEngine(configPath)
		if err != nil {
			return err
		}
		defer store.Close()

		outcome, err := e.CleanInstall(cmd.Context(), *spec, engine.Invocation{Allowed: allowed, SafetyOverride: force})
		return printOutcome(cmd, store, outcome, err)
	},
}

// updateCmd implements §6's update verb: A/B update when the subsystems
// propose one, otherwise the runtime-update/hot-patch path it delegates
// to (§4.2.4, §4.2.5).
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the host from a host configuration document",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		allowed, err := readAllowedOperations(cmd)
		if err != nil {
			return err
		}

		e, spec, store, err := openEngine(configPath)
		if err != nil {
			return err
		}
		defer store.Close()

		outcome, err := e.ABUpdate(cmd.Context(), *spec, engine.Invocation{Allowed: allowed})
		return printOutcome(cmd, store, outcome, err)
	},
}

// commitCmd implements §6's commit verb: finalize whatever servicing
// operation is currently staged, re-reading its spec from the datastore
// rather than from a fresh --config (there is nothing new to configure,
// only a staged state to finalize).
var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Finalize the currently staged servicing operation",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		e, _, store, err := openEngine(configPath)
		if err != nil {
			return err
		}
		defer store.Close()

		hs, err := store.HostStatus()
		if err != nil {
			return &hosterrors.InternalError{Message: "reading current host status", Err: err}
		}
		inv := engine.Invocation{Allowed: subsystem.AllowedOperations{Finalize: true}}

		outcome, err := commitByState(cmd.Context(), e, hs, inv)
		return printOutcome(cmd, store, outcome, err)
	},
}

func commitByState(ctx context.Context, e *engine.Engine, hs *types.HostStatus, inv engine.Invocation) (engine.Outcome, error) {
	switch hs.ServicingState {
	case types.ServicingStateCleanInstallStaged:
		return e.CleanInstall(ctx, hs.Spec, inv)
	case types.ServicingStateABUpdateStaged:
		return e.ABUpdate(ctx, hs.Spec, inv)
	case types.ServicingStateManualRollbackABStaged:
		return e.ManualRollback(ctx, hs.Spec, engine.ManualRollbackKindAB, inv)
	case types.ServicingStateManualRollbackRunStaged:
		return e.ManualRollback(ctx, hs.Spec, engine.ManualRollbackKindRuntime, inv)
	default:
		return engine.OutcomeDone, &hosterrors.InvalidRollbackState{Reason: "nothing staged to commit in servicing state " + string(hs.ServicingState)}
	}
}
