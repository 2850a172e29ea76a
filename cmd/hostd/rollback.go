package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/hostd/pkg/engine"
	"github.com/cuemby/hostd/pkg/hosterrors"
)

func init() {
	rollbackCmd.Flags().String("config", "", "Path to the host configuration file (required)")
	rollbackCmd.Flags().String("kind", "ab", "Rollback kind: ab or runtime")
	rollbackCmd.Flags().String("status", "", "Write the resulting host status to this file")
	rollbackCmd.Flags().String("error", "", "Write the failure, if any, to this file")
	allowedOperationsFlags(rollbackCmd)
}

// rollbackCmd implements §6's rollback verb: manual rollback to the prior
// install (kind=ab) or prior runtime update (kind=runtime), per §4.2.6.
var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Manually roll back to a prior install or runtime update",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		kindFlag, _ := cmd.Flags().GetString("kind")
		allowed, err := readAllowedOperations(cmd)
		if err != nil {
			return err
		}

		var kind engine.ManualRollbackKind
		switch kindFlag {
		case "ab":
			kind = engine.ManualRollbackKindAB
		case "runtime":
			kind = engine.ManualRollbackKindRuntime
		default:
			return &hosterrors.InvalidInput{Err: fmt.Errorf("unknown rollback kind %q, expected ab or runtime", kindFlag)}
		}

		e, spec, store, err := openEngine(configPath)
		if err != nil {
			return err
		}
		defer store.Close()

		outcome, err := e.ManualRollback(cmd.Context(), *spec, kind, engine.Invocation{Allowed: allowed})
		return printOutcome(cmd, store, outcome, err)
	},
}
