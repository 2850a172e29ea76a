package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/hostd/pkg/datastore"
	"github.com/cuemby/hostd/pkg/engine"
	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/log"
	"github.com/cuemby/hostd/pkg/metrics"
	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

func init() {
	streamImageCmd.Flags().String("image", "", "COSI image URL to install (required)")
	streamImageCmd.Flags().String("datastore", "", "Datastore path to install against (required)")
	streamImageCmd.Flags().String("status", "", "Write the resulting host status to this file")
	streamImageCmd.Flags().String("error", "", "Write the failure, if any, to this file")
	streamImageCmd.Flags().Bool("force", false, "Bypass the clean-install safety check")
}

// streamImageCmd implements §6's dev-only stream-image verb: synthesize a
// minimal host configuration around a single COSI image URL and drive it
// through the same clean-install path as install, skipping the need to
// author a full host configuration document by hand.
var streamImageCmd = &cobra.Command{
	Use:    "stream-image",
	Short:  "Clean-install from a bare image URL (development use only)",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		image, _ := cmd.Flags().GetString("image")
		datastorePath, _ := cmd.Flags().GetString("datastore")
		force, _ := cmd.Flags().GetBool("force")
		if image == "" || datastorePath == "" {
			return &hosterrors.InvalidInput{Err: fmt.Errorf("--image and --datastore are required")}
		}

		spec := types.HostConfiguration{
			OSImage: &types.OSImageRef{URL: image},
		}
		spec.Trident.DatastorePath = datastorePath

		store, err := datastore.Open(datastorePath)
		if err != nil {
			return &hosterrors.InitializationError{Reason: "opening datastore", Err: err}
		}
		defer store.Close()

		recorder := metrics.NewRecorder(datastorePath, func(err error) {
			log.Logger.Warn().Err(err).Msg("metrics recorder error")
		})
		e := engine.New(store, engine.WithRecorder(recorder))

		inv := engine.Invocation{
			Allowed:        subsystem.AllowedOperations{Stage: true, Finalize: true},
			SafetyOverride: force,
		}
		outcome, err := e.CleanInstall(cmd.Context(), spec, inv)
		return printOutcome(cmd, store, outcome, err)
	},
}
