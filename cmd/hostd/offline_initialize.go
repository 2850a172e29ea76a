package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/hostd/pkg/datastore"
	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/osutils"
	"github.com/cuemby/hostd/pkg/types"
)

func init() {
	offlineInitializeCmd.Flags().String("definitions", "", "systemd-repart definitions directory (required)")
	offlineInitializeCmd.Flags().String("disk", "", "Target disk device (required)")
	offlineInitializeCmd.Flags().Bool("lazy-partitions", false, "Dry-run the partition growth instead of applying it")
	offlineInitializeCmd.Flags().String("history-path", "", "Datastore path to seed with an initial not-provisioned status")
}

// offlineInitializeCmd implements §6's offline-initialize verb: grow the
// disk's partitions via systemd-repart ahead of the first real servicing
// run. Unlike every other verb it never reads --config for a datastore
// path — the host has no configuration yet, only a disk image.
var offlineInitializeCmd = &cobra.Command{
	Use:   "offline-initialize",
	Short: "Grow partitions on a freshly imaged disk before first servicing",
	RunE: func(cmd *cobra.Command, args []string) error {
		definitionsDir, _ := cmd.Flags().GetString("definitions")
		disk, _ := cmd.Flags().GetString("disk")
		lazy, _ := cmd.Flags().GetBool("lazy-partitions")
		historyPath, _ := cmd.Flags().GetString("history-path")

		if definitionsDir == "" || disk == "" {
			return &hosterrors.InvalidInput{Err: fmt.Errorf("--definitions and --disk are required")}
		}

		repart := osutils.SystemdRepartTool{}
		if err := repart.Apply(cmd.Context(), definitionsDir, disk, lazy); err != nil {
			return err
		}

		if historyPath != "" {
			store, err := datastore.Open(historyPath)
			if err != nil {
				return &hosterrors.InitializationError{Reason: "seeding offline-initialize history", Err: err}
			}
			defer store.Close()
			if _, err := store.WithHostStatus(types.HostConfiguration{}, func(*types.HostStatus) error { return nil }); err != nil {
				return &hosterrors.InternalError{Message: "seeding not-provisioned host status", Err: err}
			}
		}

		fmt.Println("Offline initialization complete.")
		return nil
	},
}
