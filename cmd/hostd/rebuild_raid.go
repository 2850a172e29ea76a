package main

import (
	"github.com/spf13/cobra"

	"github.com/cuemby/hostd/pkg/engine"
)

func init() {
	rebuildRaidCmd.Flags().String("config", "", "Path to the host configuration file (required)")
	rebuildRaidCmd.Flags().String("status", "", "Write the resulting host status to this file")
	rebuildRaidCmd.Flags().String("error", "", "Write the failure, if any, to this file")
}

// rebuildRaidCmd implements §6's rebuild-raid verb: re-assemble every RAID
// array named in the host configuration's storage graph against its
// configured members, without touching filesystems or mount state. Reads
// the agent config for the datastore path like install/update/commit.
var rebuildRaidCmd = &cobra.Command{
	Use:   "rebuild-raid",
	Short: "Re-assemble the host's RAID arrays against their configured members",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		e, spec, store, err := openEngine(configPath)
		if err != nil {
			return err
		}
		defer store.Close()

		err = e.RebuildRaid(cmd.Context(), *spec)
		return printOutcome(cmd, store, engine.OutcomeDone, err)
	},
}
