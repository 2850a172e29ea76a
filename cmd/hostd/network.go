package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/hostd/pkg/engine"
)

func init() {
	startNetworkCmd.Flags().String("config", "", "Path to the host configuration file (required)")
}

// startNetworkCmd implements §6's start-network verb: render and apply
// the host's netplan configuration directly against the live root, ahead
// of any datastore existing. Used to bring up connectivity an install's
// image fetch needs.
var startNetworkCmd = &cobra.Command{
	Use:   "start-network",
	Short: "Render and apply the host configuration's network settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		spec, err := loadHostConfiguration(configPath)
		if err != nil {
			return err
		}

		e := engine.New(nil)
		if err := e.StartNetwork(cmd.Context(), *spec); err != nil {
			return err
		}
		fmt.Println("Network configuration applied.")
		return nil
	},
}
