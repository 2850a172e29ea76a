package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/hostd/pkg/config"
	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/storagegraph"
)

// validateCmd implements §6's validate verb: static and dynamic
// validation of a host configuration file only, no datastore involved.
var validateCmd = &cobra.Command{
	Use:   "validate <config>",
	Short: "Validate a host configuration file without servicing the host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := config.LoadHostConfiguration(args[0])
		if err != nil {
			return err
		}
		if _, err := storagegraph.Build(*spec); err != nil {
			return &hosterrors.InvalidInput{Err: err}
		}
		fmt.Println("Host configuration is valid.")
		return nil
	},
}
