package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/hostd/pkg/hosterrors"
)

// getCmd implements §6's get verb group: read-only queries against the
// current host status and its rollback history.
var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Query the host's current status or rollback history",
}

var getStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current host status",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		outfile, _ := cmd.Flags().GetString("outfile")

		_, _, store, err := openEngine(configPath)
		if err != nil {
			return err
		}
		defer store.Close()

		if outfile != "" {
			return writeHostStatus(store, outfile)
		}
		hs, err := store.HostStatus()
		if err != nil {
			return &hosterrors.InternalError{Message: "reading current host status", Err: err}
		}
		data, err := yaml.Marshal(hs)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var getRollbackTargetCmd = &cobra.Command{
	Use:   "rollback-target",
	Short: "Print the host configuration a manual rollback would restore",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		e, spec, store, err := openEngine(configPath)
		if err != nil {
			return err
		}
		defer store.Close()

		target, err := e.RollbackTarget(*spec)
		if err != nil {
			return err
		}
		if target == nil {
			fmt.Println("no rollback target available")
			return nil
		}
		data, err := yaml.Marshal(target)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var getRollbackChainCmd = &cobra.Command{
	Use:   "rollback-chain",
	Short: "Print the ordered list of rollback candidates, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		e, spec, store, err := openEngine(configPath)
		if err != nil {
			return err
		}
		defer store.Close()

		chain, err := e.RollbackChain(*spec)
		if err != nil {
			return err
		}
		if len(chain) == 0 {
			fmt.Println("no rollback history available")
			return nil
		}
		data, err := yaml.Marshal(chain)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{getStatusCmd, getRollbackTargetCmd, getRollbackChainCmd} {
		c.Flags().String("config", "", "Path to the host configuration file (required)")
	}
	getStatusCmd.Flags().String("outfile", "", "Write the status to this file instead of stdout")

	getCmd.AddCommand(getStatusCmd)
	getCmd.AddCommand(getRollbackTargetCmd)
	getCmd.AddCommand(getRollbackChainCmd)
}
