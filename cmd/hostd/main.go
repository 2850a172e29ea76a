// Command hostd is the host-provisioning agent's CLI surface (§6): a
// small set of verbs driving the servicing engine (pkg/engine) through
// one install/update/rollback invocation and exiting, plus a long-running
// daemon mode hosting the optional Prometheus metrics and gRPC health
// surfaces.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/hostd/pkg/datastore"
	"github.com/cuemby/hostd/pkg/engine"
	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/log"
	"github.com/cuemby/hostd/pkg/metrics"
	"github.com/cuemby/hostd/pkg/osutils"
	"github.com/cuemby/hostd/pkg/subsystem"
	"github.com/cuemby/hostd/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to the process exit code of §6: 0 is
// handled by cobra's nil-error path, 2 is any logical failure, 3 is a
// failed reboot. A plain cobra usage error (bad flags, unknown verb)
// falls outside the taxonomy entirely and exits 1.
func exitCodeFor(err error) int {
	var hostErr hosterrors.HostError
	if errors.As(err, &hostErr) {
		return hostErr.Kind().ExitCode()
	}
	return 1
}

var rootCmd = &cobra.Command{
	Use:   "hostd",
	Short: "hostd - declarative host provisioning and servicing agent",
	Long: `hostd takes a host from bare metal (or a VM) through clean install,
A/B update, runtime update, and rollback against a declarative host
configuration document, driving a fixed pipeline of subsystems
(management-OS, ESP, storage, boot, network, os-config, management,
hooks, initrd, SELinux) through validate/prepare/provision/configure.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"hostd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("process-config", "", "Path to the process configuration file (defaults applied if unset)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(startNetworkCmd)
	rootCmd.AddCommand(offlineInitializeCmd)
	rootCmd.AddCommand(rebuildRaidCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(streamImageCmd)
}

func initLogging() {
	// Only the console sink is configured. No verb sets StateLogDir or
	// calls log.BeginState, so no per-state log artifact (§6 "Persisted
	// state layout") is written under the datastore directory.
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// allowedOperationsFlags registers the --stage/--finalize pair shared by
// every verb that drives a servicing invocation (§4.2.7). Both default to
// true: a bare `hostd install` both stages and finalizes in one call.
func allowedOperationsFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("stage", true, "Perform the stage phase of this invocation")
	cmd.Flags().Bool("finalize", true, "Perform the finalize phase of this invocation")
}

func readAllowedOperations(cmd *cobra.Command) (subsystem.AllowedOperations, error) {
	stage, err := cmd.Flags().GetBool("stage")
	if err != nil {
		return subsystem.AllowedOperations{}, err
	}
	finalize, err := cmd.Flags().GetBool("finalize")
	if err != nil {
		return subsystem.AllowedOperations{}, err
	}
	return subsystem.AllowedOperations{Stage: stage, Finalize: finalize}, nil
}

// openEngine loads the host configuration at configPath, opens its
// datastore, and constructs an Engine bound to it. install, update,
// commit, rollback, get and rebuild-raid find the datastore path this way.
// start-network reads the config but runs a storeless engine,
// stream-image takes the datastore path from its own flag, and validate,
// offline-initialize and daemon do not read the agent config for it.
func openEngine(configPath string) (*engine.Engine, *types.HostConfiguration, *datastore.Store, error) {
	spec, err := loadHostConfiguration(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := datastore.Open(spec.Trident.DatastorePath)
	if err != nil {
		return nil, nil, nil, &hosterrors.InitializationError{Reason: "opening datastore", Err: err}
	}

	recorder := metrics.NewRecorder(spec.Trident.DatastorePath, func(err error) {
		log.Logger.Warn().Err(err).Msg("metrics recorder error")
	})

	e := engine.New(store, engine.WithRecorder(recorder))
	return e, spec, store, nil
}

// printOutcome reports a servicing outcome the way every stage/finalize
// verb needs to: write --status/--error artifacts if requested, and
// signal NeedsReboot up to main via a distinguishable error so the
// process exits 3 instead of 2 on a failed reboot (§6).
func printOutcome(cmd *cobra.Command, store *datastore.Store, outcome engine.Outcome, opErr error) error {
	statusPath, _ := cmd.Flags().GetString("status")
	errorPath, _ := cmd.Flags().GetString("error")

	if statusPath != "" {
		if err := writeHostStatus(store, statusPath); err != nil {
			log.Logger.Warn().Err(err).Msg("failed to write --status artifact")
		}
	}
	if opErr != nil {
		if errorPath != "" {
			if err := os.WriteFile(errorPath, []byte(opErr.Error()), 0o600); err != nil {
				log.Logger.Warn().Err(err).Msg("failed to write --error artifact")
			}
		}
		return opErr
	}

	fmt.Printf("Result: %s\n", outcome)
	if outcome == engine.OutcomeNeedsReboot {
		if err := osutils.Reboot(context.Background()); err != nil {
			return &hosterrors.ServicingError{Subsystem: "reboot", Message: "reboot failed", Err: err}
		}
	}
	return nil
}
