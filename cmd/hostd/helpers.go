package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/hostd/pkg/config"
	"github.com/cuemby/hostd/pkg/datastore"
	"github.com/cuemby/hostd/pkg/hosterrors"
	"github.com/cuemby/hostd/pkg/types"
)

// loadHostConfiguration wraps config.LoadHostConfiguration with the
// "--config is required" check every verb but validate/offline-initialize
// needs before it can even look up the datastore path.
func loadHostConfiguration(path string) (*types.HostConfiguration, error) {
	if path == "" {
		return nil, &hosterrors.InvalidInput{Err: fmt.Errorf("--config is required")}
	}
	return config.LoadHostConfiguration(path)
}

// writeHostStatus reads the current host status out of store and writes
// its YAML serialization to path (§6 "Host status file").
func writeHostStatus(store *datastore.Store, path string) error {
	hs, err := store.HostStatus()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(hs)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
