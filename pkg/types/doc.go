/*
Package types defines the core data structures shared across hostd.

This package contains the declarative host-configuration document shape (the
input the agent is handed), the storage and filesystem entities that make up
its `storage` section, the persisted host-status record, and the finite
servicing-state and servicing-type enumerations that drive the engine.

# Architecture

types is the foundation every other hostd package builds on:

  - pkg/storagegraph consumes the storage section to build and validate a
    dependency graph over the entities defined here.
  - pkg/engine consumes the whole HostConfiguration plus the persisted
    HostStatus to select a servicing flow and drive it to completion.
  - pkg/datastore persists HostStatus records keyed by InstallIndex.

All types are designed to round-trip through YAML (the on-disk host
configuration and host-status formats) and JSON (the datastore's storage
format), and are deliberately plain data: beyond a few `validate` struct
tags, checked by pkg/config's validator when a document is loaded,
validation lives in pkg/storagegraph and pkg/engine.

# Core Types

Host Configuration:
  - HostConfiguration: the full declarative document (trident, storage, os,
    scripts, management-os, internal-params, os-image)
  - StorageConfig: disks, partitions, RAID arrays, A/B pairs, encrypted and
    verity devices, filesystems and mount points

Servicing:
  - HostStatus: the persisted record (§3.5): current/previous spec,
    servicing state, device-path map, active A/B side, install index
  - ServicingState: the finite state machine of §3.6
  - ServicingType: the flow a servicing invocation selects (§4.2.1)
*/
package types
