// Package datastore persists the host-status record (§3.5) in a bbolt
// database keyed by install-index, alongside an append-only history used
// to compute the rollback chain. It is the one place servicing state is
// durably written; pkg/engine mutates it exclusively through
// WithHostStatus.
package datastore
