// Package config loads and validates hostd's own configuration (§3.8): the
// host-configuration document's `trident` self-configuration section, and
// the process-wide settings (log level/format, metrics and gRPC bind
// addresses, state log directory) that the daemon verb reads.
//
// Both documents are decoded with gopkg.in/yaml.v3's strict-decoding mode
// (KnownFields(true)), rejecting any field the target struct doesn't
// declare, then checked field-by-field with
// github.com/go-playground/validator/v10 struct tags. A failure at either
// stage is reported as an InvalidInput.
package config
