// Package hosterrors defines the top-level error taxonomy of §7: a closed
// set of kinds every operation surfaces through, each implementing error
// plus a Kind() accessor so callers (the CLI exit-code mapper, host status
// writers) can switch on the failure class without string matching.
package hosterrors
