/*
Package log provides hostd's structured logging, built on zerolog.

A single global Logger is configured once via Init and used everywhere
through the package-level helpers (Info, Debug, Warn, Error, Fatal) or a
scoped child logger (WithComponent, WithState, WithOperationID). Output can
be JSON (for collection by an external aggregator) or a human-readable
console format; both carry a timestamp.

# Background drain

Per §5, the core is single-threaded and synchronous except for three
intentional exceptions, one of which is logging. Init starts one worker
goroutine that drains a bounded, single-producer channel; callers never
block on I/O to write a record, only on the channel when it's full. Call
Shutdown before exit — it closes the channel and waits for the worker to
finish, so no record enqueued before shutdown is dropped.

# Per-state artifacts

Servicing operations pass through a sequence of named states (validating,
provisioning, configuring, finalizing, ...). Calling BeginState(state, now)
opens a new file under the configured StateLogDir named

	trident-<state>-<YYYYMMDDTHHMMSSZ>.log

closing whichever artifact was open before it, so each state's log is a
self-contained file an operator can attach to a support bundle without
grepping a single run-long log for state boundaries. Console output keeps
receiving every record regardless of whether a state artifact is open.
*/
package log
