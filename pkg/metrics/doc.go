/*
Package metrics is hostd's best-effort phase metrics collector (§5).

Servicing is predominantly single-threaded and synchronous; metrics
collection is one of the few places it intentionally is not. A Recorder
runs a sibling goroutine that observes subsystem phase durations into
Prometheus histograms and counters (scraped via Handler) and, once a
state has been opened with BeginState, mirrors the same samples to a
per-state JSONL artifact named

	trident-metrics-<state>-<YYYYMMDDTHHMMSSZ>.jsonl

under the datastore directory, matching the log package's per-state log
artifact convention. Nothing in cmd/hostd or pkg/engine calls
Recorder.BeginState, so there the samples reach only Prometheus. Every failure in this path — a full queue, a write
error — is swallowed after being reported to an optional callback; it
never fails or blocks the servicing phase being measured.

Package-level counters and histograms (ServicingOperationsTotal,
ServicingOperationDuration, SubsystemPhaseDuration, RollbacksTotal, ...)
are registered once at init. Only SubsystemPhaseDuration and
SubsystemPhaseFailuresTotal are updated, by Recorder.RecordPhase; nothing
in this module updates the others, so they stay at zero.

This package also exposes a small health-check surface (HealthHandler,
ReadyHandler, LivenessHandler) for the optional gRPC/HTTP surface to
report process health independent of any single servicing operation.
*/
package metrics
