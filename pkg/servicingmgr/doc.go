// Package servicingmgr coordinates access to the servicing engine per §5:
// a unique-writer permit for servicing tasks (install/update/rollback/
// commit) and shared-reader permits for status queries, with contention
// returning a "busy" sentinel rather than queueing the caller.
package servicingmgr
