// Package runs records run state on behalf of the engine.
//
// The Manager serializes every write for a given run ID so that step snapshots
// and the final record are persisted in order, even when several replicas share
// one store (via ports.DistributedLocker).
package runs
