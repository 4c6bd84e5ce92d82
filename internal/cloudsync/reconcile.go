// Package cloudsync pushes the local snapshot to a remote store and pulls
// remote snapshots back, whole-snapshot and last-write-wins.
package cloudsync

import (
	"flockcore/internal/core"
)

// Reconciler decides what the local state becomes when a remote snapshot
// arrives on a non-forced pull.
type Reconciler interface {
	Reconcile(local, remote core.Snapshot) (next core.Snapshot, adopt bool)
}

// LastWriteWins adopts the remote snapshot when the local one was never
// synced or the remote lastSyncedAt sorts after the local one. The values
// are display strings, so the comparison is lexical.
type LastWriteWins struct{}

// Reconcile implements Reconciler.
func (LastWriteWins) Reconcile(local, remote core.Snapshot) (core.Snapshot, bool) {
	if local.Household.LastSyncedAt == "" || remote.Household.LastSyncedAt > local.Household.LastSyncedAt {
		return remote, true
	}
	return local, false
}
