// Package syncengine keeps each user's settings snapshot in step with the
// remote backup.
//
// # Write path
//
// Edits are committed to the local store first and marked Pending. The
// engine then pushes the snapshot under a retry.Policy; transient network
// errors are retried with capped exponential backoff, everything else fails
// fast. The outcome is recorded locally as Synced or Failed. A remote
// failure never rolls back the local edit.
//
// # Ordering
//
// Pushes for one user are serialized. Each Push bumps a per-user generation;
// when a push completes, callers still waiting with an older generation get
// that push's result instead of writing a stale snapshot.
//
// # Status
//
// Subscribe returns a channel of StatusEvents for the presentation layer.
// Publishing never blocks; slow subscribers miss events.
//
// # Reconciliation
//
// Run re-pushes Pending snapshots of activated users on an interval. Failed
// snapshots wait for an explicit Retry unless WithAutoRetryFailed is set.
package syncengine
