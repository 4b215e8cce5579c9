// Package settings defines the per-user settings aggregate.
//
// # Aggregate
//
// An Aggregate holds the fixed preference sections (units, notifications,
// cycle, privacy, display, sync) plus metadata:
//
//   - UserID: opaque, non-blank, never changes
//   - LastModified: bumped by every edit, never decreases
//   - SyncStatus: pending, synced or failed
//   - Version: schema version, moved only by Migrate
//
// # State Machine
//
//	Pending --push ok--> Synced --edit--> Pending
//	Pending --push failed--> Failed --edit or MarkAsPending--> Pending
//
// No state is terminal. Failed never returns to Pending on its own.
//
// # Validation
//
// Construction never fails. IsValid and ValidationErrors report problems and
// callers must check them before persisting or pushing a snapshot.
//
// # Documents
//
// ToDocument and FromDocument convert to the protobuf Struct payload stored
// under DocumentRef(userID) in the remote document store.
package settings
