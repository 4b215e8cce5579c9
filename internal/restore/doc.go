// Package restore brings a user's settings onto a device for the first time.
//
// The flow is: pull the backup, compare it with any local snapshot, pick a
// winner by last-modified time (ties go to the backup), push the winner if it
// is local and unsynced, then record the user as active and hand the
// snapshot to the sync engine. With no backup and no local copy, defaults
// are seeded from the device locale and pushed.
//
// Running a restore twice in a row is harmless: the second run sees equal
// timestamps, adopts the backup and writes nothing remote.
package restore
