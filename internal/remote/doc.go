// Package remote defines the backup document store that settings snapshots
// are pushed to and pulled from.
//
// Each user's snapshot lives at collection "users/{userId}/settings" with
// document ID "preferences". The payload is a google.protobuf.Struct so any
// document database speaking JSON-like documents can back it.
//
// MemoryStore is a test double with scripted failures, latency and a write
// gate. SQLiteDocumentStore is a local emulator for offline CLI use.
package remote
