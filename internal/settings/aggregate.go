// ABOUTME: Versioned per-user settings aggregate and its pure transition functions
// ABOUTME: Every transition returns a new snapshot; nothing is mutated in place

package settings

import (
	"strings"
	"time"
)

// SyncStatus is the aggregate's state relative to the remote store.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
	StatusFailed  SyncStatus = "failed"
)

// SchemaVersion is the version new aggregates are created with and the
// version Migrate upgrades older snapshots to.
const SchemaVersion = 2

// Aggregate is one user's complete settings plus sync metadata.
//
// Aggregate is a value type: copy it freely. The transition methods return
// new values so a holder of a snapshot never observes a partial update.
type Aggregate struct {
	UserID       string      `json:"userId"`
	Preferences  Preferences `json:"preferences"`
	LastModified time.Time   `json:"lastModified"`
	SyncStatus   SyncStatus  `json:"syncStatus"`
	Version      int         `json:"version"`
}

// CreateDefault builds an aggregate with every section at its default. When
// locale is non-empty the unit preferences follow the locale's region.
// It never fails; a blank userID yields an aggregate whose IsValid is false.
func CreateDefault(userID, locale string, now time.Time) Aggregate {
	return Aggregate{
		UserID:       userID,
		Preferences:  DefaultPreferences(UnitSystemForLocale(locale)),
		LastModified: normalizeTime(now),
		SyncStatus:   StatusPending,
		Version:      SchemaVersion,
	}
}

// WithUpdate stamps the aggregate as locally modified at now and marks it
// pending. LastModified never moves backwards, even if the clock does.
func (a Aggregate) WithUpdate(now time.Time) Aggregate {
	ts := normalizeTime(now)
	if ts.Before(a.LastModified) {
		ts = a.LastModified
	}
	a.LastModified = ts
	a.SyncStatus = StatusPending
	return a
}

// WithPreferences replaces the preferences and applies WithUpdate.
func (a Aggregate) WithPreferences(p Preferences, now time.Time) Aggregate {
	a.Preferences = p
	return a.WithUpdate(now)
}

// MarkAsSynced changes only the sync status.
func (a Aggregate) MarkAsSynced() Aggregate {
	a.SyncStatus = StatusSynced
	return a
}

// MarkAsSyncError changes only the sync status.
func (a Aggregate) MarkAsSyncError() Aggregate {
	a.SyncStatus = StatusFailed
	return a
}

// MarkAsPending is the explicit retry trigger: Failed -> Pending without
// touching LastModified.
func (a Aggregate) MarkAsPending() Aggregate {
	a.SyncStatus = StatusPending
	return a
}

// NeedsSync reports whether the aggregate has local changes not yet pushed.
func (a Aggregate) NeedsSync() bool {
	return a.SyncStatus == StatusPending
}

// IsValid holds iff the user ID is non-blank and every section is valid.
func (a Aggregate) IsValid() bool {
	return len(a.ValidationErrors()) == 0
}

// ValidationErrors lists every broken invariant, not just the first.
func (a Aggregate) ValidationErrors() []string {
	var errs []string
	if strings.TrimSpace(a.UserID) == "" {
		errs = append(errs, "userId: must not be blank")
	}
	errs = append(errs, a.Preferences.Validate()...)
	return errs
}

// Migrate upgrades an older snapshot to SchemaVersion. It is the only
// transition that changes Version.
func (a Aggregate) Migrate() Aggregate {
	if a.Version >= SchemaVersion {
		return a
	}
	if a.Version < 2 {
		// v1 snapshots predate the volume unit.
		if a.Preferences.Units.Volume == "" {
			a.Preferences.Units.Volume = DefaultUnitPreferences(a.Preferences.Units.System).Volume
		}
	}
	a.Version = SchemaVersion
	return a
}

// normalizeTime drops the monotonic reading and location so snapshots compare
// equal after a round trip through storage.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Round(0)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
