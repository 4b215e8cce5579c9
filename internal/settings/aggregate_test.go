// ABOUTME: Tests for aggregate construction, transitions, validation and migration
// ABOUTME: Also covers locale-derived unit defaults and document round trips

package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)

func TestCreateDefault_IsValid(t *testing.T) {
	for _, userID := range []string{"u1", "user-42", "Xy9_aBc", "firebase:uid:123"} {
		for _, locale := range []string{"", "en-US", "de_DE.UTF-8", "garbage", "fr"} {
			agg := CreateDefault(userID, locale, t0)
			assert.True(t, agg.IsValid(), "user %q locale %q: %v", userID, locale, agg.ValidationErrors())
			assert.Equal(t, StatusPending, agg.SyncStatus)
			assert.Equal(t, SchemaVersion, agg.Version)
			assert.Equal(t, t0, agg.LastModified)
		}
	}
}

func TestCreateDefault_BlankUserIsInvalid(t *testing.T) {
	agg := CreateDefault("   ", "", t0)
	assert.False(t, agg.IsValid())
	assert.Contains(t, agg.ValidationErrors(), "userId: must not be blank")
}

func TestUnitSystemForLocale(t *testing.T) {
	tests := []struct {
		locale string
		want   UnitSystem
	}{
		{"en-US", UnitSystemImperial},
		{"en_US.UTF-8", UnitSystemImperial},
		{"es-US", UnitSystemImperial},
		{"my-MM", UnitSystemImperial},
		{"en-GB", UnitSystemMetric},
		{"de_DE", UnitSystemMetric},
		{"en", UnitSystemMetric},
		{"", UnitSystemMetric},
		{"C", UnitSystemMetric},
		{"not a locale", UnitSystemMetric},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, UnitSystemForLocale(tt.locale), "locale %q", tt.locale)
	}

	us := CreateDefault("u1", "en-US", t0)
	assert.Equal(t, WeightPounds, us.Preferences.Units.Weight)
	assert.Equal(t, TemperatureFahrenheit, us.Preferences.Units.Temperature)
}

func TestWithUpdate(t *testing.T) {
	base := CreateDefault("u1", "", t0).MarkAsSynced()

	later := base.WithUpdate(t0.Add(time.Minute))
	assert.Equal(t, StatusPending, later.SyncStatus)
	assert.Equal(t, t0.Add(time.Minute), later.LastModified)

	// Clock going backwards must not move LastModified backwards.
	earlier := later.WithUpdate(t0.Add(-time.Hour))
	assert.Equal(t, StatusPending, earlier.SyncStatus)
	assert.False(t, earlier.LastModified.Before(later.LastModified))

	// Value semantics: the original is untouched.
	assert.Equal(t, StatusSynced, base.SyncStatus)
	assert.Equal(t, t0, base.LastModified)
}

func TestStatusTransitions_OnlyChangeStatus(t *testing.T) {
	base := CreateDefault("u1", "en-US", t0)
	base.Preferences.Cycle.AverageCycleLength = 31

	synced := base.MarkAsSynced()
	failed := base.MarkAsSyncError()
	pending := failed.MarkAsPending()

	assert.Equal(t, StatusSynced, synced.SyncStatus)
	assert.Equal(t, StatusFailed, failed.SyncStatus)
	assert.Equal(t, StatusPending, pending.SyncStatus)

	for _, got := range []Aggregate{synced, failed, pending} {
		got.SyncStatus = base.SyncStatus
		assert.Equal(t, base, got)
	}
}

func TestNeedsSync(t *testing.T) {
	agg := CreateDefault("u1", "", t0)
	assert.True(t, agg.NeedsSync())
	assert.False(t, agg.MarkAsSynced().NeedsSync())
	assert.False(t, agg.MarkAsSyncError().NeedsSync())
	assert.True(t, agg.MarkAsSynced().WithUpdate(t0).NeedsSync())
}

func TestValidationErrors_ListsEveryProblem(t *testing.T) {
	agg := CreateDefault("", "", t0)
	agg.Preferences.Units.Weight = "stone"
	agg.Preferences.Notifications.ReminderHour = 24
	agg.Preferences.Cycle.AverageCycleLength = 10
	agg.Preferences.Privacy.RetentionDays = 5
	agg.Preferences.Display.Theme = "neon"
	agg.Preferences.Sync.BackupFrequency = "hourly"

	errs := agg.ValidationErrors()
	assert.False(t, agg.IsValid())

	for _, prefix := range []string{
		"userId:",
		"units.weight:",
		"notifications.reminderHour:",
		"cycle.averageCycleLength:",
		"cycle.lutealPhaseLength:",
		"privacy.retentionDays:",
		"display.theme:",
		"sync.backupFrequency:",
	} {
		found := false
		for _, e := range errs {
			if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
				found = true
				break
			}
		}
		assert.True(t, found, "missing %s in %v", prefix, errs)
	}
}

func TestDisplay_TextScaleNaNIsInvalid(t *testing.T) {
	d := DefaultDisplayPreferences()
	var zero float64
	d.TextScale = zero / zero
	assert.NotEmpty(t, d.Validate())
}

func TestMigrate(t *testing.T) {
	agg := CreateDefault("u1", "en-US", t0)
	agg.Version = 1
	agg.Preferences.Units.Volume = ""

	migrated := agg.Migrate()
	assert.Equal(t, SchemaVersion, migrated.Version)
	assert.Equal(t, VolumeFluidOunces, migrated.Preferences.Units.Volume)
	assert.True(t, migrated.IsValid())

	// Already current: untouched.
	assert.Equal(t, migrated, migrated.Migrate())
}

func TestDocumentRoundTrip(t *testing.T) {
	agg := CreateDefault("u1", "en-US", t0).MarkAsSynced()
	agg.Preferences.Display.TextScale = 1.25
	agg.Preferences.Notifications.ReminderMinute = 45

	doc, err := ToDocument(agg)
	require.NoError(t, err)
	assert.Equal(t, "u1", doc.GetFields()["userId"].GetStringValue())
	assert.Equal(t, float64(SchemaVersion), doc.GetFields()["version"].GetNumberValue())
	assert.NotEmpty(t, doc.GetFields()["lastModified"].GetStringValue())

	back, err := FromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, agg, back)
}

func TestFromDocument_Malformed(t *testing.T) {
	_, err := FromDocument(nil)
	assert.ErrorIs(t, err, ErrMalformedDocument)

	agg := CreateDefault("", "", t0)
	doc, err := ToDocument(agg)
	require.NoError(t, err)
	_, err = FromDocument(doc)
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestMarshalRoundTrip(t *testing.T) {
	agg := CreateDefault("u1", "de-DE", time.Now())
	data, err := Marshal(agg)
	require.NoError(t, err)

	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, agg, back)
}

func TestDocumentRef(t *testing.T) {
	coll, id := DocumentRef("u1")
	assert.Equal(t, "users/u1/settings", coll)
	assert.Equal(t, DocumentID, id)
}

func TestEnvLocale(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MEASUREMENT", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "en_US.UTF-8")
	assert.Equal(t, "en_US.UTF-8", EnvLocale{}.CurrentLocale())

	t.Setenv("LC_ALL", "de_DE.UTF-8")
	assert.Equal(t, "de_DE.UTF-8", EnvLocale{}.CurrentLocale())
}
