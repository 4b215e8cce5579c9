// ABOUTME: Preference sections that make up a user's settings aggregate
// ABOUTME: Each section carries its own defaults and validity predicate

package settings

import "fmt"

// UnitSystem is the broad measurement convention a user prefers.
type UnitSystem string

const (
	UnitSystemMetric   UnitSystem = "metric"
	UnitSystemImperial UnitSystem = "imperial"
)

// Unit preference values.
const (
	WeightKilograms = "kg"
	WeightPounds    = "lb"

	TemperatureCelsius    = "celsius"
	TemperatureFahrenheit = "fahrenheit"

	HeightCentimeters = "cm"
	HeightInches      = "in"

	VolumeMilliliters = "ml"
	VolumeFluidOunces = "floz"
)

// UnitPreferences controls how measurements are shown.
type UnitPreferences struct {
	System      UnitSystem `json:"system"`
	Weight      string     `json:"weight"`
	Temperature string     `json:"temperature"`
	Height      string     `json:"height"`
	Volume      string     `json:"volume"`
}

// DefaultUnitPreferences returns the unit set for a unit system.
func DefaultUnitPreferences(system UnitSystem) UnitPreferences {
	if system == UnitSystemImperial {
		return UnitPreferences{
			System:      UnitSystemImperial,
			Weight:      WeightPounds,
			Temperature: TemperatureFahrenheit,
			Height:      HeightInches,
			Volume:      VolumeFluidOunces,
		}
	}
	return UnitPreferences{
		System:      UnitSystemMetric,
		Weight:      WeightKilograms,
		Temperature: TemperatureCelsius,
		Height:      HeightCentimeters,
		Volume:      VolumeMilliliters,
	}
}

// Validate returns every broken invariant of the section.
func (u UnitPreferences) Validate() []string {
	var errs []string
	if u.System != UnitSystemMetric && u.System != UnitSystemImperial {
		errs = append(errs, fmt.Sprintf("units.system: unknown value %q", u.System))
	}
	if u.Weight != WeightKilograms && u.Weight != WeightPounds {
		errs = append(errs, fmt.Sprintf("units.weight: unknown value %q", u.Weight))
	}
	if u.Temperature != TemperatureCelsius && u.Temperature != TemperatureFahrenheit {
		errs = append(errs, fmt.Sprintf("units.temperature: unknown value %q", u.Temperature))
	}
	if u.Height != HeightCentimeters && u.Height != HeightInches {
		errs = append(errs, fmt.Sprintf("units.height: unknown value %q", u.Height))
	}
	if u.Volume != VolumeMilliliters && u.Volume != VolumeFluidOunces {
		errs = append(errs, fmt.Sprintf("units.volume: unknown value %q", u.Volume))
	}
	return errs
}

// NotificationPreferences controls reminders and alerts.
type NotificationPreferences struct {
	DailyLogReminder    bool `json:"dailyLogReminder"`
	ReminderHour        int  `json:"reminderHour"`
	ReminderMinute      int  `json:"reminderMinute"`
	PeriodPrediction    bool `json:"periodPrediction"`
	OvulationAlerts     bool `json:"ovulationAlerts"`
	Insights            bool `json:"insights"`
	QuietHoursEnabled   bool `json:"quietHoursEnabled"`
	QuietHoursStartHour int  `json:"quietHoursStartHour"`
	QuietHoursEndHour   int  `json:"quietHoursEndHour"`
}

// DefaultNotificationPreferences returns the out-of-the-box notification set.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		DailyLogReminder:    true,
		ReminderHour:        20,
		ReminderMinute:      0,
		PeriodPrediction:    true,
		OvulationAlerts:     true,
		Insights:            true,
		QuietHoursEnabled:   false,
		QuietHoursStartHour: 22,
		QuietHoursEndHour:   7,
	}
}

func (n NotificationPreferences) Validate() []string {
	var errs []string
	if n.ReminderHour < 0 || n.ReminderHour > 23 {
		errs = append(errs, fmt.Sprintf("notifications.reminderHour: %d not in 0-23", n.ReminderHour))
	}
	if n.ReminderMinute < 0 || n.ReminderMinute > 59 {
		errs = append(errs, fmt.Sprintf("notifications.reminderMinute: %d not in 0-59", n.ReminderMinute))
	}
	if n.QuietHoursStartHour < 0 || n.QuietHoursStartHour > 23 {
		errs = append(errs, fmt.Sprintf("notifications.quietHoursStartHour: %d not in 0-23", n.QuietHoursStartHour))
	}
	if n.QuietHoursEndHour < 0 || n.QuietHoursEndHour > 23 {
		errs = append(errs, fmt.Sprintf("notifications.quietHoursEndHour: %d not in 0-23", n.QuietHoursEndHour))
	}
	return errs
}

// Cycle length bounds in days.
const (
	MinCycleLength  = 21
	MaxCycleLength  = 45
	MinPeriodLength = 1
	MaxPeriodLength = 10
	MinLutealPhase  = 7
	MaxLutealPhase  = 20
)

// CyclePreferences holds the user's typical cycle shape used for predictions.
type CyclePreferences struct {
	AverageCycleLength  int  `json:"averageCycleLength"`
	AveragePeriodLength int  `json:"averagePeriodLength"`
	LutealPhaseLength   int  `json:"lutealPhaseLength"`
	IrregularCycles     bool `json:"irregularCycles"`
}

func DefaultCyclePreferences() CyclePreferences {
	return CyclePreferences{
		AverageCycleLength:  28,
		AveragePeriodLength: 5,
		LutealPhaseLength:   14,
	}
}

func (c CyclePreferences) Validate() []string {
	var errs []string
	if c.AverageCycleLength < MinCycleLength || c.AverageCycleLength > MaxCycleLength {
		errs = append(errs, fmt.Sprintf("cycle.averageCycleLength: %d not in %d-%d", c.AverageCycleLength, MinCycleLength, MaxCycleLength))
	}
	if c.AveragePeriodLength < MinPeriodLength || c.AveragePeriodLength > MaxPeriodLength {
		errs = append(errs, fmt.Sprintf("cycle.averagePeriodLength: %d not in %d-%d", c.AveragePeriodLength, MinPeriodLength, MaxPeriodLength))
	}
	if c.LutealPhaseLength < MinLutealPhase || c.LutealPhaseLength > MaxLutealPhase {
		errs = append(errs, fmt.Sprintf("cycle.lutealPhaseLength: %d not in %d-%d", c.LutealPhaseLength, MinLutealPhase, MaxLutealPhase))
	}
	if c.LutealPhaseLength >= c.AverageCycleLength {
		errs = append(errs, "cycle.lutealPhaseLength: must be shorter than averageCycleLength")
	}
	return errs
}

// MinRetentionDays is the shortest data retention a user can pick; 0 keeps data forever.
const MinRetentionDays = 30

// PrivacyPreferences controls what leaves the device.
type PrivacyPreferences struct {
	DataSharing       bool `json:"dataSharing"`
	AnonymousInsights bool `json:"anonymousInsights"`
	CrashReporting    bool `json:"crashReporting"`
	RetentionDays     int  `json:"retentionDays"`
}

func DefaultPrivacyPreferences() PrivacyPreferences {
	return PrivacyPreferences{
		DataSharing:       false,
		AnonymousInsights: false,
		CrashReporting:    true,
		RetentionDays:     0,
	}
}

func (p PrivacyPreferences) Validate() []string {
	if p.RetentionDays != 0 && p.RetentionDays < MinRetentionDays {
		return []string{fmt.Sprintf("privacy.retentionDays: %d below minimum %d", p.RetentionDays, MinRetentionDays)}
	}
	return nil
}

// Theme values.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// DisplayPreferences controls presentation.
type DisplayPreferences struct {
	Theme        string  `json:"theme"`
	TextScale    float64 `json:"textScale"`
	HighContrast bool    `json:"highContrast"`
	Haptics      bool    `json:"haptics"`
}

func DefaultDisplayPreferences() DisplayPreferences {
	return DisplayPreferences{
		Theme:     ThemeSystem,
		TextScale: 1.0,
		Haptics:   true,
	}
}

func (d DisplayPreferences) Validate() []string {
	var errs []string
	switch d.Theme {
	case ThemeSystem, ThemeLight, ThemeDark:
	default:
		errs = append(errs, fmt.Sprintf("display.theme: unknown value %q", d.Theme))
	}
	if !(d.TextScale >= 0.8 && d.TextScale <= 2.0) {
		errs = append(errs, fmt.Sprintf("display.textScale: %v not in 0.8-2.0", d.TextScale))
	}
	return errs
}

// Backup frequency values.
const (
	BackupDaily  = "daily"
	BackupWeekly = "weekly"
	BackupManual = "manual"
)

// SyncPreferences controls when the device talks to the backend.
type SyncPreferences struct {
	AutoSync        bool   `json:"autoSync"`
	WiFiOnly        bool   `json:"wifiOnly"`
	BackupFrequency string `json:"backupFrequency"`
}

func DefaultSyncPreferences() SyncPreferences {
	return SyncPreferences{
		AutoSync:        true,
		WiFiOnly:        false,
		BackupFrequency: BackupDaily,
	}
}

func (s SyncPreferences) Validate() []string {
	switch s.BackupFrequency {
	case BackupDaily, BackupWeekly, BackupManual:
		return nil
	default:
		return []string{fmt.Sprintf("sync.backupFrequency: unknown value %q", s.BackupFrequency)}
	}
}

// Preferences groups the fixed set of sections.
type Preferences struct {
	Units         UnitPreferences         `json:"units"`
	Notifications NotificationPreferences `json:"notifications"`
	Cycle         CyclePreferences        `json:"cycle"`
	Privacy       PrivacyPreferences      `json:"privacy"`
	Display       DisplayPreferences      `json:"display"`
	Sync          SyncPreferences         `json:"sync"`
}

// DefaultPreferences returns every section at its default for a unit system.
func DefaultPreferences(system UnitSystem) Preferences {
	return Preferences{
		Units:         DefaultUnitPreferences(system),
		Notifications: DefaultNotificationPreferences(),
		Cycle:         DefaultCyclePreferences(),
		Privacy:       DefaultPrivacyPreferences(),
		Display:       DefaultDisplayPreferences(),
		Sync:          DefaultSyncPreferences(),
	}
}

// Validate collects the problems of every section, in section order.
func (p Preferences) Validate() []string {
	var errs []string
	errs = append(errs, p.Units.Validate()...)
	errs = append(errs, p.Notifications.Validate()...)
	errs = append(errs, p.Cycle.Validate()...)
	errs = append(errs, p.Privacy.Validate()...)
	errs = append(errs, p.Display.Validate()...)
	errs = append(errs, p.Sync.Validate()...)
	return errs
}
