// ABOUTME: Locale handling for default unit selection
// ABOUTME: Maps BCP-47 or POSIX locale strings to a unit system via golang.org/x/text

package settings

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

// imperialRegions use imperial units for body measurements by default.
var imperialRegions = map[string]bool{
	"US": true,
	"LR": true,
	"MM": true,
}

// UnitSystemForLocale derives the default unit system from a locale string.
// Only an explicit region counts; anything absent or unparseable is metric.
func UnitSystemForLocale(locale string) UnitSystem {
	tag, ok := ParseLocale(locale)
	if !ok {
		return UnitSystemMetric
	}
	region, conf := tag.Region()
	if conf != language.Exact {
		return UnitSystemMetric
	}
	if imperialRegions[region.String()] {
		return UnitSystemImperial
	}
	return UnitSystemMetric
}

// ParseLocale accepts "en-US", "en_US" and "en_US.UTF-8@euro" forms.
func ParseLocale(locale string) (language.Tag, bool) {
	s := strings.TrimSpace(locale)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "_", "-")
	if s == "" || s == "C" || s == "POSIX" {
		return language.Und, false
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, false
	}
	return tag, true
}

// LocaleSource reports the device's current locale, or "" when unknown.
type LocaleSource interface {
	CurrentLocale() string
}

// StaticLocale always reports the same locale.
type StaticLocale string

func (s StaticLocale) CurrentLocale() string { return string(s) }

// EnvLocale reads the POSIX locale variables in precedence order.
type EnvLocale struct{}

func (EnvLocale) CurrentLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MEASUREMENT", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
