// ABOUTME: Applies section.field=value assignments to a preferences value
// ABOUTME: Field names follow the snapshot's JSON encoding, e.g. display.textScale=1.2

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sestako/eunio-app-sub019/internal/settings"
)

// applySetting updates one preference field. Setting units.system resets the
// individual units to that system's defaults. Range checks are left to the
// aggregate's validation.
func applySetting(p *settings.Preferences, assignment string) error {
	path, value, ok := strings.Cut(assignment, "=")
	if !ok {
		return fmt.Errorf("%q: expected section.field=value", assignment)
	}
	path = strings.TrimSpace(path)
	section, field, ok := strings.Cut(path, ".")
	if !ok {
		return fmt.Errorf("%q: expected section.field", path)
	}

	if path == "units.system" {
		system := settings.UnitSystem(strings.ToLower(value))
		if system != settings.UnitSystemMetric && system != settings.UnitSystemImperial {
			return fmt.Errorf("units.system: unknown value %q", value)
		}
		p.Units = settings.DefaultUnitPreferences(system)
		return nil
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	var doc map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding preferences: %w", err)
	}

	fields, ok := doc[section]
	if !ok {
		return fmt.Errorf("unknown section %q", section)
	}
	current, ok := fields[field]
	if !ok {
		return fmt.Errorf("unknown field %q in section %q", field, section)
	}

	// String fields take the value verbatim; everything else must be a JSON literal.
	if len(current) > 0 && current[0] == '"' {
		quoted, _ := json.Marshal(value)
		fields[field] = quoted
	} else {
		if !json.Valid([]byte(value)) {
			return fmt.Errorf("%s: invalid value %q", path, value)
		}
		fields[field] = json.RawMessage(value)
	}

	data, err = json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	var next settings.Preferences
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	*p = next
	return nil
}
