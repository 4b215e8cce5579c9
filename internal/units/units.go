// ABOUTME: Exact unit conversions for weight, temperature, length and volume
// ABOUTME: Pure functions of (value, from, to); safe to memoize

package units

import (
	"fmt"
	"math"
	"strings"
)

// Unit is a measurement unit.
type Unit string

const (
	Kilogram   Unit = "kg"
	Gram       Unit = "g"
	Pound      Unit = "lb"
	Ounce      Unit = "oz"
	Celsius    Unit = "celsius"
	Fahrenheit Unit = "fahrenheit"
	Centimeter Unit = "cm"
	Inch       Unit = "in"
	Milliliter Unit = "ml"
	FluidOunce Unit = "floz"
)

// Kind is the physical quantity a conversion operates on.
type Kind string

const (
	Weight      Kind = "weight"
	Temperature Kind = "temperature"
	Length      Kind = "length"
	Volume      Kind = "volume"
)

// toBase maps linear units to their factor relative to the kind's base unit.
var toBase = map[Kind]map[Unit]float64{
	Weight: {
		Kilogram: 1,
		Gram:     0.001,
		Pound:    0.45359237,
		Ounce:    0.028349523125,
	},
	Length: {
		Centimeter: 1,
		Inch:       2.54,
	},
	Volume: {
		Milliliter: 1,
		FluidOunce: 29.5735295625,
	},
}

var symbols = map[Unit]string{
	Kilogram:   "kg",
	Gram:       "g",
	Pound:      "lb",
	Ounce:      "oz",
	Celsius:    "°C",
	Fahrenheit: "°F",
	Centimeter: "cm",
	Inch:       "in",
	Milliliter: "ml",
	FluidOunce: "fl oz",
}

// Symbol returns the display symbol for u.
func Symbol(u Unit) string {
	if s, ok := symbols[u]; ok {
		return s
	}
	return string(u)
}

// KindOf returns the quantity a unit measures.
func KindOf(u Unit) (Kind, bool) {
	switch u {
	case Celsius, Fahrenheit:
		return Temperature, true
	}
	for kind, factors := range toBase {
		if _, ok := factors[u]; ok {
			return kind, true
		}
	}
	return "", false
}

// Compatible reports whether from and to both measure kind.
func Compatible(from, to Unit, kind Kind) bool {
	fk, ok1 := KindOf(from)
	tk, ok2 := KindOf(to)
	return ok1 && ok2 && fk == kind && tk == kind
}

// Convert converts value between units of the same kind. Identical inputs
// always produce bit-identical outputs. Incompatible units yield NaN; callers
// validate with Compatible first.
func Convert(value float64, from, to Unit, kind Kind) float64 {
	if !Compatible(from, to, kind) {
		return math.NaN()
	}
	if from == to {
		return value
	}

	if kind == Temperature {
		if from == Celsius {
			return value*9/5 + 32
		}
		return (value - 32) * 5 / 9
	}

	factors := toBase[kind]
	return value * factors[from] / factors[to]
}

// ParseUnit accepts unit names and common symbols, case-insensitively.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kg", "kilogram", "kilograms":
		return Kilogram, nil
	case "g", "gram", "grams":
		return Gram, nil
	case "lb", "lbs", "pound", "pounds":
		return Pound, nil
	case "oz", "ounce", "ounces":
		return Ounce, nil
	case "c", "°c", "celsius":
		return Celsius, nil
	case "f", "°f", "fahrenheit":
		return Fahrenheit, nil
	case "cm", "centimeter", "centimeters":
		return Centimeter, nil
	case "in", "inch", "inches":
		return Inch, nil
	case "ml", "milliliter", "milliliters":
		return Milliliter, nil
	case "floz", "fl oz", "fluid ounce", "fluid ounces":
		return FluidOunce, nil
	}
	return "", fmt.Errorf("unknown unit %q", s)
}
