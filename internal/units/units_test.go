// ABOUTME: Tests for unit conversion and formatting
// ABOUTME: Checks exactness, determinism, incompatible units and locale grouping

package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		from  Unit
		to    Unit
		kind  Kind
		want  float64
	}{
		{"kg to lb", 100, Kilogram, Pound, Weight, 220.46226218487757},
		{"lb to kg", 1, Pound, Kilogram, Weight, 0.45359237},
		{"g to oz", 28.349523125, Gram, Ounce, Weight, 1},
		{"c to f", 37, Celsius, Fahrenheit, Temperature, 98.6},
		{"f to c", 212, Fahrenheit, Celsius, Temperature, 100},
		{"cm to in", 2.54, Centimeter, Inch, Length, 1},
		{"floz to ml", 1, FluidOunce, Milliliter, Volume, 29.5735295625},
		{"identity", 12.5, Kilogram, Kilogram, Weight, 12.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Convert(tt.value, tt.from, tt.to, tt.kind), 1e-9)
		})
	}
}

func TestConvert_Deterministic(t *testing.T) {
	first := Convert(100.0, Kilogram, Pound, Weight)
	for i := 0; i < 100; i++ {
		got := Convert(100.0, Kilogram, Pound, Weight)
		assert.Equal(t, math.Float64bits(first), math.Float64bits(got))
	}
}

func TestConvert_Incompatible(t *testing.T) {
	assert.True(t, math.IsNaN(Convert(1, Kilogram, Celsius, Weight)))
	assert.True(t, math.IsNaN(Convert(1, Kilogram, Pound, Temperature)))
	assert.True(t, math.IsNaN(Convert(1, Unit("stone"), Pound, Weight)))
}

func TestCompatibleAndKindOf(t *testing.T) {
	assert.True(t, Compatible(Kilogram, Pound, Weight))
	assert.False(t, Compatible(Kilogram, Inch, Weight))

	k, ok := KindOf(Fahrenheit)
	require.True(t, ok)
	assert.Equal(t, Temperature, k)

	_, ok = KindOf(Unit("parsec"))
	assert.False(t, ok)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "68.0 kg", Format(68.04, Kilogram, Weight))
	assert.Equal(t, "68.1 kg", Format(68.05, Kilogram, Weight))
	assert.Equal(t, "98.60 °F", Format(98.6, Fahrenheit, Temperature))
	assert.Equal(t, "36.55 °C", Format(36.549, Celsius, Temperature))
	assert.Equal(t, "1,235 ml", Format(1234.5, Milliliter, Volume))
	assert.Equal(t, "-3.5 lb", Format(-3.45, Pound, Weight))
}

func TestFormat_NonFinite(t *testing.T) {
	assert.Equal(t, "NaN kg", Format(math.NaN(), Kilogram, Weight))
	assert.Equal(t, "+Inf lb", Format(math.Inf(1), Pound, Weight))
}

func TestFormatter_Locale(t *testing.T) {
	de := NewFormatter(language.German)
	assert.Equal(t, "1.234,5 kg", de.Format(1234.5, Kilogram, Weight))
}

func TestParseUnit(t *testing.T) {
	for in, want := range map[string]Unit{
		"KG":         Kilogram,
		"lbs":        Pound,
		"°F":         Fahrenheit,
		"celsius":    Celsius,
		" in ":       Inch,
		"fl oz":      FluidOunce,
		"milliliter": Milliliter,
	} {
		got, err := ParseUnit(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseUnit("furlong")
	assert.Error(t, err)
}
