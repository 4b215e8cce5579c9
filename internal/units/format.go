// ABOUTME: Locale-aware formatting of measurement values
// ABOUTME: Rounds half away from zero with shopspring/decimal, groups digits with x/text

package units

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// precision is the number of fraction digits shown per kind. Basal body
// temperature needs hundredths to be useful.
var precision = map[Kind]int32{
	Weight:      1,
	Temperature: 2,
	Length:      1,
	Volume:      0,
}

// Formatter renders values for one locale.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter returns a Formatter for tag.
func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{printer: message.NewPrinter(tag)}
}

var defaultFormatter = NewFormatter(language.English)

// Format renders value in unit using English conventions.
func Format(value float64, unit Unit, kind Kind) string {
	return defaultFormatter.Format(value, unit, kind)
}

// Format renders value with the kind's precision followed by the unit symbol.
func (f *Formatter) Format(value float64, unit Unit, kind Kind) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return strconv.FormatFloat(value, 'f', -1, 64) + " " + Symbol(unit)
	}
	places := precision[kind]
	rounded, _ := decimal.NewFromFloat(value).Round(places).Float64()
	return f.printer.Sprint(number.Decimal(rounded, number.Scale(int(places)))) + " " + Symbol(unit)
}
