package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

// currencyMarkers are stripped from raw price text before parsing. Longer
// markers must precede their prefixes so "руб." wins over "руб".
var currencyMarkers = []string{
	"руб.",
	"руб",
	"pуб.",
	"₽",
	"USD",
	"US$",
	"$",
	"€",
	"£",
}

// invisibleRunes covers direction marks, zero-width characters, and
// non-breaking spaces the Steam API embeds in localised price strings.
var invisibleRunes = strings.NewReplacer(
	"\u200b", "",
	"\u200e", "",
	"\u200f", "",
	"\ufeff", "",
	"\u00a0", "",
)

// Price converts a raw textual price into a canonical decimal value. The
// second return is false when the input carries no usable value: empty or
// whitespace-only text, the "N/A" sentinel in any casing, or text that does
// not survive cleaning. Malformed input never produces an error.
func Price(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "n/a") {
		return decimal.Decimal{}, false
	}

	s = invisibleRunes.Replace(s)
	for _, marker := range currencyMarkers {
		s = strings.ReplaceAll(s, marker, "")
	}
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Decimal{}, false
	}

	// "1.234,56" style: the dot is a thousands separator, the comma the
	// decimal point. A lone comma is always a decimal comma.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return value, true
}
