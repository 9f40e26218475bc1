// Package humanize renders minute counts as localized duration strings.
package humanize

import (
	"errors"
	"strings"

	"github.com/haasonsaas/hotspot/internal/i18n"
)

// ErrInvalidDuration is returned for zero or negative minute counts.
var ErrInvalidDuration = errors.New("duration must be greater than zero minutes")

// Fixed unit sizes in minutes: 365-day year, 30-day month, 7-day week.
var units = []struct {
	key     string
	minutes int
}{
	{"time.year", 60 * 24 * 365},
	{"time.month", 60 * 24 * 30},
	{"time.week", 60 * 24 * 7},
	{"time.day", 60 * 24},
	{"time.hour", 60},
	{"time.minute", 1},
}

// Minutes decomposes a minute count into years, months, weeks, days, hours
// and minutes, omitting zero-valued units, and joins the localized parts with
// single spaces. The unit counts always sum back to the input exactly.
func Minutes(tr *i18n.Translator, locale string, minutes int) (string, error) {
	if minutes <= 0 {
		return "", ErrInvalidDuration
	}

	var parts []string
	remainder := minutes
	for _, unit := range units {
		count := remainder / unit.minutes
		remainder %= unit.minutes
		if count == 0 {
			continue
		}
		parts = append(parts, tr.TranslateN(locale, unit.key, count))
	}
	return strings.Join(parts, " "), nil
}
