// Package period turns the cockpit's "Month Year" label into an inclusive
// calendar-month date range.
package period

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/de"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/es"
	"github.com/go-playground/locales/fr"
	"github.com/go-playground/locales/it"
	"github.com/go-playground/locales/nl"
	"github.com/go-playground/locales/pt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateLayout is the ISO calendar date format used on the wire.
const DateLayout = "2006-01-02"

const (
	minYear = 1
	maxYear = 9999
)

var translators = map[string]locales.Translator{
	"en": en.New(),
	"es": es.New(),
	"de": de.New(),
	"fr": fr.New(),
	"it": it.New(),
	"nl": nl.New(),
	"pt": pt.New(),
}

// Period is an inclusive range of calendar days at UTC midnight.
type Period struct {
	From time.Time
	To   time.Time
}

// Month returns the period covering the given month.
func Month(year int, month time.Month) Period {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of the next month is the last day of this one.
	to := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	return Period{From: from, To: to}
}

func (p Period) FromISO() string { return p.From.Format(DateLayout) }

func (p Period) ToISO() string { return p.To.Format(DateLayout) }

// Contains reports whether the calendar day of t lies in the period. The time
// of day and zone offset of t are ignored.
func (p Period) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(p.From) && !day.After(p.To)
}

// ContainsDate is Contains for an ISO date or timestamp string. Only the
// leading YYYY-MM-DD is read.
func (p Period) ContainsDate(value string) bool {
	value = strings.TrimSpace(value)
	if len(value) < len(DateLayout) {
		return false
	}
	day, err := time.Parse(DateLayout, value[:len(DateLayout)])
	if err != nil {
		return false
	}
	return p.Contains(day)
}

func (p Period) String() string { return p.FromISO() + ".." + p.ToISO() }

// Label formats p the way the cockpit's month selector shows it, e.g.
// "Marzo 2024" for locale "es".
func Label(p Period, locale string) string {
	name := translatorFor(locale).MonthWide(p.From.Month())
	tag, err := language.Parse(locale)
	if err != nil || !Supported(locale) {
		tag = language.English
	}
	return cases.Title(tag).String(name) + " " + strconv.Itoa(p.From.Year())
}

// Parse reads a "<MonthName> <Year>" label using month names of the given
// locale, with English as a fallback. The cockpit's "YYYY-MM" month selector
// value is accepted as well.
func Parse(label, locale string) (Period, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Period{}, false
	}

	if p, ok := parseMonthValue(label); ok {
		return p, true
	}

	fields := strings.Fields(label)
	if len(fields) < 2 {
		return Period{}, false
	}
	yearField := fields[len(fields)-1]
	monthField := strings.Join(fields[:len(fields)-1], " ")
	// "marzo de 2024"
	monthField = strings.TrimSuffix(strings.TrimSuffix(monthField, " de"), " del")

	year, ok := parseYear(yearField)
	if !ok {
		return Period{}, false
	}
	month, ok := LookupMonth(monthField, locale)
	if !ok {
		return Period{}, false
	}
	return Month(year, month), true
}

// LookupMonth matches a month name, wide or abbreviated, case-insensitively.
func LookupMonth(name, locale string) (time.Month, bool) {
	name = normalize(name)
	if name == "" {
		return 0, false
	}

	candidates := []locales.Translator{translatorFor(locale)}
	if fallback := translators["en"]; candidates[0] != fallback {
		candidates = append(candidates, fallback)
	}

	for _, tr := range candidates {
		for m := time.January; m <= time.December; m++ {
			if normalize(tr.MonthWide(m)) == name || normalize(tr.MonthAbbreviated(m)) == name {
				return m, true
			}
		}
	}
	return 0, false
}

// Supported reports whether month names for the locale's language are known.
func Supported(locale string) bool {
	_, ok := translators[baseLanguage(locale)]
	return ok
}

func translatorFor(locale string) locales.Translator {
	if tr, ok := translators[baseLanguage(locale)]; ok {
		return tr
	}
	return translators["en"]
}

func baseLanguage(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		locale = locale[:i]
	}
	return locale
}

func parseMonthValue(value string) (Period, bool) {
	if len(value) != len("2006-01") {
		return Period{}, false
	}
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return Period{}, false
	}
	return Month(t.Year(), t.Month()), true
}

func parseYear(value string) (int, bool) {
	for _, r := range value {
		if !unicode.IsDigit(r) {
			return 0, false
		}
	}
	year, err := strconv.Atoi(value)
	if err != nil || year < minYear || year > maxYear {
		return 0, false
	}
	return year, true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(s), "."))
}
