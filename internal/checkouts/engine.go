// Package checkouts counts monthly guest check-outs per property.
package checkouts

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/cockpit-checkouts/internal/period"
	"github.com/codr1/cockpit-checkouts/internal/smoobu"
)

var errAbsent = errors.New("absent")

// Page is the host page state a run reads from.
type Page interface {
	// PeriodLabel returns the "Month Year" text of the selected period.
	PeriodLabel() (string, bool)
	// Locale returns the page's locale segment, e.g. "es".
	Locale() string
}

type IdentityResolver interface {
	Resolve(ctx context.Context) (string, bool)
}

type Directory interface {
	Properties(ctx context.Context, tenant string) (map[string]string, bool)
}

type BookingSource interface {
	Bookings(ctx context.Context, tenant string, p period.Period) ([]smoobu.Booking, bool)
}

// Engine joins bookings to properties. It holds no state between runs.
type Engine struct {
	Sessions  IdentityResolver
	Directory Directory
	Bookings  BookingSource
}

// CountCheckOuts runs one read-aggregate cycle for the page. It returns false
// when any input is unavailable; the cause is only logged.
func (e *Engine) CountCheckOuts(ctx context.Context, page Page) (Counts, bool) {
	tenant, ok := e.Sessions.Resolve(ctx)
	if !ok {
		log.Ctx(ctx).Warn().Msg("Check-out count aborted: no session identity")
		return nil, false
	}
	logger := log.Ctx(ctx).With().Str("tenant", tenant).Logger()
	ctx = logger.WithContext(ctx)

	var (
		directory map[string]string
		selected  period.Period
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, ok := e.Directory.Properties(gctx, tenant)
		if !ok {
			logger.Warn().Msg("Check-out count aborted: property directory unavailable")
			return errAbsent
		}
		if len(d) == 0 {
			logger.Warn().Msg("Check-out count aborted: no properties")
			return errAbsent
		}
		directory = d
		return nil
	})
	g.Go(func() error {
		label, ok := page.PeriodLabel()
		if !ok {
			logger.Warn().Msg("Check-out count aborted: period label missing")
			return errAbsent
		}
		p, ok := period.Parse(label, page.Locale())
		if !ok {
			logger.Warn().Str("label", label).Str("locale", page.Locale()).Msg("Check-out count aborted: period label unparsable")
			return errAbsent
		}
		selected = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, false
	}

	bookings, ok := e.Bookings.Bookings(ctx, tenant, selected)
	if !ok {
		logger.Warn().Str("period", selected.String()).Msg("Check-out count aborted: bookings unavailable")
		return nil, false
	}

	unknown := 0
	for _, b := range bookings {
		if _, known := directory[b.PropertyID]; !known {
			unknown++
		}
	}
	if unknown > 0 {
		logger.Debug().Int("bookings", unknown).Msg("Skipped bookings of unknown properties")
	}

	counts := Tally(directory, bookings, selected)
	sortCounts(counts, page.Locale())

	logger.Info().
		Str("period", selected.String()).
		Int("properties", len(counts)).
		Int("bookings", len(bookings)).
		Int("check_outs", counts.Total()).
		Msg("Counted check-outs")
	return counts, true
}

// Tally counts bookings that belong to a known property, depart within p and
// carry a guest name. Every property name appears in the result, unsorted.
func Tally(directory map[string]string, bookings []smoobu.Booking, p period.Period) Counts {
	byName := make(map[string]int, len(directory))
	for _, name := range directory {
		byName[name] = 0
	}

	for _, b := range bookings {
		name, known := directory[b.PropertyID]
		if !known {
			continue
		}
		if !p.ContainsDate(b.DepartureDate) {
			continue
		}
		if strings.TrimSpace(b.GuestName) == "" {
			continue
		}
		byName[name]++
	}

	counts := make(Counts, 0, len(byName))
	for name, n := range byName {
		counts = append(counts, Count{Name: name, CheckOuts: n})
	}
	return counts
}
