// internal/api/checkouts/handlers.go
package checkouts

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/cockpit-checkouts/internal/api/apiutil"
	"github.com/codr1/cockpit-checkouts/internal/api/htmx"
	domain "github.com/codr1/cockpit-checkouts/internal/checkouts"
	"github.com/codr1/cockpit-checkouts/internal/period"
	"github.com/codr1/cockpit-checkouts/internal/popup"
	"github.com/codr1/cockpit-checkouts/internal/ratelimit"
	"github.com/codr1/cockpit-checkouts/internal/request"
	checkoutstempl "github.com/codr1/cockpit-checkouts/internal/templates/components/checkouts"
	"github.com/codr1/cockpit-checkouts/internal/templates/layouts"
)

const (
	localeParam     = "locale"
	modalIDParam    = "id"
	monthQueryKey   = "dateMulti"
	monthsAround    = 6
	countRunTimeout = 2 * time.Minute
)

// Counter runs one aggregation for a page.
type Counter interface {
	CountCheckOuts(ctx context.Context, page domain.Page) (domain.Counts, bool)
}

// Deps are the collaborators shared by all check-out handlers.
type Deps struct {
	Engine     Counter
	Owner      *popup.Owner
	Limiter    *ratelimit.Limiter
	TrustProxy bool
	Now        func() time.Time
}

var (
	deps   *Deps
	depsMu sync.RWMutex
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(d Deps) {
	if d.Engine == nil {
		return
	}
	if d.Owner == nil {
		d.Owner = &popup.Owner{}
	}
	if d.Limiter == nil {
		d.Limiter = ratelimit.New(nil)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	depsMu.Lock()
	defer depsMu.Unlock()
	deps = &d
}

func loadDeps() *Deps {
	depsMu.RLock()
	defer depsMu.RUnlock()
	return deps
}

// /{locale}/cockpit
func HandleCockpitPage(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil {
		logger.Error().Msg("Check-out handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	locale := r.PathValue(localeParam)
	if !period.Supported(locale) {
		http.NotFound(w, r)
		return
	}

	selected, ok := period.Parse(r.URL.Query().Get(monthQueryKey), locale)
	if !ok {
		now := d.Now().UTC()
		selected = period.Month(now.Year(), now.Month())
	}

	data := checkoutstempl.CockpitData{
		Locale:  locale,
		Options: monthOptions(selected, locale),
	}
	page := layouts.Base("Cockpit", checkoutstempl.Cockpit(data))
	apiutil.RenderHTMLComponent(r.Context(), w, page, nil, "Failed to render cockpit page", "Failed to render page")
}

// /api/v1/checkouts/count
func HandleCount(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil {
		logger.Error().Msg("Check-out handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// htmx requests always get the popup fragment.
	wantsJSON := apiutil.WantsJSON(r) && !htmx.IsRequest(r)

	result, release := d.Limiter.Begin(ratelimit.ClientKey(r, d.TrustProxy))
	if !result.Allowed {
		logger.Info().
			Str("reason", result.Reason).
			Dur("retry_after", result.RetryAfter).
			Msg("Check-out run refused")
		if result.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Round(time.Second)/time.Second)))
		}
		if wantsJSON {
			if err := apiutil.WriteJSON(w, http.StatusTooManyRequests, errorResponse{Error: popup.MessageBusy}); err != nil {
				logger.Error().Err(err).Msg("Failed to write busy response")
			}
			return
		}
		renderModal(r.Context(), w, d.Owner.Replace(popup.ForMessage(popup.MessageBusy)))
		return
	}
	defer release()

	page := request.PageFromRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), countRunTimeout)
	defer cancel()

	counts, ok := d.Engine.CountCheckOuts(ctx, page)
	if wantsJSON {
		writeCountsJSON(r.Context(), w, page.Label, counts, ok)
		return
	}

	m := popup.ForCounts(counts, ok)
	if m.IsTable() {
		m.Period = page.Label
	}
	renderModal(r.Context(), w, d.Owner.Replace(m))
}

// /api/v1/checkouts/popup/{id}
func HandleDismiss(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil {
		logger.Error().Msg("Check-out handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	id := r.PathValue(modalIDParam)
	if !d.Owner.Dismiss(id) {
		logger.Debug().Str("modal_id", id).Msg("Dismissed stale modal")
	}

	// An empty body clears the modal slot.
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
}

func renderModal(ctx context.Context, w http.ResponseWriter, m popup.Modal) {
	apiutil.RenderHTMLComponent(ctx, w, checkoutstempl.Popup(m), nil, "Failed to render check-out popup", "Failed to render popup")
}

type countRow struct {
	Name      string `json:"name"`
	CheckOuts int    `json:"checkOuts"`
}

type countsResponse struct {
	Period string     `json:"period"`
	Rows   []countRow `json:"rows"`
	Total  int        `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeCountsJSON(ctx context.Context, w http.ResponseWriter, label string, counts domain.Counts, ok bool) {
	logger := log.Ctx(ctx)
	if !ok {
		if err := apiutil.WriteJSON(w, http.StatusBadGateway, errorResponse{Error: popup.MessageFailure}); err != nil {
			logger.Error().Err(err).Msg("Failed to write count failure")
		}
		return
	}

	rows := make([]countRow, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, countRow{Name: c.Name, CheckOuts: c.CheckOuts})
	}
	resp := countsResponse{Period: label, Rows: rows, Total: counts.Total()}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write counts")
	}
}

// monthOptions lists the months around selected, oldest first.
func monthOptions(selected period.Period, locale string) []checkoutstempl.MonthOption {
	options := make([]checkoutstempl.MonthOption, 0, 2*monthsAround+1)
	for offset := -monthsAround; offset <= monthsAround; offset++ {
		start := selected.From.AddDate(0, offset, 0)
		p := period.Month(start.Year(), start.Month())
		options = append(options, checkoutstempl.MonthOption{
			Label:    period.Label(p, locale),
			Selected: offset == 0,
		})
	}
	return options
}
