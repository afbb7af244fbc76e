package request

import (
	"net/http"
	"strings"

	"github.com/codr1/cockpit-checkouts/internal/api/htmx"
	"github.com/codr1/cockpit-checkouts/internal/hostpage"
)

// PageFromRequest builds the host page state for a count request: the period
// label from the "period" form value and the page URL from HX-Current-URL,
// falling back to the Referer header.
func PageFromRequest(r *http.Request) hostpage.Static {
	pageURL := htmx.CurrentURL(r)
	if pageURL == "" {
		pageURL = strings.TrimSpace(r.Referer())
	}
	return hostpage.Static{
		Label: r.FormValue("period"),
		URL:   pageURL,
	}
}
