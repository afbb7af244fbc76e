package checkouts

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/codr1/cockpit-checkouts/internal/popup"
)

const (
	ModalTarget = "#checkouts-modal"
	CountPath   = "/api/v1/checkouts/count"
	popupPath   = "/api/v1/checkouts/popup/"
)

// DismissPath is the endpoint that closes the modal with the given id.
func DismissPath(id string) string {
	return popupPath + id
}

// MonthOption is one entry of the period selector.
type MonthOption struct {
	Label    string
	Selected bool
}

// CockpitData backs the companion cockpit page.
type CockpitData struct {
	Locale  string
	Options []MonthOption
}

// Cockpit renders the period selector and the injected trigger control.
func Cockpit(data CockpitData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div id="multi-calendar"><div><div class="card-header"><div class="row">`)
		b.WriteString(`<div><select id="period-label" name="period">`)
		for _, opt := range data.Options {
			label := templ.EscapeString(opt.Label)
			b.WriteString(`<option value="` + label + `"`)
			if opt.Selected {
				b.WriteString(` selected`)
			}
			b.WriteString(`>` + label + `</option>`)
		}
		b.WriteString(`</select></div>`)
		b.WriteString(`<div class="text-left text-sm-right pl-1">`)
		if err := writeString(w, b.String()); err != nil {
			return err
		}
		if err := Trigger().Render(ctx, w); err != nil {
			return err
		}
		return writeString(w, `</div></div></div></div></div>`)
	})
}

// Trigger is the control that starts a count for the selected period.
func Trigger() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return writeString(w, fmt.Sprintf(
			`<button id="count-checkouts" type="button" class="btn btn-secondary btn-small" hx-post="%s" hx-include="#period-label" hx-target="%s" hx-swap="innerHTML"><span>Count check-outs</span></button>`,
			CountPath, ModalTarget,
		))
	})
}

// Popup renders the modal: an overlay, a close control and either the counts
// table or a message. The Escape key issues the same dismissal as the close
// control.
func Popup(m popup.Modal) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		dismiss := templ.EscapeString(DismissPath(m.ID))

		var b strings.Builder
		b.WriteString(`<div class="checkouts-overlay"></div>`)
		b.WriteString(`<div class="checkouts-popup" role="dialog" aria-modal="true" data-modal-id="` + templ.EscapeString(m.ID) + `"`)
		b.WriteString(` hx-delete="` + dismiss + `" hx-trigger="keyup[key=='Escape'] from:body" hx-target="` + ModalTarget + `" hx-swap="innerHTML">`)
		b.WriteString(`<button type="button" class="checkouts-close" hx-delete="` + dismiss + `" hx-trigger="click" hx-target="` + ModalTarget + `" hx-swap="innerHTML">Close</button>`)

		writeContent(&b, m)
		b.WriteString(`</div>`)
		return writeString(w, b.String())
	})
}

// Report renders the popup content alone, for contexts without htmx such as
// an email body.
func Report(m popup.Modal) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="checkouts-report">`)
		writeContent(&b, m)
		b.WriteString(`</div>`)
		return writeString(w, b.String())
	})
}

func writeContent(b *strings.Builder, m popup.Modal) {
	if !m.IsTable() {
		b.WriteString(`<p class="checkouts-message">` + templ.EscapeString(m.Message) + `</p>`)
		return
	}
	if m.Period != "" {
		b.WriteString(`<p class="checkouts-period">` + templ.EscapeString(m.Period) + `</p>`)
	}
	b.WriteString(`<table><tr><th>` + popup.HeaderName + `</th><th>` + popup.HeaderCount + `</th></tr>`)
	for _, row := range m.Rows {
		b.WriteString(`<tr><td>` + templ.EscapeString(row.Name) + `</td><td>` + strconv.Itoa(row.CheckOuts) + `</td></tr>`)
	}
	b.WriteString(`</table>`)
}

func writeString(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)
	return err
}
