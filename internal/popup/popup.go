// Package popup holds the single modal a check-out run reports into.
package popup

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/codr1/cockpit-checkouts/internal/checkouts"
)

const (
	MessageFailure = "Could not count check-outs. Check the logs for details."
	MessageEmpty   = "Nothing to show for this month."
	MessageBusy    = "A count is already running. Please wait for it to finish."

	HeaderName  = "Apartment"
	HeaderCount = "Monthly check-outs"
)

// Modal is either a table of counts or a single message.
type Modal struct {
	ID      string
	Period  string
	Rows    checkouts.Counts
	Message string
}

// ForCounts builds the modal for a finished run. ok=false or a table without
// rows become messages.
func ForCounts(counts checkouts.Counts, ok bool) Modal {
	switch {
	case !ok:
		return Modal{Message: MessageFailure}
	case len(counts) == 0:
		return Modal{Message: MessageEmpty}
	default:
		return Modal{Rows: counts}
	}
}

func ForMessage(msg string) Modal { return Modal{Message: msg} }

func (m Modal) IsTable() bool { return m.Message == "" }

// Owner tracks the one open modal. Showing a new modal replaces the old one.
type Owner struct {
	mu      sync.Mutex
	current *Modal
}

// Replace discards any open modal and opens m under a fresh ID.
func (o *Owner) Replace(m Modal) Modal {
	m.ID = uuid.NewString()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = &m
	return m
}

// Dismiss closes the modal with the given ID. Stale IDs are ignored.
func (o *Owner) Dismiss(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || o.current.ID != id {
		return false
	}
	o.current = nil
	return true
}

func (o *Owner) Current() (Modal, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return Modal{}, false
	}
	return *o.current, true
}

// WriteText renders m as an aligned plain-text table.
func WriteText(w io.Writer, m Modal) error {
	if !m.IsTable() {
		_, err := fmt.Fprintln(w, m.Message)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if m.Period != "" {
		fmt.Fprintf(tw, "Period: %s\n", m.Period)
	}
	fmt.Fprintf(tw, "%s\t%s\n", HeaderName, HeaderCount)
	for _, row := range m.Rows {
		fmt.Fprintf(tw, "%s\t%d\n", row.Name, row.CheckOuts)
	}
	return tw.Flush()
}
