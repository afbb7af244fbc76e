// cmd/checkouts/count.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/codr1/cockpit-checkouts/internal/checkouts"
	"github.com/codr1/cockpit-checkouts/internal/hostpage"
	"github.com/codr1/cockpit-checkouts/internal/popup"
	checkoutstempl "github.com/codr1/cockpit-checkouts/internal/templates/components/checkouts"
)

func runCount(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("count", flag.ContinueOnError)
	var (
		configPath = fs.String("config", defaultConfigPath, "Path to configuration file")
		label      = fs.String("label", "", `Selected period, e.g. "March 2024" or "2024-03"`)
		pageURL    = fs.String("url", "", "Cockpit page URL; its first path segment selects the locale")
		pagePath   = fs.String("page", "", "Saved cockpit page to read the period from")
		format     = fs.String("format", "text", "Output format (text, html)")
		mailTo     = fs.String("email", "", "Comma-separated recipients of the report (overrides email.recipients)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	if (*label == "") == (*pagePath == "") {
		return fmt.Errorf("exactly one of -label or -page is required")
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	mail, err := a.newMailer(ctx, *mailTo)
	if err != nil {
		return err
	}

	var page checkouts.Page = hostpage.Static{Label: *label, URL: *pageURL}
	if *pagePath != "" {
		doc, err := a.readPage(*pagePath, *pageURL)
		if err != nil {
			return err
		}
		page = doc
	}

	m := a.count(ctx, page)
	if err := writeModal(ctx, out, m, *format); err != nil {
		return err
	}
	if err := mail.send(ctx, m); err != nil {
		return fmt.Errorf("mail report: %w", err)
	}
	if !m.IsTable() {
		return errNoResult
	}
	return nil
}

// count runs the pipeline and shapes the result for display.
func (a *app) count(ctx context.Context, page checkouts.Page) popup.Modal {
	counts, ok := a.engine.CountCheckOuts(ctx, page)
	m := popup.ForCounts(counts, ok)
	if m.IsTable() {
		m.Period, _ = page.PeriodLabel()
	}
	return m
}

func (a *app) readPage(path, pageURL string) (*hostpage.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()
	return hostpage.Parse(f, pageURL, a.selectors())
}

func checkFormat(format string) error {
	switch format {
	case "text", "html":
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func writeModal(ctx context.Context, w io.Writer, m popup.Modal, format string) error {
	if format == "html" {
		if err := checkoutstempl.Popup(m).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	}
	return popup.WriteText(w, m)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
