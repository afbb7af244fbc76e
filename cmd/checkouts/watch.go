// cmd/checkouts/watch.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/cockpit-checkouts/internal/hostpage"
	"github.com/codr1/cockpit-checkouts/internal/pagewatch"
	"github.com/codr1/cockpit-checkouts/internal/popup"
	"github.com/codr1/cockpit-checkouts/internal/scheduler"
)

func runWatch(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	var (
		configPath = fs.String("config", defaultConfigPath, "Path to configuration file")
		pagePath   = fs.String("page", "", "Saved cockpit page to watch (required)")
		pageURL    = fs.String("url", "", "Cockpit page URL; defaults to the page's canonical link")
		format     = fs.String("format", "text", "Output format (text, html)")
		refresh    = fs.String("refresh", "", `Also recount on this cron schedule, e.g. "*/30 * * * *"`)
		mailTo     = fs.String("email", "", "Comma-separated recipients of each report (overrides email.recipients)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}
	if *pagePath == "" {
		return fmt.Errorf("-page is required")
	}
	if *refresh != "" {
		if err := scheduler.ValidateCron(*refresh); err != nil {
			return err
		}
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

	changes, err := pagewatch.FileChanges(ctx, *pagePath)
	if err != nil {
		return err
	}

	w := &watcher{
		app:      a,
		pagePath: *pagePath,
		pageURL:  *pageURL,
		format:   *format,
		out:      out,
		mail:     mail,
		logger:   log.Ctx(ctx).With().Str("page", *pagePath).Logger(),
	}

	w.logger.Info().Msg("Waiting for the trigger location")
	if err := pagewatch.WaitFor(ctx, changes, func() bool {
		return w.reload() && w.hasTrigger()
	}); err != nil {
		return ignoreCanceled(err)
	}

	if *refresh != "" {
		sched, err := scheduler.New()
		if err != nil {
			return err
		}
		if _, err := sched.AddJob("checkouts_refresh", *refresh, func() {
			if ctx.Err() == nil {
				w.run(ctx, "schedule")
			}
		}); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	err = pagewatch.OnURLChange(ctx, changes,
		func() (string, bool) {
			w.reload()
			return w.state()
		},
		func(string) { w.run(ctx, "url_change") },
	)
	return ignoreCanceled(err)
}

// watcher tracks the last readable snapshot of a saved page. Runs are
// serialized, so a scheduled recount never overlaps one started by a URL
// change.
type watcher struct {
	app      *app
	pagePath string
	pageURL  string
	format   string
	out      io.Writer
	mail     *mailer
	logger   zerolog.Logger
	owner    popup.Owner

	mu  sync.Mutex
	doc *hostpage.Document
}

// reload rereads the snapshot. An unreadable file keeps the previous one.
func (w *watcher) reload() bool {
	doc, err := w.app.readPage(w.pagePath, w.pageURL)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.logger.Debug().Err(err).Msg("Page not readable")
	} else {
		w.doc = doc
	}
	return w.doc != nil
}

// state reports the snapshot's URL and whether the trigger location is in it.
func (w *watcher) state() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.doc == nil {
		return "", false
	}
	return w.doc.URL(), w.doc.HasTrigger()
}

func (w *watcher) hasTrigger() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc != nil && w.doc.HasTrigger()
}

func (w *watcher) run(ctx context.Context, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	logger := w.logger.With().Str("reason", reason).Logger()
	if w.doc == nil || !w.doc.HasTrigger() {
		logger.Info().Msg("Trigger location gone; skipping run")
		return
	}

	m := w.owner.Replace(w.app.count(ctx, w.doc))
	logger.Info().
		Str("url", w.doc.URL()).
		Str("modal_id", m.ID).
		Bool("table", m.IsTable()).
		Msg("Check-out run finished")
	if err := writeModal(ctx, w.out, m, w.format); err != nil {
		logger.Error().Err(err).Msg("Failed to write result")
	}
	if err := w.mail.send(ctx, m); err != nil {
		logger.Error().Err(err).Msg("Failed to mail report")
	}
}
