// cmd/checkouts/app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/cockpit-checkouts/internal/checkouts"
	"github.com/codr1/cockpit-checkouts/internal/config"
	"github.com/codr1/cockpit-checkouts/internal/db"
	"github.com/codr1/cockpit-checkouts/internal/email"
	"github.com/codr1/cockpit-checkouts/internal/hostpage"
	"github.com/codr1/cockpit-checkouts/internal/popup"
	"github.com/codr1/cockpit-checkouts/internal/remote"
	"github.com/codr1/cockpit-checkouts/internal/session"
	"github.com/codr1/cockpit-checkouts/internal/smoobu"
)

// errNoResult marks a run that produced a message instead of a table.
var errNoResult = errors.New("no check-out table")

type app struct {
	cfg    *config.Config
	store  *db.DB
	engine *checkouts.Engine
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	setupLogger(cfg.App.Environment)
	return cfg, nil
}

// openStore loads configuration and opens the local session store only.
func openStore(configPath string) (*config.Config, *db.DB, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := db.New(cfg.Session.Filename)
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}
	return cfg, store, nil
}

// newApp wires the full pipeline from configuration.
func newApp(configPath string) (*app, error) {
	cfg, store, err := openStore(configPath)
	if err != nil {
		return nil, err
	}

	rc, err := remote.New(&http.Client{}, remote.Config{
		BaseURL: cfg.Smoobu.BaseURL,
		Cookie:  cfg.Smoobu.Cookie,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create remote client: %w", err)
	}
	api := smoobu.New(rc, smoobu.Config{
		PropertiesPath: cfg.Smoobu.PropertiesPath,
		BookingsPath:   cfg.Smoobu.BookingsPath,
		PageSize:       cfg.Smoobu.PageSize,
	})

	log.Debug().
		Str("base_url", cfg.Smoobu.BaseURL).
		Str("session_file", cfg.Session.Filename).
		Bool("cookie", cfg.Smoobu.Cookie != "").
		Msg("Pipeline configured")

	return &app{
		cfg:   cfg,
		store: store,
		engine: &checkouts.Engine{
			Sessions:  session.Resolver{Store: store, Key: cfg.Session.Key},
			Directory: api,
			Bookings:  api,
		},
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) selectors() hostpage.Selectors {
	return hostpage.Selectors{
		Period:  a.cfg.Page.PeriodSelector,
		Trigger: a.cfg.Page.TriggerSelector,
	}
}

// mailer delivers finished runs to a fixed recipient list.
type mailer struct {
	sender     email.Sender
	recipients []string
}

// newMailer returns nil when no recipients are requested. override, a
// comma-separated list, replaces the configured recipients.
func (a *app) newMailer(ctx context.Context, override string) (*mailer, error) {
	recipients := email.ParseRecipients(override)
	if len(recipients) == 0 {
		recipients = a.cfg.Email.Recipients
	}
	if len(recipients) == 0 {
		return nil, nil
	}
	if a.cfg.Email.Sender == "" {
		return nil, fmt.Errorf("email.sender must be configured to mail reports")
	}

	client, err := email.NewSESClient(ctx,
		a.cfg.Email.AccessKeyID,
		a.cfg.Email.SecretAccessKey,
		a.cfg.Email.Region,
		a.cfg.Email.Sender,
	)
	if err != nil {
		return nil, err
	}
	return &mailer{sender: client, recipients: recipients}, nil
}

func (m *mailer) send(ctx context.Context, modal popup.Modal) error {
	if m == nil {
		return nil
	}
	return email.SendReport(ctx, m.sender, m.recipients, modal)
}
