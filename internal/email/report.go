package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/cockpit-checkouts/internal/popup"
	checkoutstempl "github.com/codr1/cockpit-checkouts/internal/templates/components/checkouts"
)

const reportSendTimeout = 10 * time.Second

// BuildReport renders m as an email without a recipient.
func BuildReport(ctx context.Context, m popup.Modal) (Message, error) {
	subject := popup.HeaderCount
	switch {
	case !m.IsTable():
		subject += ": not available"
	case m.Period != "":
		subject += ": " + m.Period
	}

	var text strings.Builder
	if err := popup.WriteText(&text, m); err != nil {
		return Message{}, fmt.Errorf("render text report: %w", err)
	}
	if m.IsTable() {
		fmt.Fprintf(&text, "\nTotal: %d\n", m.Rows.Total())
	}

	var html strings.Builder
	if err := checkoutstempl.Report(m).Render(ctx, &html); err != nil {
		return Message{}, fmt.Errorf("render html report: %w", err)
	}

	return Message{Subject: subject, Text: text.String(), HTML: html.String()}, nil
}

// SendReport mails m to every recipient. Failures are collected; one bad
// address does not stop the others.
func SendReport(ctx context.Context, sender Sender, recipients []string, m popup.Modal) error {
	if sender == nil || len(recipients) == 0 {
		return nil
	}

	report, err := BuildReport(ctx, m)
	if err != nil {
		return err
	}

	sendCtx, cancel := newEmailContext(ctx, reportSendTimeout)
	defer cancel()

	var errs []error
	for _, recipient := range recipients {
		recipient = strings.TrimSpace(recipient)
		if recipient == "" {
			continue
		}
		msg := report
		msg.To = recipient
		if err := sender.Send(sendCtx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", recipient, err))
			continue
		}
		log.Ctx(ctx).Info().Str("recipient", recipient).Str("subject", msg.Subject).Msg("Check-out report sent")
	}
	return errors.Join(errs...)
}

// ParseRecipients splits a comma-separated address list.
func ParseRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
