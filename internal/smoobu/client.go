// Package smoobu binds the cockpit's properties and bookings collections.
package smoobu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codr1/cockpit-checkouts/internal/period"
	"github.com/codr1/cockpit-checkouts/internal/remote"
)

// Booking is the part of a reservation needed to count check-outs.
type Booking struct {
	PropertyID    string
	DepartureDate string
	GuestName     string
}

// Config holds the tenant-scoped endpoint templates.
type Config struct {
	// PropertiesPath must contain {tenant}.
	PropertiesPath string
	// BookingsPath must contain {tenant}, {page}, {size}, {from} and {to}.
	BookingsPath string
	PageSize     int
}

type Client struct {
	remote *remote.Client
	cfg    Config
}

func New(rc *remote.Client, cfg Config) *Client {
	return &Client{remote: rc, cfg: cfg}
}

// Properties returns the tenant's property directory as id -> name.
// Entries without an id or name are dropped.
func (c *Client) Properties(ctx context.Context, tenant string) (map[string]string, bool) {
	target := expand(c.cfg.PropertiesPath, map[string]string{"{tenant}": tenant})
	resp, ok := remote.Fetch[propertiesResponse](ctx, c.remote, target)
	if !ok {
		return nil, false
	}

	directory := make(map[string]string, len(resp.Data))
	for _, p := range resp.Data {
		name := strings.TrimSpace(p.Attributes.Name)
		if p.ID == "" || name == "" {
			log.Ctx(ctx).Debug().Str("property_id", string(p.ID)).Msg("Skipping property without id or name")
			continue
		}
		directory[string(p.ID)] = name
	}
	return directory, true
}

// Bookings walks every page of bookings filtered to the period.
func (c *Client) Bookings(ctx context.Context, tenant string, p period.Period) ([]Booking, bool) {
	template := expand(c.cfg.BookingsPath, map[string]string{
		"{tenant}": tenant,
		"{from}":   p.FromISO(),
		"{to}":     p.ToISO(),
	})
	records, ok := remote.Walk[bookingResource](ctx, c.remote, remote.PagedEndpoint{
		Template: template,
		Size:     c.cfg.PageSize,
	})
	if !ok {
		return nil, false
	}

	bookings := make([]Booking, 0, len(records))
	for _, r := range records {
		bookings = append(bookings, Booking{
			PropertyID:    string(r.Relationships.Property.Data.ID),
			DepartureDate: r.Attributes.DepartureDate,
			GuestName:     r.Attributes.GuestName,
		})
	}
	return bookings, true
}

// expand replaces placeholders with path-escaped values.
func expand(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for placeholder, value := range values {
		pairs = append(pairs, placeholder, url.PathEscape(value))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

type propertiesResponse struct {
	Data []struct {
		ID         ID `json:"id"`
		Attributes struct {
			Name string `json:"name"`
		} `json:"attributes"`
	} `json:"data"`
}

type bookingResource struct {
	Attributes struct {
		DepartureDate string `json:"departureDate"`
		GuestName     string `json:"guestName"`
	} `json:"attributes"`
	Relationships struct {
		Property struct {
			Data struct {
				ID ID `json:"id"`
			} `json:"data"`
		} `json:"property"`
	} `json:"relationships"`
}

// ID accepts identifiers encoded as JSON strings or numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}
