package checkouts

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codr1/cockpit-checkouts/internal/period"
	"github.com/codr1/cockpit-checkouts/internal/remote"
	"github.com/codr1/cockpit-checkouts/internal/session"
	"github.com/codr1/cockpit-checkouts/internal/smoobu"
)

type fakePage struct {
	label  string
	locale string
}

func (p fakePage) PeriodLabel() (string, bool) { return p.label, p.label != "" }
func (p fakePage) Locale() string              { return p.locale }

type fakeSessions struct {
	tenant string
}

func (f fakeSessions) Resolve(context.Context) (string, bool) { return f.tenant, f.tenant != "" }

type fakeDirectory struct {
	properties map[string]string
	fail       bool
}

func (f fakeDirectory) Properties(context.Context, string) (map[string]string, bool) {
	if f.fail {
		return nil, false
	}
	return f.properties, true
}

type fakeBookings struct {
	bookings []smoobu.Booking
	fail     bool
	calls    int32
	gotFrom  string
	gotTo    string
}

func (f *fakeBookings) Bookings(_ context.Context, _ string, p period.Period) ([]smoobu.Booking, bool) {
	atomic.AddInt32(&f.calls, 1)
	f.gotFrom, f.gotTo = p.FromISO(), p.ToISO()
	if f.fail {
		return nil, false
	}
	return f.bookings, true
}

func newEngine(props map[string]string, b *fakeBookings) *Engine {
	return &Engine{
		Sessions:  fakeSessions{tenant: "t1"},
		Directory: fakeDirectory{properties: props},
		Bookings:  b,
	}
}

func TestCountCheckOutsExcludesEmptyGuestAndOutOfPeriod(t *testing.T) {
	b := &fakeBookings{bookings: []smoobu.Booking{
		{PropertyID: "p1", DepartureDate: "2024-03-15", GuestName: "Bob"},
		{PropertyID: "p2", DepartureDate: "2024-03-01", GuestName: ""},
		{PropertyID: "p1", DepartureDate: "2024-04-01", GuestName: "Alice"},
	}}
	e := newEngine(map[string]string{"p1": "Flat A", "p2": "Flat B"}, b)

	got, ok := e.CountCheckOuts(context.Background(), fakePage{label: "March 2024", locale: "en"})
	if !ok {
		t.Fatal("expected count to succeed")
	}
	want := Counts{{Name: "Flat A", CheckOuts: 1}, {Name: "Flat B", CheckOuts: 0}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if b.gotFrom != "2024-03-01" || b.gotTo != "2024-03-31" {
		t.Fatalf("expected bookings for March 2024, got %s..%s", b.gotFrom, b.gotTo)
	}
}

func TestCountCheckOutsSkipsUnknownProperty(t *testing.T) {
	b := &fakeBookings{bookings: []smoobu.Booking{
		{PropertyID: "ghost", DepartureDate: "2024-03-10", GuestName: "Casper"},
		{PropertyID: "p1", DepartureDate: "2024-03-10T11:00:00", GuestName: "Dana"},
		{PropertyID: "p1", DepartureDate: "2024-03-31", GuestName: "  "},
	}}
	e := newEngine(map[string]string{"p1": "Flat A"}, b)

	got, ok := e.CountCheckOuts(context.Background(), fakePage{label: "March 2024", locale: "en"})
	if !ok {
		t.Fatal("expected unknown property to be skipped, not abort")
	}
	if got.Map()["Flat A"] != 1 || len(got) != 1 {
		t.Fatalf("unexpected counts %v", got)
	}
}

func TestCountCheckOutsZeroBookingsIsAValidTable(t *testing.T) {
	e := newEngine(map[string]string{"p1": "Flat A", "p2": "Flat B"}, &fakeBookings{})

	got, ok := e.CountCheckOuts(context.Background(), fakePage{label: "June 2024", locale: "en"})
	if !ok {
		t.Fatal("expected zero bookings to succeed")
	}
	if len(got) != 2 || got.Total() != 0 {
		t.Fatalf("expected two zero rows, got %v", got)
	}
}

func TestCountCheckOutsAborts(t *testing.T) {
	props := map[string]string{"p1": "Flat A"}
	tests := []struct {
		name         string
		engine       func(b *fakeBookings) *Engine
		page         fakePage
		wantBookings bool
	}{
		{
			name: "no session",
			engine: func(b *fakeBookings) *Engine {
				return &Engine{Sessions: fakeSessions{}, Directory: fakeDirectory{properties: props}, Bookings: b}
			},
			page: fakePage{label: "March 2024", locale: "en"},
		},
		{
			name: "directory failure",
			engine: func(b *fakeBookings) *Engine {
				return &Engine{Sessions: fakeSessions{tenant: "t"}, Directory: fakeDirectory{fail: true}, Bookings: b}
			},
			page: fakePage{label: "March 2024", locale: "en"},
		},
		{
			name: "empty directory",
			engine: func(b *fakeBookings) *Engine {
				return &Engine{Sessions: fakeSessions{tenant: "t"}, Directory: fakeDirectory{properties: map[string]string{}}, Bookings: b}
			},
			page: fakePage{label: "March 2024", locale: "en"},
		},
		{
			name:   "missing label",
			engine: func(b *fakeBookings) *Engine { return newEngine(props, b) },
			page:   fakePage{locale: "en"},
		},
		{
			name:   "unparsable label",
			engine: func(b *fakeBookings) *Engine { return newEngine(props, b) },
			page:   fakePage{label: "Smarch 2024", locale: "en"},
		},
		{
			name: "bookings failure",
			engine: func(b *fakeBookings) *Engine {
				b.fail = true
				return newEngine(props, b)
			},
			page:         fakePage{label: "March 2024", locale: "en"},
			wantBookings: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := &fakeBookings{}
			got, ok := tc.engine(b).CountCheckOuts(context.Background(), tc.page)
			if ok || got != nil {
				t.Fatalf("expected absent result, got %v ok=%v", got, ok)
			}
			called := atomic.LoadInt32(&b.calls) > 0
			if called != tc.wantBookings {
				t.Fatalf("bookings called=%v, want %v", called, tc.wantBookings)
			}
		})
	}
}

func TestCountCheckOutsEmptySessionStore(t *testing.T) {
	e := &Engine{
		Sessions:  session.Resolver{Store: session.NewMemoryStore(), Key: "cockpit.session"},
		Directory: fakeDirectory{properties: map[string]string{"p1": "Flat A"}},
		Bookings:  &fakeBookings{},
	}
	if _, ok := e.CountCheckOuts(context.Background(), fakePage{label: "March 2024", locale: "en"}); ok {
		t.Fatal("expected empty session store to abort")
	}
}

func TestCountCheckOutsFailsWhenALaterPageFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/properties"):
			fmt.Fprint(w, `{"data":[{"id":"p1","attributes":{"name":"Flat A"}}]}`)
		case r.URL.Query().Get("page[number]") == "1":
			fmt.Fprint(w, `{"data":[{"attributes":{"departureDate":"2024-03-02","guestName":"Eve"},"relationships":{"property":{"data":{"id":"p1"}}}}],"meta":{"totalPages":3}}`)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)

	rc, err := remote.New(server.Client(), remote.Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("remote client: %v", err)
	}
	api := smoobu.New(rc, smoobu.Config{
		PropertiesPath: "/users/{tenant}/properties",
		BookingsPath:   "/users/{tenant}/bookings?page[size]={size}&page[number]={page}&filter[from]={from}&filter[to]={to}",
		PageSize:       1,
	})
	e := &Engine{Sessions: fakeSessions{tenant: "t1"}, Directory: api, Bookings: api}

	got, ok := e.CountCheckOuts(context.Background(), fakePage{label: "March 2024", locale: "en"})
	if ok || got != nil {
		t.Fatalf("expected absent result instead of partial count, got %v", got)
	}
}

func TestCountCheckOutsSortsByLocaleCollation(t *testing.T) {
	props := map[string]string{"1": "Ático Centro", "2": "Zócalo", "3": "apartamento", "4": "Bajo"}
	e := newEngine(props, &fakeBookings{})

	got, ok := e.CountCheckOuts(context.Background(), fakePage{label: "marzo 2024", locale: "es"})
	if !ok {
		t.Fatal("expected count to succeed")
	}
	names := make([]string, len(got))
	for i, row := range got {
		names[i] = row.Name
	}
	want := []string{"apartamento", "Ático Centro", "Bajo", "Zócalo"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
}

func TestTallyKeysAreExactlyPropertyNames(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := period.Month(2024, time.February)

	for iter := 0; iter < 50; iter++ {
		directory := make(map[string]string)
		for i := 0; i < rng.Intn(6)+1; i++ {
			directory[fmt.Sprintf("p%d", i)] = fmt.Sprintf("Flat %c", 'A'+rng.Intn(26))
		}

		var bookings []smoobu.Booking
		expected := make(map[string]int)
		for _, name := range directory {
			expected[name] = 0
		}
		for i := 0; i < rng.Intn(20); i++ {
			b := smoobu.Booking{
				PropertyID:    fmt.Sprintf("p%d", rng.Intn(8)),
				DepartureDate: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, rng.Intn(40)-5).Format(period.DateLayout),
			}
			if rng.Intn(3) > 0 {
				b.GuestName = "Guest"
			}
			bookings = append(bookings, b)

			name, known := directory[b.PropertyID]
			if known && p.ContainsDate(b.DepartureDate) && b.GuestName != "" {
				expected[name]++
			}
		}

		got := Tally(directory, bookings, p)
		sortCounts(got, "en")
		if !reflect.DeepEqual(got.Map(), expected) {
			t.Fatalf("iteration %d: expected %v, got %v", iter, expected, got.Map())
		}
		if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Name < got[j].Name }) {
			t.Fatalf("iteration %d: expected rows sorted by name, got %v", iter, got)
		}
	}
}
