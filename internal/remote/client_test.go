package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func newTestClient(t *testing.T, rt roundTripperFunc) *Client {
	t.Helper()
	c, err := New(rt, Config{BaseURL: "https://cockpit.test", Cookie: "sid=1"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestFetchJSONSuccess(t *testing.T) {
	var gotReq *http.Request
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		gotReq = req
		return jsonResponse(http.StatusOK, `{"name":"Flat A"}`), nil
	})

	var out struct {
		Name string `json:"name"`
	}
	if !c.FetchJSON(context.Background(), "/api/v1/users/7/properties?sort=name", &out) {
		t.Fatal("expected fetch to succeed")
	}
	if out.Name != "Flat A" {
		t.Fatalf("expected Flat A, got %q", out.Name)
	}
	if gotReq.URL.String() != "https://cockpit.test/api/v1/users/7/properties?sort=name" {
		t.Fatalf("unexpected url %s", gotReq.URL)
	}
	if gotReq.Method != http.MethodGet {
		t.Fatalf("expected GET, got %s", gotReq.Method)
	}
	if gotReq.Header.Get("Accept") != "application/json" {
		t.Fatalf("expected json accept header, got %q", gotReq.Header.Get("Accept"))
	}
	if gotReq.Header.Get("Cookie") != "sid=1" {
		t.Fatalf("expected forwarded cookie, got %q", gotReq.Header.Get("Cookie"))
	}
}

func TestFetchJSONSoftFailures(t *testing.T) {
	tests := []struct {
		name string
		rt   roundTripperFunc
	}{
		{
			name: "transport error",
			rt: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			},
		},
		{
			name: "server error",
			rt: func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusInternalServerError, "boom"), nil
			},
		},
		{
			name: "not found",
			rt: func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusNotFound, ""), nil
			},
		},
		{
			name: "malformed json",
			rt: func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{"data": [`), nil
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.rt)
			var out map[string]any
			if c.FetchJSON(context.Background(), "/x", &out) {
				t.Fatal("expected fetch to fail")
			}
		})
	}
}

func TestFetchTyped(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `[1,2,3]`), nil
	})

	got, ok := Fetch[[]int](context.Background(), c, "/numbers")
	if !ok {
		t.Fatal("expected typed fetch to succeed")
	}
	if len(got) != 3 || got[2] != 3 {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestResolveKeepsBasePathAndAbsoluteURLs(t *testing.T) {
	c, err := New(nil, Config{BaseURL: "https://cockpit.test/es/"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	got, err := c.Resolve("/api/bookings?page[size]=5")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "https://cockpit.test/es/api/bookings?page[size]=5" {
		t.Fatalf("unexpected resolved url %s", got)
	}

	abs, err := c.Resolve("https://other.test/x")
	if err != nil {
		t.Fatalf("resolve absolute: %v", err)
	}
	if abs != "https://other.test/x" {
		t.Fatalf("expected absolute url unchanged, got %s", abs)
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{StatusCode: 403, Body: "forbidden"}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "forbidden") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestWalkAccumulatesAllPages(t *testing.T) {
	var mu sync.Mutex
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requested = append(requested, r.URL.Query().Get("page"))
		mu.Unlock()
		page := r.URL.Query().Get("page")
		fmt.Fprintf(w, `{"data":[{"n":"%s-a"},{"n":"%s-b"}],"meta":{"totalPages":3}}`, page, page)
	}))
	t.Cleanup(server.Close)

	c, err := New(server.Client(), Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	type record struct {
		N string `json:"n"`
	}
	got, ok := Walk[record](context.Background(), c, PagedEndpoint{Template: "/items?size={size}&page={page}", Size: 2})
	if !ok {
		t.Fatal("expected walk to succeed")
	}
	if len(got) != 6 {
		t.Fatalf("expected 6 records, got %d", len(got))
	}
	if got[0].N != "1-a" || got[5].N != "3-b" {
		t.Fatalf("unexpected order %v", got)
	}
	if strings.Join(requested, ",") != "1,2,3" {
		t.Fatalf("expected pages 1,2,3 exactly, got %v", requested)
	}
}

func TestWalkDefaultsToSinglePageWithoutMeta(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusOK, `{"data":[{"n":"only"}]}`), nil
	})

	got, ok := Walk[map[string]string](context.Background(), c, PagedEndpoint{Template: "/items?page={page}", Size: 10})
	if !ok {
		t.Fatal("expected walk to succeed")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one request, got %d", calls)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
}

func TestWalkKeepsReportedCountWhenLaterPageOmitsMeta(t *testing.T) {
	var requested []string
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		page := req.URL.Query().Get("page")
		requested = append(requested, page)
		if page == "1" {
			return jsonResponse(http.StatusOK, `{"data":[1],"meta":{"totalPages":3}}`), nil
		}
		return jsonResponse(http.StatusOK, fmt.Sprintf(`{"data":[%s]}`, page)), nil
	})

	got, ok := Walk[int](context.Background(), c, PagedEndpoint{Template: "/items?page={page}", Size: 1})
	if !ok {
		t.Fatal("expected walk to succeed")
	}
	if strings.Join(requested, ",") != "1,2,3" {
		t.Fatalf("expected pages 1,2,3, got %v", requested)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("expected records [1 2 3], got %v", got)
	}
}

func TestWalkEmptyCollectionIsNotAFailure(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"data":[],"meta":{"totalPages":0}}`), nil
	})

	got, ok := Walk[map[string]string](context.Background(), c, PagedEndpoint{Template: "/items?page={page}", Size: 10})
	if !ok {
		t.Fatal("expected empty walk to succeed")
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestWalkFailsWithoutPartialResults(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.RawQuery, "page=2") {
			return jsonResponse(http.StatusBadGateway, "upstream"), nil
		}
		return jsonResponse(http.StatusOK, `{"data":[{"n":"x"}],"meta":{"totalPages":3}}`), nil
	})

	got, ok := Walk[map[string]string](context.Background(), c, PagedEndpoint{Template: "/items?page={page}", Size: 1})
	if ok {
		t.Fatal("expected walk to fail")
	}
	if got != nil {
		t.Fatalf("expected no partial records, got %v", got)
	}
}

func TestPagedEndpointURL(t *testing.T) {
	e := PagedEndpoint{Template: "/b?page[size]={size}&page[number]={page}", Size: 50}
	if got := e.URL(4); got != "/b?page[size]=50&page[number]=4" {
		t.Fatalf("unexpected url %s", got)
	}
}
