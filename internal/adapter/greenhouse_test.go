package adapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ReedRawlings/AIJobs/internal/fetch"
	"github.com/ReedRawlings/AIJobs/internal/model"
)

const greenhouseListPayload = `{
	"jobs": [
		{
			"id": 12345,
			"title": "Software Engineer",
			"location": {"name": "San Francisco, CA"},
			"absolute_url": "https://boards.greenhouse.io/acme/jobs/12345",
			"updated_at": "2026-02-13T10:00:00Z",
			"departments": [{"name": "Engineering"}]
		},
		{
			"id": 67890,
			"title": "Backend Engineer",
			"location": {"name": "Remote, US"},
			"absolute_url": "https://boards.greenhouse.io/acme/jobs/67890",
			"updated_at": "2026-02-13T11:30:00Z",
			"departments": []
		}
	]
}`

const greenhouseDetailPayload = `{
	"id": 12345,
	"content": "&lt;p&gt;Build distributed systems.&lt;/p&gt;",
	"questions": [
		{"label": "Resume", "required": true},
		{"label": "Cover letter", "required": false}
	],
	"pay_input_ranges": [
		{
			"min_cents": 5000000,
			"max_cents": 7500000,
			"currency_type": "USD",
			"title": "NYC Salary Range"
		}
	]
}`

func newGreenhouseTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/boards/acme/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, greenhouseListPayload)
	})
	mux.HandleFunc("/v1/boards/acme/jobs/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, greenhouseDetailPayload)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGreenhouseAcquire_Success(t *testing.T) {
	srv := newGreenhouseTestServer(t)

	a, err := NewGreenhouseAdapter("acme-co", "Acme Corp", "https://boards.greenhouse.io/acme",
		testFetchClient(srv, 1), discardLogger())
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	postings, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(postings))
	}

	p := postings[0]
	if p.JobID != "greenhouse_acme-co_12345" {
		t.Errorf("unexpected job id: %s", p.JobID)
	}
	if p.ExternalID != "12345" {
		t.Errorf("unexpected external id: %s", p.ExternalID)
	}
	if p.Company != "Acme Corp" {
		t.Errorf("unexpected company: %s", p.Company)
	}
	if p.Title != "Software Engineer" {
		t.Errorf("unexpected title: %s", p.Title)
	}
	if p.Team != "Engineering" {
		t.Errorf("unexpected team: %s", p.Team)
	}
	if p.Location != "San Francisco, CA" {
		t.Errorf("unexpected location: %s", p.Location)
	}
	if p.Description != "Build distributed systems." {
		t.Errorf("unexpected description: %q", p.Description)
	}
	if len(p.Requirements) != 1 || p.Requirements[0] != "Resume" {
		t.Errorf("unexpected requirements: %v", p.Requirements)
	}
	if p.SalaryRange != "50000-75000 USD (NYC Salary Range)" {
		t.Errorf("unexpected salary range: %q", p.SalaryRange)
	}
	if p.JobURL != "https://boards.greenhouse.io/acme/jobs/12345" {
		t.Errorf("unexpected job url: %s", p.JobURL)
	}
	if p.Status != "" {
		t.Errorf("adapters must not assign status, got %q", p.Status)
	}
	if p.FirstSeen.IsZero() || !p.FirstSeen.Equal(p.LastSeen) {
		t.Errorf("expected first_seen == last_seen, got %v / %v", p.FirstSeen, p.LastSeen)
	}
	if len(p.RawData) == 0 {
		t.Error("expected raw data to be retained")
	}
}

func TestGreenhouseAcquire_SkipsItemWithoutTitle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/boards/acme/jobs", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"jobs": [
			{"id": 1, "title": "Engineer", "location": {"name": "SF"}},
			{"id": 2, "title": "   "}
		]}`)
	})
	mux.HandleFunc("/v1/boards/acme/jobs/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id": 1, "content": ""}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a, _ := NewGreenhouseAdapter("acme", "Acme", "https://boards.greenhouse.io/acme",
		testFetchClient(srv, 1), discardLogger())

	postings, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected blank-title item to be skipped, got %d postings", len(postings))
	}
}

func TestGreenhouseAcquire_SkipsItemWhenDetailFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/boards/acme/jobs", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"jobs": [
			{"id": 1, "title": "Engineer"},
			{"id": 2, "title": "Designer"}
		]}`)
	})
	mux.HandleFunc("/v1/boards/acme/jobs/1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id": 1, "content": "Ship things."}`)
	})
	mux.HandleFunc("/v1/boards/acme/jobs/2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a, _ := NewGreenhouseAdapter("acme", "Acme", "https://boards.greenhouse.io/acme",
		testFetchClient(srv, 1), discardLogger())

	postings, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("one failed detail call must not fail the batch: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(postings))
	}
	if postings[0].ExternalID != "1" {
		t.Errorf("expected the surviving posting to be id 1, got %s", postings[0].ExternalID)
	}
}

func TestGreenhouseAcquire_ListTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a, _ := NewGreenhouseAdapter("acme", "Acme", "https://boards.greenhouse.io/acme",
		testFetchClient(srv, 1), discardLogger())

	_, err := a.Acquire(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var transportErr *model.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestGreenhouseAcquire_ListDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{not valid json`)
	}))
	defer srv.Close()

	a, _ := NewGreenhouseAdapter("acme", "Acme", "https://boards.greenhouse.io/acme",
		testFetchClient(srv, 1), discardLogger())

	_, err := a.Acquire(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var decodeErr *model.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestNewGreenhouseAdapter_RejectsMalformedURL(t *testing.T) {
	_, err := NewGreenhouseAdapter("acme", "Acme", "https://example.com/careers", nil, discardLogger())
	if err == nil {
		t.Fatal("expected constructor error for non-greenhouse URL")
	}
}

// --- helpers shared by the adapter tests ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// roundTripFunc adapts a function into an http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// testFetchClient builds a fetch.Client that rewrites every request to
// the test server, so adapters can keep their real API URLs.
func testFetchClient(srv *httptest.Server, maxAttempts int) *fetch.Client {
	return fetch.New(fetch.Config{
		MaxAttempts: maxAttempts,
		BackoffUnit: time.Millisecond,
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			req.URL.Scheme = "http"
			req.URL.Host = srv.Listener.Addr().String()
			return http.DefaultTransport.RoundTrip(req)
		}),
	}, discardLogger())
}
