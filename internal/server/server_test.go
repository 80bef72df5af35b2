package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/papapumpkin/linkrank/internal/engine"
	"github.com/papapumpkin/linkrank/internal/rank"
	"github.com/papapumpkin/linkrank/internal/report"
	"github.com/papapumpkin/linkrank/internal/store"
)

// testServer returns a Server backed by a temporary store.
func testServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	defaults := engine.DefaultRequest()
	defaults.Samples = 2000
	defaults.Seed = 1
	return New(Options{
		Defaults:  defaults,
		Limits:    engine.Limits{MaxSamples: 100_000, MaxIterations: 10_000},
		BodyLimit: "64K",
	}, st, log)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()
	rec := do(t, testServer(t), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode[map[string]string](t, rec); got["status"] != "ok" {
		t.Errorf("body = %v", got)
	}
}

func TestRank_Graph(t *testing.T) {
	t.Parallel()
	s := testServer(t)
	body := `{"corpus":"tri","method":"iterate","graph":{"a":["b"],"b":["c"],"c":["a"]}}`

	rec := do(t, s, http.MethodPost, "/rank", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	rep := decode[report.Report](t, rec)
	if rep.Corpus != "tri" || rep.Pages != 3 {
		t.Errorf("unexpected report header %+v", rep)
	}
	if rep.Damping != 0.85 {
		t.Errorf("Damping = %v, want server default 0.85", rep.Damping)
	}
	sec, ok := rep.Section(report.MethodIterate)
	if !ok || len(rep.Sections) != 1 {
		t.Fatalf("sections = %+v", rep.Sections)
	}
	for _, e := range sec.Ranks {
		if math.Abs(e.Rank-1.0/3) > 1e-9 {
			t.Errorf("%s = %v, want 1/3", e.Page, e.Rank)
		}
	}
	if rep.RunID != "" {
		t.Errorf("unsaved run has RunID %q", rep.RunID)
	}
}

func TestRank_SaveAndFetch(t *testing.T) {
	t.Parallel()
	s := testServer(t)
	body := `{"corpus":"edges","edges":"a b\nb a\n","save":true,"samples":500}`

	rec := do(t, s, http.MethodPost, "/rank", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	rep := decode[report.Report](t, rec)
	if rep.RunID == "" {
		t.Fatal("saved run has no RunID")
	}
	sample, ok := rep.Section(report.MethodSample)
	if !ok || sample.Samples != 500 {
		t.Errorf("sample section = %+v, want 500 samples", sample)
	}

	rec = do(t, s, http.MethodGet, "/runs", "")
	runs := decode[[]store.Summary](t, rec)
	if len(runs) != 1 || runs[0].ID != rep.RunID {
		t.Fatalf("runs = %+v, want the saved run", runs)
	}

	rec = do(t, s, http.MethodGet, "/runs/"+rep.RunID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[report.Report](t, rec)
	if got.Corpus != "edges" || len(got.Sections) != 2 {
		t.Errorf("fetched report = %+v", got)
	}
}

func TestRank_Errors(t *testing.T) {
	t.Parallel()
	s := testServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"no graph", http.MethodPost, "/rank", `{"corpus":"x"}`, http.StatusBadRequest},
		{"unknown page", http.MethodPost, "/rank", `{"graph":{"a":["b"]}}`, http.StatusBadRequest},
		{"self link", http.MethodPost, "/rank", `{"graph":{"a":["a"]}}`, http.StatusBadRequest},
		{"bad damping", http.MethodPost, "/rank", `{"graph":{"a":[]},"damping":2}`, http.StatusBadRequest},
		{"bad method", http.MethodPost, "/rank", `{"graph":{"a":[]},"method":"x"}`, http.StatusBadRequest},
		{"malformed edges", http.MethodPost, "/rank", `{"edges":"a b c"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/rank", `{"graph":`, http.StatusBadRequest},
		{"capped", http.MethodPost, "/rank", `{"edges":"a b\nb c\nc a\na c","method":"iterate","threshold":1e-15,"max_iterations":1}`, http.StatusUnprocessableEntity},
		{"missing run", http.MethodGet, "/runs/nope", "", http.StatusNotFound},
		{"bad limit", http.MethodGet, "/runs?limit=-2", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := do(t, s, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			if got := decode[map[string]string](t, rec); got["error"] == "" {
				t.Errorf("missing error message in %s", rec.Body)
			}
		})
	}
}

func TestRank_Limits(t *testing.T) {
	t.Parallel()
	s := testServer(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"samples", `{"graph":{"a":["b"],"b":["a"]},"samples":1000000000000}`, "samples"},
		{"iterations", `{"graph":{"a":["b"],"b":["a"]},"method":"iterate","max_iterations":20000}`, "max_iterations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/rank", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
			if msg := decode[map[string]string](t, rec)["error"]; !strings.Contains(msg, tt.field) {
				t.Errorf("error %q does not name %s", msg, tt.field)
			}
		})
	}

	big := fmt.Sprintf(`{"edges":%q}`, strings.Repeat("a b\n", 40_000))
	if rec := do(t, s, http.MethodPost, "/rank", big); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body status = %d, want 413", rec.Code)
	}
}

func TestNoHistory(t *testing.T) {
	t.Parallel()
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := New(Options{Defaults: engine.DefaultRequest()}, nil, log)

	if rec := do(t, s, http.MethodGet, "/runs", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET /runs status = %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/rank", `{"graph":{"a":[]},"save":true}`); rec.Code != http.StatusConflict {
		t.Errorf("save without history status = %d, want 409", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", store.ErrRunNotFound), http.StatusNotFound},
		{&rank.ConvergenceTimeoutError{Iterations: 3}, http.StatusUnprocessableEntity},
		{&rank.InvalidParameterError{Name: "damping"}, http.StatusBadRequest},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
