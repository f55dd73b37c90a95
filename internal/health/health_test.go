package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/prosodia/internal/lazy"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) result {
	t.Helper()
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return body
}

func TestHealthz_AlwaysReturns200(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "recognizer", Check: func(context.Context) error { return errors.New("loading") }})

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := decode(t, rec); body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "all pass",
			checkers: []Checker{
				{Name: "recognizer", Check: func(context.Context) error { return nil }},
				{Name: "dictionary", Check: func(context.Context) error { return nil }},
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"recognizer": "ok", "dictionary": "ok"},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "recognizer", Check: func(context.Context) error { return errors.New("model missing") }},
				{Name: "dictionary", Check: func(context.Context) error { return nil }},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"recognizer": "fail: model missing", "dictionary": "ok"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			New(tc.checkers...).Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			body := decode(t, rec)
			if body.Status != tc.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tc.wantStatus)
			}
			for name, want := range tc.wantChecks {
				if body.Checks[name] != want {
					t.Errorf("check %q = %q, want %q", name, body.Checks[name], want)
				}
			}
		})
	}
}

func TestStateCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state   lazy.State
		wantErr string
	}{
		{lazy.StateUninitialized, "recognizer is uninitialized"},
		{lazy.StateLoading, "recognizer is loading"},
		{lazy.StateReady, ""},
		{lazy.StateFailed, "recognizer failed to load"},
	}
	for _, tc := range tests {
		t.Run(tc.state.String(), func(t *testing.T) {
			t.Parallel()
			err := StateCheck("recognizer", func() lazy.State { return tc.state }).Check(context.Background())
			switch {
			case tc.wantErr == "" && err != nil:
				t.Errorf("unexpected error: %v", err)
			case tc.wantErr != "" && (err == nil || err.Error() != tc.wantErr):
				t.Errorf("error = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	v := lazy.New("model", func(context.Context) (int, error) { return 1, nil })
	mux := http.NewServeMux()
	New(StateCheck("recognizer", v.State)).Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	get := func(path string) int {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := get("/healthz"); code != http.StatusOK {
		t.Errorf("/healthz = %d", code)
	}
	if code := get("/readyz"); code != http.StatusServiceUnavailable {
		t.Errorf("/readyz before load = %d, want 503", code)
	}
	if _, err := v.Get(context.Background()); err != nil {
		t.Fatal(err)
	}
	if code := get("/readyz"); code != http.StatusOK {
		t.Errorf("/readyz after load = %d, want 200", code)
	}
}
