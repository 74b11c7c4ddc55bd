package sites

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFlareSolverSolve(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req flareSolverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Cmd != "request.get" || req.URL != "https://www.furaffinity.net/view/1/" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "ok",
			"solution": {"cookies": [
				{"name": "cf_clearance", "value": "solved"},
				{"name": "session", "value": "abc"}
			]}
		}`))
	}))
	defer server.Close()

	solver := NewFlareSolver(nil, server.URL)

	cookies, err := solver.Solve(context.Background(), "https://www.furaffinity.net/view/1/")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cookies["cf_clearance"] != "solved" || cookies["session"] != "abc" {
		t.Fatalf("unexpected cookies: %v", cookies)
	}
}

func TestFlareSolverBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "error", "solution": {}}`))
	}))
	defer server.Close()

	solver := NewFlareSolver(nil, server.URL)

	if _, err := solver.Solve(context.Background(), "https://www.furaffinity.net/view/1/"); err == nil {
		t.Fatal("expected an error for a failed solve")
	}
}

func TestFlareSolverNoEndpoint(t *testing.T) {
	t.Parallel()

	solver := NewFlareSolver(nil, "")

	if _, err := solver.Solve(context.Background(), "https://www.furaffinity.net/view/1/"); err == nil {
		t.Fatal("expected an error when no endpoint is configured")
	}
}
