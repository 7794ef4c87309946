package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubProvider struct {
	counters  map[string]int64
	summaries map[string]Summary
	err       error
}

func (s *stubProvider) Snapshot(context.Context) (map[string]int64, map[string]Summary, error) {
	return s.counters, s.summaries, s.err
}

func TestHandlerWritesSnapshot(t *testing.T) {
	p := &stubProvider{
		counters:  map[string]int64{CounterSharesCreated: 7},
		summaries: map[string]Summary{SummaryJanitorDeletedPerCycle: {Count: 2, Sum: 5, Min: 1, Max: 4}},
	}
	rr := httptest.NewRecorder()
	Handler(p, "")(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp struct {
		Counters  map[string]int64   `json:"counters"`
		Summaries map[string]Summary `json:"summaries"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Counters[CounterSharesCreated] != 7 {
		t.Fatalf("counter mismatch: %+v", resp.Counters)
	}
	if s := resp.Summaries[SummaryJanitorDeletedPerCycle]; s.Count != 2 || s.Max != 4 {
		t.Fatalf("summary mismatch: %+v", s)
	}
}

func TestHandlerTokenRequired(t *testing.T) {
	p := &stubProvider{counters: map[string]int64{}}
	h := Handler(p, "sekrit")

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	h(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d, want 401", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rr = httptest.NewRecorder()
	h(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d, want 200", rr.Code)
	}
}

func TestHandlerSnapshotFailure(t *testing.T) {
	p := &stubProvider{err: errors.New("db down")}
	rr := httptest.NewRecorder()
	Handler(p, "")(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}
