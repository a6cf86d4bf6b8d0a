package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, source MessageSource) (*Server, *sql.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewServer(db, source, stubClassifier{}), db
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w, decoded
}

func TestGetEmailsRunsPollAndReturnsSorted(t *testing.T) {
	source := &fakeSource{candidates: []InboundEmail{
		candidate("1", "Support needed", "a calm question"),
		candidate("2", "Urgent outage", "everything is down, urgent"),
	}}
	s, _ := newTestServer(t, source)
	router := s.Router()

	w, resp := doJSON(t, router, http.MethodGet, "/api/emails", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, hasErr := resp["error"]; hasErr {
		t.Fatalf("unexpected error field: %v", resp["error"])
	}

	emails, ok := resp["emails"].([]any)
	if !ok || len(emails) != 2 {
		t.Fatalf("expected 2 emails, got %v", resp["emails"])
	}
	first := emails[0].(map[string]any)
	if first["urgency"] != UrgencyUrgent {
		t.Fatalf("expected urgent email first, got %v", first["urgency"])
	}

	stats := resp["stats"].(map[string]any)
	if stats["total_received"].(float64) != 2 {
		t.Fatalf("expected total_received=2, got %v", stats["total_received"])
	}
}

func TestGetEmailsFallsBackToStaleDataOnCycleError(t *testing.T) {
	source := &fakeSource{}
	db := newTestDB(t)
	s := NewServer(db, source, stubClassifier{})

	if err := UpsertEmail(db, testEmail("9")); err != nil {
		t.Fatalf("seed email: %v", err)
	}
	// Closing the db fails the cycle at the persistence layer. The handler
	// must still answer 200 with an error field.
	_ = db.Close()

	w, resp := doJSON(t, s.Router(), http.MethodGet, "/api/emails", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from guard, got %d", w.Code)
	}
	if resp["error"] == nil || resp["error"] == "" {
		t.Fatal("expected error field in fallback response")
	}
	if _, ok := resp["emails"]; !ok {
		t.Fatal("expected emails field in fallback response")
	}
	if _, ok := resp["stats"]; !ok {
		t.Fatal("expected stats field in fallback response")
	}
}

func TestUpdateStatusTransitionsCounters(t *testing.T) {
	source := &fakeSource{candidates: []InboundEmail{
		candidate("1", "Support needed", "please help"),
	}}
	s, db := newTestServer(t, source)
	router := s.Router()

	// Ingest first.
	doJSON(t, router, http.MethodGet, "/api/emails", nil)

	_, resp := doJSON(t, router, http.MethodPost, "/api/emails/1/update", statusUpdateRequest{Status: StatusResolved})
	if resp["success"] != true {
		t.Fatalf("expected success, got %v", resp)
	}

	stats, err := LoadLatestStats(db)
	if err != nil {
		t.Fatalf("LoadLatestStats failed: %v", err)
	}
	if stats.Pending != 0 || stats.Resolved != 1 {
		t.Fatalf("expected pending=0 resolved=1, got %+v", stats)
	}
	if len(source.marked) != 1 || source.marked[0] != "1" {
		t.Fatalf("expected message marked processed, got %v", source.marked)
	}

	// Reverse transition restores the counts.
	_, resp = doJSON(t, router, http.MethodPost, "/api/emails/1/update", statusUpdateRequest{Status: StatusPending})
	if resp["success"] != true {
		t.Fatalf("expected success, got %v", resp)
	}
	stats, err = LoadLatestStats(db)
	if err != nil {
		t.Fatalf("LoadLatestStats failed: %v", err)
	}
	if stats.Pending != 1 || stats.Resolved != 0 {
		t.Fatalf("expected counts restored, got %+v", stats)
	}
}

func TestUpdateStatusUnknownEmail(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{})

	_, resp := doJSON(t, s.Router(), http.MethodPost, "/api/emails/999/update", statusUpdateRequest{Status: StatusResolved})
	if resp["success"] != false {
		t.Fatalf("expected success=false, got %v", resp)
	}
	if resp["error"] != "Email not found" {
		t.Fatalf("expected 'Email not found', got %v", resp["error"])
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{})

	_, resp := doJSON(t, s.Router(), http.MethodPost, "/api/emails/1/update", statusUpdateRequest{Status: "Closed"})
	if resp["success"] != false {
		t.Fatalf("expected success=false for unknown status, got %v", resp)
	}
}

func TestUpdateResponseText(t *testing.T) {
	s, db := newTestServer(t, &fakeSource{})
	if err := UpsertEmail(db, testEmail("3")); err != nil {
		t.Fatalf("seed email: %v", err)
	}

	_, resp := doJSON(t, s.Router(), http.MethodPost, "/api/emails/3/response", responseUpdateRequest{Response: "Rewritten by operator"})
	if resp["success"] != true {
		t.Fatalf("expected success, got %v", resp)
	}

	got, err := GetEmailByID(db, "3")
	if err != nil {
		t.Fatalf("GetEmailByID failed: %v", err)
	}
	if got.AIResponse != "Rewritten by operator" {
		t.Fatalf("expected stored response text, got %q", got.AIResponse)
	}
}

func TestSendResponseResolvesOnSuccess(t *testing.T) {
	source := &fakeSource{sendOK: true}
	s, db := newTestServer(t, source)

	seed := testEmail("8")
	if err := UpsertEmail(db, seed); err != nil {
		t.Fatalf("seed email: %v", err)
	}
	initial := NewEmailStats()
	initial.TotalReceived = 1
	initial.Pending = 1
	if err := AppendStats(db, initial); err != nil {
		t.Fatalf("seed stats: %v", err)
	}

	_, resp := doJSON(t, s.Router(), http.MethodPost, "/api/emails/8/send", responseUpdateRequest{Response: "Final answer"})
	if resp["success"] != true {
		t.Fatalf("expected success, got %v", resp)
	}

	if len(source.sent) != 1 {
		t.Fatalf("expected one reply sent, got %d", len(source.sent))
	}
	sent := source.sent[0]
	if sent.To != "alice@example.com" {
		t.Fatalf("expected recipient extracted from sender, got %q", sent.To)
	}
	if sent.Subject != "Re: Support request" {
		t.Fatalf("expected Re: subject, got %q", sent.Subject)
	}
	if sent.InReplyTo != "8" {
		t.Fatalf("expected threading on original id, got %q", sent.InReplyTo)
	}

	got, err := GetEmailByID(db, "8")
	if err != nil {
		t.Fatalf("GetEmailByID failed: %v", err)
	}
	if got.Status != StatusResolved {
		t.Fatalf("expected Resolved after send, got %s", got.Status)
	}

	stats, err := LoadLatestStats(db)
	if err != nil {
		t.Fatalf("LoadLatestStats failed: %v", err)
	}
	if stats.Pending != 0 || stats.Resolved != 1 {
		t.Fatalf("expected pending=0 resolved=1, got %+v", stats)
	}
}

func TestSendResponseFailureLeavesPending(t *testing.T) {
	source := &fakeSource{sendOK: false}
	s, db := newTestServer(t, source)
	if err := UpsertEmail(db, testEmail("8")); err != nil {
		t.Fatalf("seed email: %v", err)
	}

	_, resp := doJSON(t, s.Router(), http.MethodPost, "/api/emails/8/send", responseUpdateRequest{Response: "x"})
	if resp["success"] != false {
		t.Fatalf("expected success=false, got %v", resp)
	}

	got, err := GetEmailByID(db, "8")
	if err != nil {
		t.Fatalf("GetEmailByID failed: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("expected status unchanged on failed send, got %s", got.Status)
	}
}

func TestStatsEndpoints(t *testing.T) {
	s, db := newTestServer(t, &fakeSource{})
	router := s.Router()

	// Empty store: zero-valued stats ...
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var stats EmailStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalReceived != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}

	// ... and an empty history array, not null.
	req = httptest.NewRequest(http.MethodGet, "/api/stats/history", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Body.String() == "null" {
		t.Fatal("expected empty array for history, got null")
	}
	var history []StatsHistoryEntry
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %v", history)
	}

	snapshot := NewEmailStats()
	snapshot.TotalReceived = 5
	snapshot.LastUpdated = "2026-08-12T10:00:00Z"
	if err := AppendStats(db, snapshot); err != nil {
		t.Fatalf("AppendStats failed: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalReceived != 5 {
		t.Fatalf("expected total_received=5, got %+v", stats)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
