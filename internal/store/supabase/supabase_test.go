package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tg_support_bot/internal/domain"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	prefer string
	apikey string
	auth   string
	body   map[string]interface{}
}

type fakePostgREST struct {
	t        *testing.T
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r recordedRequest)
}

func newFakePostgREST(t *testing.T, handler func(w http.ResponseWriter, r recordedRequest)) (*fakePostgREST, *Gateway) {
	t.Helper()

	fake := &fakePostgREST{t: t, handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(srv.Close)

	gw, err := New(srv.URL+"/", "service-key", WithRetryPolicy(1, time.Millisecond, 2*time.Millisecond), WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	gw.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	return fake, gw
}

func (f *fakePostgREST) serve(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		prefer: r.Header.Get("Prefer"),
		apikey: r.Header.Get("apikey"),
		auth:   r.Header.Get("Authorization"),
	}
	raw, _ := io.ReadAll(r.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rec.body); err != nil {
			f.t.Errorf("invalid request body %s: %v", raw, err)
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	f.handler(w, rec)
}

func (f *fakePostgREST) calls() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNewValidatesInputs(t *testing.T) {
	if _, err := New("", "key"); err == nil {
		t.Fatalf("expected error for missing url")
	}
	if _, err := New("https://example.supabase.co", ""); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestAddComplaintReturnsAssignedID(t *testing.T) {
	fake, gw := newFakePostgREST(t, func(w http.ResponseWriter, r recordedRequest) {
		writeJSON(w, http.StatusCreated, `[{"id":41,"user_id":7,"status":"pending","message":"late order"}]`)
	})

	id, err := gw.AddComplaint(context.Background(), domain.Complaint{UserID: 7, Username: "bob", Message: "late order"})
	if err != nil {
		t.Fatalf("AddComplaint returned error: %v", err)
	}
	if id != 41 {
		t.Fatalf("expected id 41, got %d", id)
	}

	calls := fake.calls()
	if len(calls) != 1 {
		t.Fatalf("expected one request, got %d", len(calls))
	}
	call := calls[0]
	if call.method != http.MethodPost || call.path != "/rest/v1/complaints" {
		t.Fatalf("unexpected request %s %s", call.method, call.path)
	}
	if call.apikey != "service-key" || call.auth != "Bearer service-key" {
		t.Fatalf("expected auth headers, got apikey=%q auth=%q", call.apikey, call.auth)
	}
	if !strings.Contains(call.prefer, "return=representation") {
		t.Fatalf("expected representation preference, got %q", call.prefer)
	}
	if call.body["status"] != "pending" || call.body["message"] != "late order" {
		t.Fatalf("unexpected body %v", call.body)
	}
	if _, ok := call.body["id"]; ok {
		t.Fatalf("expected id to be assigned by the store, got body %v", call.body)
	}
}

func TestUpsertUserRefreshesExistingRow(t *testing.T) {
	fake, gw := newFakePostgREST(t, func(w http.ResponseWriter, r recordedRequest) {
		switch r.method {
		case http.MethodPost:
			writeJSON(w, http.StatusCreated, `[]`)
		case http.MethodPatch:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	created, err := gw.UpsertUser(context.Background(), domain.User{UserID: 9, Username: "carol", FirstName: "Carol"})
	if err != nil {
		t.Fatalf("UpsertUser returned error: %v", err)
	}
	if created {
		t.Fatalf("expected existing row to be reported as not created")
	}

	calls := fake.calls()
	if len(calls) != 2 {
		t.Fatalf("expected insert then refresh, got %d calls", len(calls))
	}
	if !strings.Contains(calls[0].prefer, "resolution=ignore-duplicates") || !strings.Contains(calls[0].query, "on_conflict=user_id") {
		t.Fatalf("expected ignore-duplicates insert, got prefer=%q query=%q", calls[0].prefer, calls[0].query)
	}
	if calls[1].method != http.MethodPatch || calls[1].query != "user_id=eq.9" {
		t.Fatalf("expected patch on user_id, got %s %s", calls[1].method, calls[1].query)
	}
	if _, ok := calls[1].body["created_at"]; ok {
		t.Fatalf("expected created_at to stay untouched on refresh")
	}
}

func TestUpsertUserReportsInsert(t *testing.T) {
	_, gw := newFakePostgREST(t, func(w http.ResponseWriter, r recordedRequest) {
		writeJSON(w, http.StatusCreated, `[{"user_id":9,"first_name":"Carol"}]`)
	})

	created, err := gw.UpsertUser(context.Background(), domain.User{UserID: 9, FirstName: "Carol"})
	if err != nil || !created {
		t.Fatalf("expected insert, got created=%v err=%v", created, err)
	}
}

func TestUpdateComplaintStatusNotFound(t *testing.T) {
	_, gw := newFakePostgREST(t, func(w http.ResponseWriter, r recordedRequest) {
		writeJSON(w, http.StatusOK, `[]`)
	})

	err := gw.UpdateComplaintStatus(context.Background(), 5, domain.ComplaintClosed)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetGroupSettingsMissingRow(t *testing.T) {
	_, gw := newFakePostgREST(t, func(w http.ResponseWriter, r recordedRequest) {
		writeJSON(w, http.StatusOK, `[]`)
	})

	if _, err := gw.GetGroupSettings(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAutoResponsesPreservesOrder(t *testing.T) {
	fake, gw := newFakePostgREST(t, func(w http.ResponseWriter, r recordedRequest) {
		writeJSON(w, http.StatusOK, `[{"trigger":"hello","response":"Hi"},{"trigger":"price","response":"DYOR"}]`)
	})

	list, err := gw.ListAutoResponses(context.Background())
	if err != nil {
		t.Fatalf("ListAutoResponses returned error: %v", err)
	}
	if len(list) != 2 || list[0].Trigger != "hello" || list[1].Trigger != "price" {
		t.Fatalf("unexpected responses %+v", list)
	}
	if q := fake.calls()[0].query; !strings.Contains(q, "order=created_at.asc") {
		t.Fatalf("expected created_at ordering, got %q", q)
	}
}

func TestCountParsesContentRange(t *testing.T) {
	_, gw := newFakePostgREST(t, func(w http.ResponseWriter, r recordedRequest) {
		if !strings.Contains(r.prefer, "count=exact") {
			t.Errorf("expected exact count preference, got %q", r.prefer)
		}
		w.Header().Set("Content-Range", "0-0/42")
		writeJSON(w, http.StatusOK, `[{}]`)
	})

	count, err := gw.CountComplaints(context.Background(), domain.ComplaintPending)
	if err != nil {
		t.Fatalf("CountComplaints returned error: %v", err)
	}
	if count != 42 {
		t.Fatalf("expected 42, got %d", count)
	}
}

func TestRemoveBannedWordReportsDeletion(t *testing.T) {
	_, gw := newFakePostgREST(t, func(w http.ResponseWriter, r recordedRequest) {
		if r.query != "word=eq.spam" {
			t.Errorf("expected normalized word filter, got %q", r.query)
		}
		writeJSON(w, http.StatusOK, `[{"word":"spam"}]`)
	})

	removed, err := gw.RemoveBannedWord(context.Background(), " SPAM ")
	if err != nil || !removed {
		t.Fatalf("expected removal, got removed=%v err=%v", removed, err)
	}
}

func TestServerErrorsAreRetriedThenSurfaced(t *testing.T) {
	fake, gw := newFakePostgREST(t, func(w http.ResponseWriter, r recordedRequest) {
		writeJSON(w, http.StatusServiceUnavailable, `{"message":"down"}`)
	})

	if _, err := gw.ListBannedWords(context.Background()); err == nil {
		t.Fatalf("expected error after retries")
	}
	if n := len(fake.calls()); n != 2 {
		t.Fatalf("expected initial attempt plus one retry, got %d", n)
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	fake, gw := newFakePostgREST(t, func(w http.ResponseWriter, r recordedRequest) {
		writeJSON(w, http.StatusUnauthorized, `{"message":"invalid key"}`)
	})

	err := gw.AddWarning(context.Background(), domain.Warning{UserID: 3, Reason: domain.ReasonLink})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status in error, got %v", err)
	}
	if n := len(fake.calls()); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}
