package idempotency

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestManager() (Manager, *MemoryStore) {
	store := NewMemoryStore(DefaultRetention)
	return Manager{Store: store, Retention: DefaultRetention}, store
}

func postWithKey(handler http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/mutate", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestClaimAndReplay(t *testing.T) {
	manager, store := newTestManager()

	var invocations int32
	handler := manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&invocations, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message":"Success"}`))
	}))

	first := postWithKey(handler, "k1")
	if first.Code != http.StatusOK {
		t.Fatalf("first call status = %d", first.Code)
	}
	if got := strings.TrimSpace(first.Body.String()); got != `{"message":"Success"}` {
		t.Fatalf("first call body = %s", got)
	}

	second := postWithKey(handler, "k1")
	if second.Code != http.StatusOK {
		t.Fatalf("replay status = %d", second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replay body %q differs from original %q", second.Body.String(), first.Body.String())
	}
	if n := atomic.LoadInt32(&invocations); n != 1 {
		t.Fatalf("handler invoked %d times, want 1", n)
	}

	record, ok := store.GetRecord("k1")
	if !ok || record.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED record, got %+v", record)
	}
}

func TestConcurrentPendingGetsConflict(t *testing.T) {
	manager, _ := newTestManager()

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var invocations int32
	handler := manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&invocations, 1)
		close(entered)
		<-unblock
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Success"}`))
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	firstRec := httptest.NewRecorder()
	go func() {
		defer wg.Done()
		req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
		req.Header.Set(HeaderKey, "k2")
		handler.ServeHTTP(firstRec, req)
	}()

	<-entered
	second := postWithKey(handler, "k2")
	close(unblock)
	wg.Wait()

	if second.Code != http.StatusConflict {
		t.Fatalf("second call status = %d, want 409", second.Code)
	}
	var body errorBody
	if err := json.Unmarshal(second.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode conflict body: %v", err)
	}
	if body.Code != "IDEMPOTENCY_CONFLICT" || body.Error == "" {
		t.Fatalf("conflict body = %+v", body)
	}
	if n := atomic.LoadInt32(&invocations); n != 1 {
		t.Fatalf("handler invoked %d times, want 1", n)
	}
}

func TestMissingHeaderBypassesProtocol(t *testing.T) {
	manager, store := newTestManager()

	var invocations int32
	handler := manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&invocations, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))

	postWithKey(handler, "")
	postWithKey(handler, "")
	if n := atomic.LoadInt32(&invocations); n != 2 {
		t.Fatalf("handler invoked %d times, want 2", n)
	}
	if _, ok := store.GetRecord(""); ok {
		t.Fatal("no record must be created without a key")
	}
}

func TestFailedHandlerReleasesKey(t *testing.T) {
	manager, store := newTestManager()

	var invocations int32
	handler := manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&invocations, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"period is closed","code":"PERIOD_CLOSED"}`))
	}))

	postWithKey(handler, "k3")
	if _, ok := store.GetRecord("k3"); ok {
		t.Fatal("failed attempt must release the key")
	}

	postWithKey(handler, "k3")
	if n := atomic.LoadInt32(&invocations); n != 2 {
		t.Fatalf("handler invoked %d times after release, want 2", n)
	}
}

func TestNonJSONResponseIsNotCached(t *testing.T) {
	manager, store := newTestManager()

	handler := manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}))

	postWithKey(handler, "k4")
	if _, ok := store.GetRecord("k4"); ok {
		t.Fatal("non-JSON responses must not be finalized")
	}
}

func TestPanickingHandlerReleasesKey(t *testing.T) {
	manager, store := newTestManager()

	handler := manager.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("boom")
	}))

	func() {
		defer func() { _ = recover() }()
		postWithKey(handler, "k5")
	}()

	if _, ok := store.GetRecord("k5"); ok {
		t.Fatal("panicking handler must release the key")
	}
}

func TestClaimRaceFailsClosed(t *testing.T) {
	manager := Manager{Store: racedStore{}}

	var invocations int32
	handler := manager.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&invocations, 1)
	}))

	rec := postWithKey(handler, "k6")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("raced claim status = %d, want 500", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Fatalf("raced claim code = %s", body.Code)
	}
	if atomic.LoadInt32(&invocations) != 0 {
		t.Fatal("handler must not run when the claim fails closed")
	}
}

func TestExpiredRecordIsClaimableAgain(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	now := time.Now().UTC()

	claimed, _, err := store.Claim(ctx, "k7", now.Add(-2*time.Hour))
	if err != nil || !claimed {
		t.Fatalf("initial claim failed: claimed=%v err=%v", claimed, err)
	}
	if err := store.Finalize(ctx, "k7", http.StatusOK, []byte(`{}`)); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	claimed, _, err = store.Claim(ctx, "k7", now)
	if err != nil || !claimed {
		t.Fatalf("expired record must be reclaimable: claimed=%v err=%v", claimed, err)
	}
}

// racedStore simulates the vanished-row race on every claim.
type racedStore struct{}

func (racedStore) Claim(context.Context, string, time.Time) (bool, Record, error) {
	return false, Record{}, ErrClaimRaced
}

func (racedStore) Finalize(context.Context, string, int, []byte) error { return nil }

func (racedStore) Release(context.Context, string) error { return nil }

func (racedStore) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }
