package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	accountingperiodservice "caritas/contexts/finance-core/accounting-period-service"
	ledgerservice "caritas/contexts/finance-core/ledger-service"
	ledgerports "caritas/contexts/finance-core/ledger-service/ports"
	reportservice "caritas/contexts/program-delivery/report-service"
	"caritas/internal/platform/httpserver"
	"caritas/internal/platform/idempotency"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

type testEnv struct {
	handler http.Handler
	ledger  ledgerservice.Module
	idem    *idempotency.MemoryStore
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	ledger := ledgerservice.NewInMemoryModule(nil)
	periods := accountingperiodservice.NewInMemoryModule(nil)
	reports := reportservice.NewInMemoryModule(nil)
	store := idempotency.NewMemoryStore(time.Hour)
	server := httpserver.New(
		ledger,
		periods,
		reports,
		httpserver.Authenticator{Secret: []byte(testSecret)},
		idempotency.Manager{Store: store, Retention: time.Hour},
		nil,
		":0",
	)
	return testEnv{handler: server.Handler(), ledger: ledger, idem: store}
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func createTransactionBody() []byte {
	return []byte(`{
		"org_id": "org-1",
		"type": "expense",
		"amount": "42.00",
		"currency": "EUR",
		"description": "printer paper",
		"effective_date": "2026-07-10"
	}`)
}

func doRequest(env testEnv, method string, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, rec.Body.String())
	}
	return body.Error, body.Code
}

func TestMutationWithoutTokenIsRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(env, http.MethodPost, "/api/v1/transactions", createTransactionBody(), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
	if _, code := decodeError(t, rec); code != "UNAUTHORIZED" {
		t.Fatalf("code %s, want UNAUTHORIZED", code)
	}
}

func TestGarbageTokenIsRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(env, http.MethodGet, "/api/v1/transactions?org_id=org-1", nil, map[string]string{
		"Authorization": "Bearer not-a-jwt",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestTokenSignedWithWrongSecretIsRejected(t *testing.T) {
	env := newTestEnv(t)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("some-other-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	rec := doRequest(env, http.MethodGet, "/api/v1/transactions?org_id=org-1", nil, map[string]string{
		"Authorization": "Bearer " + signed,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
}

func TestBlankSubjectTokenIsValidationError(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(env, http.MethodGet, "/api/v1/transactions?org_id=org-1", nil, map[string]string{
		"Authorization": "Bearer " + signToken(t, ""),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	if _, code := decodeError(t, rec); code != "VALIDATION_ERROR" {
		t.Fatalf("code %s, want VALIDATION_ERROR", code)
	}
}

func TestCreateTransactionRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.Store.SeedMember("org-1", "user-1", ledgerports.RoleMember)

	rec := doRequest(env, http.MethodPost, "/api/v1/transactions", createTransactionBody(), map[string]string{
		"Authorization": "Bearer " + signToken(t, "user-1"),
		"Content-Type":  "application/json",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			TransactionID string `json:"transaction_id"`
			Amount        string `json:"amount"`
			CreatedByID   string `json:"created_by_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "success" || resp.Data.TransactionID == "" {
		t.Fatalf("unexpected envelope %+v", resp)
	}
	if resp.Data.Amount != "42.00" || resp.Data.CreatedByID != "user-1" {
		t.Fatalf("unexpected payload %+v", resp.Data)
	}
}

func TestIdempotentReplayReturnsIdenticalBody(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.Store.SeedMember("org-1", "user-1", ledgerports.RoleMember)
	headers := map[string]string{
		"Authorization":   "Bearer " + signToken(t, "user-1"),
		"Content-Type":    "application/json",
		"Idempotency-Key": "create-tx-key-1",
	}

	first := doRequest(env, http.MethodPost, "/api/v1/transactions", createTransactionBody(), headers)
	if first.Code != http.StatusOK {
		t.Fatalf("first request status %d, body %s", first.Code, first.Body.String())
	}
	second := doRequest(env, http.MethodPost, "/api/v1/transactions", createTransactionBody(), headers)
	if second.Code != http.StatusOK {
		t.Fatalf("replay status %d, body %s", second.Code, second.Body.String())
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatalf("replay body differs:\nfirst:  %s\nsecond: %s", first.Body.String(), second.Body.String())
	}

	list := doRequest(env, http.MethodGet, "/api/v1/transactions?org_id=org-1", nil, map[string]string{
		"Authorization": "Bearer " + signToken(t, "user-1"),
	})
	if list.Code != http.StatusOK {
		t.Fatalf("list status %d", list.Code)
	}
	var listResp struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(list.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(listResp.Data) != 1 {
		t.Fatalf("retried create must execute once, found %d rows", len(listResp.Data))
	}
}

func TestPendingKeyGetsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.Store.SeedMember("org-1", "user-1", ledgerports.RoleMember)

	// Another request holds the key in flight.
	if claimed, _, err := env.idem.Claim(context.Background(), "in-flight-key", time.Now().UTC()); err != nil || !claimed {
		t.Fatalf("pre-claim failed: claimed=%v err=%v", claimed, err)
	}

	rec := doRequest(env, http.MethodPost, "/api/v1/transactions", createTransactionBody(), map[string]string{
		"Authorization":   "Bearer " + signToken(t, "user-1"),
		"Idempotency-Key": "in-flight-key",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
	if _, code := decodeError(t, rec); code != "IDEMPOTENCY_CONFLICT" {
		t.Fatalf("code %s, want IDEMPOTENCY_CONFLICT", code)
	}
}

func TestClosedPeriodCreateMapsToConflict(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.Store.SeedMember("org-1", "user-1", ledgerports.RoleMember)
	env.ledger.Store.SeedClosedPeriod("org-1", ledgerports.ClosedPeriod{
		PeriodID:  "period-jul",
		Type:      "month",
		StartDate: mustDate("2026-07-01"),
		EndDate:   mustDate("2026-07-31"),
	})

	rec := doRequest(env, http.MethodPost, "/api/v1/transactions", createTransactionBody(), map[string]string{
		"Authorization": "Bearer " + signToken(t, "user-1"),
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409 (body %s)", rec.Code, rec.Body.String())
	}
	message, code := decodeError(t, rec)
	if code != "PERIOD_CLOSED" {
		t.Fatalf("code %s, want PERIOD_CLOSED", code)
	}
	if !strings.Contains(message, "period") {
		t.Fatalf("error message should name the blocking period, got %q", message)
	}
}

func TestFailedMutationIsNotCached(t *testing.T) {
	env := newTestEnv(t)
	// No membership seeded: the create is forbidden.
	headers := map[string]string{
		"Authorization":   "Bearer " + signToken(t, "user-1"),
		"Idempotency-Key": "forbidden-key",
	}

	first := doRequest(env, http.MethodPost, "/api/v1/transactions", createTransactionBody(), headers)
	if first.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", first.Code)
	}

	// The key was released; once the actor joins the org, the retry succeeds.
	env.ledger.Store.SeedMember("org-1", "user-1", ledgerports.RoleMember)
	second := doRequest(env, http.MethodPost, "/api/v1/transactions", createTransactionBody(), headers)
	if second.Code != http.StatusOK {
		t.Fatalf("retry status %d, body %s", second.Code, second.Body.String())
	}
}

func TestHealthEndpointIsPublic(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(env, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
}

func mustDate(value string) time.Time {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return parsed.UTC()
}
