package httpapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api, verifier := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"client":"%s","proposal":"x","lines":[]}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerFor(t, verifier, vendorActor()))
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too large body, got %d", res.Code)
	}
}

func TestInternalErrorsAreNotEchoedToClients(t *testing.T) {
	res := httptest.NewRecorder()
	writeError(res, http.StatusInternalServerError, fmt.Errorf("pq: connection refused at 10.0.0.5"))

	if strings.Contains(res.Body.String(), "10.0.0.5") {
		t.Fatalf("5xx response leaked internals: %s", res.Body)
	}
	if !strings.Contains(res.Body.String(), "internal server error") {
		t.Fatalf("5xx response missing generic message: %s", res.Body)
	}
}
