package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cotizador/backend/internal/domain"
	"cotizador/backend/internal/service"
	"cotizador/backend/internal/store"
)

type API struct {
	service       *service.Service
	verifier      *Verifier
	allowedOrigin string
}

func New(svc *service.Service, verifier *Verifier, allowedOrigin string) *API {
	return &API{
		service:       svc,
		verifier:      verifier,
		allowedOrigin: allowedOrigin,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	anyRole := []string{domain.RoleUser, domain.RoleAdmin, domain.RoleSuperadmin}

	mux.HandleFunc("/api/v1/pricebook/terms", a.requireAuth(a.handleTerms, anyRole...))
	mux.HandleFunc("/api/v1/pricebook/products", a.requireAuth(a.handleProducts, anyRole...))

	mux.HandleFunc("/api/v1/quotes/preview", a.requireAuth(a.handlePreview, anyRole...))
	mux.HandleFunc("/api/v1/quotes/compare", a.requireAuth(a.handleCompare, anyRole...))
	mux.HandleFunc("/api/v1/quotes", a.requireAuth(a.handleQuotes, anyRole...))
	mux.HandleFunc("/api/v1/quotes/", a.requireAuth(a.handleQuoteDetail, anyRole...))

	mux.HandleFunc("/api/v1/dashboard", a.requireAuth(a.handleDashboard, anyRole...))

	mux.HandleFunc("/api/v1/users", a.requireAuth(a.handleUsers, domain.RoleAdmin, domain.RoleSuperadmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.verifier.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleTerms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"terms": a.service.Terms()})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	term, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("term")))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("term query parameter required"))
		return
	}

	products, err := a.service.Products(term)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"term_months": term, "products": products})
}

func (a *API) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var draft domain.QuotationDraft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	comp, err := a.service.BuildQuotation(draft)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

func (a *API) handleQuotes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		headers, err := a.service.History(r.Context())
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"quotations": headers})
	case http.MethodPost:
		var draft domain.QuotationDraft
		if err := decodeJSON(r, &draft); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		resp, err := a.service.SaveQuotation(r.Context(), draft)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleQuoteDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/quotes/"
	quotationID := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if quotationID == "" || strings.Contains(quotationID, "/") {
		writeError(w, http.StatusBadRequest, errors.New("quotation id required"))
		return
	}

	detail, err := a.service.Detail(r.Context(), quotationID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("ids"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, errors.New("ids query parameter required"))
		return
	}

	headers, err := a.service.Compare(r.Context(), strings.Split(raw, ","))
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotations": headers})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	dash, err := a.service.Dashboard(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := a.service.Users(r.Context())
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	case http.MethodPost:
		var user domain.UserAccount
		if err := decodeJSON(r, &user); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if err := a.service.RegisterUser(r.Context(), user); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

// statusForError maps service and store errors onto HTTP statuses. Anything
// unrecognized is treated as a processing failure rather than a server bug.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case strings.Contains(strings.ToLower(err.Error()), "role required"),
		strings.Contains(strings.ToLower(err.Error()), "identity required"):
		return http.StatusForbidden
	default:
		return http.StatusUnprocessableEntity
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx details stay in the log; clients get a generic message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
