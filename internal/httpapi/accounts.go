package httpapi

import (
	"net/http"

	"dukaan/backend/internal/domain"
)

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.fail(w, r, errTooManyAttempts)
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a token for the X-CSRF-Token header of every
// mutating request.
func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"csrfToken": a.csrf.Issue()})
}

func (a *API) handleListCashiers(w http.ResponseWriter, r *http.Request) {
	cashiers, err := a.auth.ListCashiers(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cashiers)
}

func (a *API) handleCreateCashier(w http.ResponseWriter, r *http.Request) {
	var req domain.CashierCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	cashier, err := a.auth.CreateCashier(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cashier)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	logs, err := a.service.ListAuditLogs(r.Context(), query.Get("date"), parsePositive(query.Get("limit"), 100, 500))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
