package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/payment"
	"dukaan/backend/internal/service"
)

// expenseFilter reads type, status, from and to.
func expenseFilter(r *http.Request) (domain.ExpenseFilter, error) {
	query := r.URL.Query()
	var filter domain.ExpenseFilter
	if raw := strings.TrimSpace(query.Get("type")); raw != "" {
		filter.ExpenseType = domain.ParseExpenseType(raw)
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, ok := payment.ParseStatus(raw)
		if !ok {
			return domain.ExpenseFilter{}, &service.ValidationError{Err: service.ErrValidation, Details: "unknown status " + raw}
		}
		filter.Status = status
	}
	from, to, err := parseDateRange(r)
	if err != nil {
		return domain.ExpenseFilter{}, err
	}
	filter.From, filter.To = from, to
	return filter, nil
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := expenseFilter(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	expenses, err := a.service.ListExpenses(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (a *API) handleExpenseStats(w http.ResponseWriter, r *http.Request) {
	filter, err := expenseFilter(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	stats, err := a.service.ExpenseStats(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	expense, err := a.service.CreateExpense(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

func (a *API) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := a.service.GetExpense(r.Context(), chi.URLParam(r, "expenseID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (a *API) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	expense, err := a.service.UpdateExpense(r.Context(), chi.URLParam(r, "expenseID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (a *API) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "expenseID")
	if err := a.service.DeleteExpense(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}
