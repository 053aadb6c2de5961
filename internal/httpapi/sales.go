package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/payment"
	"dukaan/backend/internal/service"
)

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	sale, err := a.service.CreateSale(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

// handleListSales accepts status (comma separated), paymentMethod, search,
// from, to, page and limit.
func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.SaleFilter{Search: strings.TrimSpace(query.Get("search"))}

	for _, raw := range strings.Split(query.Get("status"), ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		status, ok := payment.ParseStatus(raw)
		if !ok {
			a.fail(w, r, &service.ValidationError{Err: service.ErrValidation, Details: "unknown status " + raw})
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if raw := strings.TrimSpace(query.Get("paymentMethod")); raw != "" {
		method, ok := domain.ParsePaymentMethod(raw)
		if !ok {
			a.fail(w, r, &service.ValidationError{Err: service.ErrValidation, Details: "unknown payment method " + raw})
			return
		}
		filter.PaymentMethod = method
	}
	from, to, err := parseDateRange(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	filter.From, filter.To = from, to

	page := parsePositive(query.Get("page"), 1, 0)
	limit := parsePositive(query.Get("limit"), 50, 500)
	resp, err := a.service.ListSales(r.Context(), filter, page, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDailySalesSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.service.DailySalesSummary(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleUpdateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	sale, err := a.service.UpdateSale(r.Context(), chi.URLParam(r, "saleID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleSetSaleStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	sale, err := a.service.SetSaleStatus(r.Context(), chi.URLParam(r, "saleID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleCollectSalePayment(w http.ResponseWriter, r *http.Request) {
	var req domain.CollectPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	sale, err := a.service.CollectSalePayment(r.Context(), chi.URLParam(r, "saleID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	approved, err := a.managerApproval(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	id := chi.URLParam(r, "saleID")
	if err := a.service.DeleteSale(r.Context(), id, approved); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (a *API) handleListReceivables(w http.ResponseWriter, r *http.Request) {
	sales, err := a.service.ListReceivables(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (a *API) handleReceivableSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.service.ReceivableSummary(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleRefreshOverdue(w http.ResponseWriter, r *http.Request) {
	marked, err := a.service.RefreshOverdue(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marked": marked})
}
