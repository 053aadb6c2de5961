package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dukaan/backend/internal/domain"
)

func (a *API) handleListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := a.service.ListVendors(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendors)
}

func (a *API) handleCreateVendor(w http.ResponseWriter, r *http.Request) {
	var req domain.VendorRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	vendor, err := a.service.CreateVendor(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, vendor)
}

func (a *API) handleGetVendor(w http.ResponseWriter, r *http.Request) {
	vendor, err := a.service.GetVendor(r.Context(), chi.URLParam(r, "vendorID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendor)
}

func (a *API) handleUpdateVendor(w http.ResponseWriter, r *http.Request) {
	var req domain.VendorRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	vendor, err := a.service.UpdateVendor(r.Context(), chi.URLParam(r, "vendorID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendor)
}

func (a *API) handleDeleteVendor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "vendorID")
	if err := a.service.DeleteVendor(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (a *API) handleReconcileVendor(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.ReconcileVendor(r.Context(), chi.URLParam(r, "vendorID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleReconcileAllVendors(w http.ResponseWriter, r *http.Request) {
	results, err := a.service.ReconcileAllVendors(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *API) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	purchases, err := a.service.ListVendorPurchases(r.Context(), chi.URLParam(r, "vendorID"), domain.PurchaseFilter{From: from, To: to})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}

func (a *API) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	result, err := a.service.CreatePurchase(r.Context(), chi.URLParam(r, "vendorID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	purchase, err := a.service.GetPurchase(r.Context(), chi.URLParam(r, "vendorID"), chi.URLParam(r, "purchaseID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}

func (a *API) handleUpdatePurchase(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	result, err := a.service.UpdatePurchase(r.Context(), chi.URLParam(r, "vendorID"), chi.URLParam(r, "purchaseID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleCollectPurchasePayment(w http.ResponseWriter, r *http.Request) {
	var req domain.CollectPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	result, err := a.service.CollectPurchasePayment(r.Context(), chi.URLParam(r, "vendorID"), chi.URLParam(r, "purchaseID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	approved, err := a.managerApproval(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	vendor, err := a.service.DeletePurchase(r.Context(), chi.URLParam(r, "vendorID"), chi.URLParam(r, "purchaseID"), approved)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "vendor": vendor})
}
