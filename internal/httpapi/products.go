package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dukaan/backend/internal/domain"
)

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.LowStock(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "productID"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")
	if err := a.service.DeleteProduct(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}
