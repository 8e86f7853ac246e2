package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rmoraes/epistock/internal/barcode"
	"github.com/rmoraes/epistock/internal/model"
	"github.com/rmoraes/epistock/internal/store"
)

// ItemsHandler handles item registration and management endpoints.
type ItemsHandler struct {
	DB       *sql.DB
	Barcodes *barcode.Generator
}

type createItemRequest struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Balance int    `json:"balance"`
}

type updateItemRequest struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Balance int    `json:"balance"`
}

// List handles GET /api/items. Public; supports ?q= substring search on
// name or code.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListItems(r.Context(), h.DB, r.URL.Query().Get("q"))
	if err != nil {
		storeError(w, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, req.Name, req.Code, req.Balance)
	if err != nil {
		storeError(w, err)
		return
	}

	// Always regenerate, in case a stale artifact exists under this code.
	// Failures are logged only; the image is rebuilt on next access.
	if _, err := h.Barcodes.Ensure(item.Code, true); err != nil {
		slog.Error("generating barcode", "code", item.Code, "error", err)
	}

	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err)
		return
	}
	if item == nil {
		storeError(w, store.ErrItemNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}. Label snapshots keep their original
// code and name; only the backing barcode artifact follows a code change.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	before, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err)
		return
	}
	if before == nil {
		storeError(w, store.ErrItemNotFound)
		return
	}

	item, err := store.UpdateItem(r.Context(), h.DB, id, req.Name, req.Code, req.Balance)
	if err != nil {
		storeError(w, err)
		return
	}

	if item.Code != before.Code {
		if err := h.Barcodes.Remove(before.Code); err != nil {
			slog.Error("removing stale barcode", "code", before.Code, "error", err)
		}
		if _, err := h.Barcodes.Ensure(item.Code, true); err != nil {
			slog.Error("generating barcode", "code", item.Code, "error", err)
		}
	}

	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}. Movements and labels go with the
// item; the barcode artifact removal is best-effort.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err)
		return
	}
	if item == nil {
		storeError(w, store.ErrItemNotFound)
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, id); err != nil {
		storeError(w, err)
		return
	}

	if err := h.Barcodes.Remove(item.Code); err != nil {
		slog.Error("removing barcode", "code", item.Code, "error", err)
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}
