package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rmoraes/epistock/internal/barcode"
	"github.com/rmoraes/epistock/internal/model"
	"github.com/rmoraes/epistock/internal/store"
)

// LabelsHandler handles the label print queue.
type LabelsHandler struct {
	DB       *sql.DB
	Barcodes *barcode.Generator
}

type enqueueRequest struct {
	ItemID int64  `json:"item_id"`
	Code   string `json:"code"`
}

type markPrintedRequest struct {
	IDs []int64 `json:"ids"`
}

// Enqueue handles POST /api/labels. The item is resolved by id when given,
// otherwise by code; its current name and code are snapshotted into the label.
func (h *LabelsHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ItemID <= 0 && strings.TrimSpace(req.Code) == "" {
		jsonError(w, http.StatusBadRequest, "item_id or code required")
		return
	}

	label, err := store.EnqueueLabel(r.Context(), h.DB, req.ItemID, strings.TrimSpace(req.Code))
	if err != nil {
		storeError(w, err)
		return
	}

	// Make sure the artifact exists; no need to overwrite a current one.
	if _, err := h.Barcodes.Ensure(label.Code, false); err != nil {
		slog.Error("generating barcode", "code", label.Code, "error", err)
	}

	jsonResponse(w, http.StatusCreated, label)
}

// Pending handles GET /api/labels/pending.
func (h *LabelsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	labels, err := store.ListPendingLabels(r.Context(), h.DB)
	if err != nil {
		storeError(w, err)
		return
	}
	if labels == nil {
		labels = []model.Label{}
	}
	jsonResponse(w, http.StatusOK, labels)
}

// Print handles GET /api/labels/print?ids=5,6,7. With ids it returns exactly
// those labels (any status, for reprints); without the parameter, all pending
// labels. An ids parameter that resolves to nothing selects nothing rather
// than falling back to the pending queue.
// Barcode images for every returned label are regenerated first.
func (h *LabelsHandler) Print(w http.ResponseWriter, r *http.Request) {
	var labels []model.Label
	var err error
	if r.URL.Query().Has("ids") {
		labels, err = store.LabelsByIDs(r.Context(), h.DB, parseIDList(r.URL.Query().Get("ids")))
	} else {
		labels, err = store.ListPendingLabels(r.Context(), h.DB)
	}
	if err != nil {
		storeError(w, err)
		return
	}
	if labels == nil {
		labels = []model.Label{}
	}

	for _, l := range labels {
		if _, err := h.Barcodes.Ensure(l.Code, true); err != nil {
			slog.Error("generating barcode", "code", l.Code, "error", err)
		}
	}

	jsonResponse(w, http.StatusOK, labels)
}

// MarkPrinted handles POST /api/labels/printed. Already-printed or unknown
// ids are skipped; the response carries the number of rows updated.
func (h *LabelsHandler) MarkPrinted(w http.ResponseWriter, r *http.Request) {
	var req markPrintedRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := store.MarkLabelsPrinted(r.Context(), h.DB, req.IDs)
	if err != nil {
		storeError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]int64{"updated": updated})
}

// History handles GET /api/labels/history.
func (h *LabelsHandler) History(w http.ResponseWriter, r *http.Request) {
	labels, err := store.LabelHistory(r.Context(), h.DB)
	if err != nil {
		storeError(w, err)
		return
	}
	if labels == nil {
		labels = []model.Label{}
	}
	jsonResponse(w, http.StatusOK, labels)
}

// Barcode handles GET /api/barcodes/{code}, serving the PNG artifact and
// generating it first if missing.
func (h *LabelsHandler) Barcode(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	path, err := h.Barcodes.Ensure(code, false)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid code")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}

// parseIDList parses a comma-separated id list, skipping blanks and garbage.
func parseIDList(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
