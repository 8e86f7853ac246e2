package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rmoraes/epistock/internal/report"
	"github.com/rmoraes/epistock/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportsHandler serves spreadsheet downloads of dispatch history and stock.
type ReportsHandler struct {
	DB *sql.DB
}

// MovementsExport handles GET /api/reports/movements.xlsx with the same
// filters as /api/movements.
func (h *ReportsHandler) MovementsExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	movements, err := store.ListMovements(r.Context(), h.DB,
		strings.TrimSpace(q.Get("recipient")),
		dateToISO(q.Get("from")),
		dateToISO(q.Get("to")),
	)
	if err != nil {
		storeError(w, err)
		return
	}

	f, err := report.Movements(movements)
	if err != nil {
		slog.Error("building movements report", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="dispatches.xlsx"`)
	if err := f.Write(w); err != nil {
		slog.Error("writing movements report", "error", err)
	}
}

// StockExport handles GET /api/reports/stock.xlsx.
func (h *ReportsHandler) StockExport(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListItems(r.Context(), h.DB, "")
	if err != nil {
		storeError(w, err)
		return
	}

	f, err := report.Stock(items)
	if err != nil {
		slog.Error("building stock report", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("stock_%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(w); err != nil {
		slog.Error("writing stock report", "error", err)
	}
}
