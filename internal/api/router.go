package api

import (
	"database/sql"
	"net/http"

	"github.com/rmoraes/epistock/internal/auth"
	"github.com/rmoraes/epistock/internal/barcode"
)

// NewRouter creates the API router with all endpoints registered.
// Read-only endpoints are public; mutating endpoints require a session.
func NewRouter(db *sql.DB, jwtSecret string, verifier auth.Verifier, barcodes *barcode.Generator) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{JWTSecret: jwtSecret, Verifier: verifier}
	itemsHandler := &ItemsHandler{DB: db, Barcodes: barcodes}
	stockHandler := &StockHandler{DB: db}
	labelsHandler := &LabelsHandler{DB: db, Barcodes: barcodes}
	reportsHandler := &ReportsHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret)

	// Session.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)

	// Liveness.
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Items: read public, write authenticated.
	mux.HandleFunc("GET /api/items", itemsHandler.List)
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)
	mux.Handle("PUT /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("DELETE /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Delete)))
	mux.Handle("POST /api/items/{id}/replenish", authMW(http.HandlerFunc(stockHandler.Replenish)))

	// Stock ledger.
	mux.Handle("POST /api/handout", authMW(http.HandlerFunc(stockHandler.HandOut)))
	mux.HandleFunc("GET /api/movements", stockHandler.Movements)
	mux.HandleFunc("GET /api/movements/recipients", stockHandler.Recipients)

	// Label queue.
	mux.Handle("POST /api/labels", authMW(http.HandlerFunc(labelsHandler.Enqueue)))
	mux.HandleFunc("GET /api/labels/pending", labelsHandler.Pending)
	mux.HandleFunc("GET /api/labels/print", labelsHandler.Print)
	mux.Handle("POST /api/labels/printed", authMW(http.HandlerFunc(labelsHandler.MarkPrinted)))
	mux.HandleFunc("GET /api/labels/history", labelsHandler.History)
	mux.HandleFunc("GET /api/barcodes/{code}", labelsHandler.Barcode)

	// Reports.
	mux.HandleFunc("GET /api/reports/movements.xlsx", reportsHandler.MovementsExport)
	mux.HandleFunc("GET /api/reports/stock.xlsx", reportsHandler.StockExport)

	return mux
}
