package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rmoraes/epistock/internal/model"
	"github.com/rmoraes/epistock/internal/store"
)

// defaultRecipient is the placeholder used when neither the request nor the
// recipient cookie names a recipient.
const defaultRecipient = "Unnamed"

// recipientCookieMaxAge keeps the last-used recipient for 30 days.
const recipientCookieMaxAge = 60 * 60 * 24 * 30

// StockHandler handles hand-out, replenishment and movement history.
type StockHandler struct {
	DB *sql.DB
}

type handOutRequest struct {
	Code      string `json:"code"`
	Recipient string `json:"recipient"`
	Quantity  int    `json:"quantity"`
}

// HandOut handles POST /api/handout. The recipient falls back to the
// recipient cookie, then to a placeholder; a recipient supplied in the
// request refreshes the cookie.
func (h *StockHandler) HandOut(w http.ResponseWriter, r *http.Request) {
	var req handOutRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Recipient = strings.TrimSpace(req.Recipient)
	recipient := req.Recipient
	if recipient == "" {
		if cookie, err := r.Cookie("recipient"); err == nil {
			recipient = strings.TrimSpace(cookie.Value)
		}
	}
	if recipient == "" {
		recipient = defaultRecipient
	}

	// The automatic flow dispenses one unit at a time.
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, movement, err := store.HandOut(r.Context(), h.DB, strings.TrimSpace(req.Code), recipient, req.Quantity)
	if err != nil {
		storeError(w, err)
		return
	}

	if req.Recipient != "" {
		http.SetCookie(w, &http.Cookie{
			Name:   "recipient",
			Value:  req.Recipient,
			Path:   "/",
			MaxAge: recipientCookieMaxAge,
		})
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"item":     item,
		"movement": movement,
	})
}

type replenishRequest struct {
	// Raw so that non-numeric input degrades to a no-op instead of a
	// decode error, matching the silent-ignore replenishment policy.
	Quantity json.RawMessage `json:"quantity"`
}

// Replenish handles POST /api/items/{id}/replenish. Non-positive or
// non-numeric quantities leave the balance unchanged and report applied=false.
func (h *StockHandler) Replenish(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req replenishRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, applied, err := store.Replenish(r.Context(), h.DB, id, lenientInt(req.Quantity))
	if err != nil {
		storeError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"item":    item,
		"applied": applied,
	})
}

// Movements handles GET /api/movements with optional recipient, from and to
// filters. Dates are operator-entered DD/MM/YYYY.
func (h *StockHandler) Movements(w http.ResponseWriter, r *http.Request) {
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
	if movements == nil {
		movements = []model.Movement{}
	}
	jsonResponse(w, http.StatusOK, movements)
}

// Recipients handles GET /api/movements/recipients.
func (h *StockHandler) Recipients(w http.ResponseWriter, r *http.Request) {
	recipients, err := store.ListRecipients(r.Context(), h.DB)
	if err != nil {
		storeError(w, err)
		return
	}
	if recipients == nil {
		recipients = []string{}
	}
	jsonResponse(w, http.StatusOK, recipients)
}

// lenientInt parses a JSON value as an integer, accepting both numbers and
// quoted strings. Anything unparseable is 0.
func lenientInt(raw json.RawMessage) int {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// dateToISO converts an operator-entered DD/MM/YYYY date to YYYY-MM-DD for
// SQL comparison. Invalid input disables the filter rather than erroring.
func dateToISO(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "-", "/")
	if s == "" {
		return ""
	}
	t, err := time.Parse("02/01/2006", s)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}
