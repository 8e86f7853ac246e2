package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/rmoraes/epistock/internal/auth"
	"github.com/rmoraes/epistock/internal/barcode"
	"github.com/rmoraes/epistock/internal/db"
	"github.com/rmoraes/epistock/internal/model"
	"github.com/rmoraes/epistock/internal/store"
)

const testPassword = "test-password"

type testServer struct {
	*httptest.Server
	barcodes *barcode.Generator
	token    string
}

// newTestServer wires a full router against a fresh database, configures the
// operator credential and logs in once.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	database := db.NewTestDB(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	if err := store.SetAdminPasswordHash(ctx, database, string(hash)); err != nil {
		t.Fatalf("storing password hash: %v", err)
	}

	secret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatalf("getting jwt secret: %v", err)
	}

	barcodes, err := barcode.NewGenerator(t.TempDir())
	if err != nil {
		t.Fatalf("creating barcode generator: %v", err)
	}

	verifier := &auth.StoreVerifier{DB: database}
	srv := httptest.NewServer(NewRouter(database, secret, verifier, barcodes))
	t.Cleanup(srv.Close)

	ts := &testServer{Server: srv, barcodes: barcodes}
	ts.token = ts.login(t, testPassword, http.StatusOK)
	return ts
}

// login posts the password and returns the session token (if any).
func (ts *testServer) login(t *testing.T, password string, wantStatus int) string {
	t.Helper()

	resp := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"password": password})
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("login status = %d, want %d", resp.StatusCode, wantStatus)
	}
	if wantStatus != http.StatusOK {
		return ""
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	if body["token"] == "" {
		t.Fatal("login returned no token")
	}
	return body["token"]
}

// do performs a JSON request. An empty token leaves the request anonymous.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// decode reads a JSON response body into target and closes it.
func decode(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/health", "", nil)
	var body map[string]string
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t, "wrong", http.StatusUnauthorized)
}

func TestMutationsRequireSession(t *testing.T) {
	ts := newTestServer(t)

	paths := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/items"},
		{http.MethodPut, "/api/items/1"},
		{http.MethodDelete, "/api/items/1"},
		{http.MethodPost, "/api/items/1/replenish"},
		{http.MethodPost, "/api/handout"},
		{http.MethodPost, "/api/labels"},
		{http.MethodPost, "/api/labels/printed"},
	}

	for _, p := range paths {
		resp := ts.do(t, p.method, p.path, "", map[string]string{})
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s anonymous: status = %d, want 401", p.method, p.path, resp.StatusCode)
		}
	}
}

func TestItemDispatchAndLabelFlow(t *testing.T) {
	ts := newTestServer(t)

	// Register an item; the code is generated and a barcode artifact appears.
	resp := ts.do(t, http.MethodPost, "/api/items", ts.token,
		map[string]any{"name": "Luvas", "balance": 10})
	var item model.Item
	decode(t, resp, &item)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	if item.Code != "EPI000001" {
		t.Errorf("code = %q, want EPI000001", item.Code)
	}
	if _, err := os.Stat(ts.barcodes.Path(item.Code)); err != nil {
		t.Errorf("barcode artifact missing: %v", err)
	}

	// Hand one out.
	resp = ts.do(t, http.MethodPost, "/api/handout", ts.token,
		map[string]any{"code": item.Code, "recipient": "João"})
	var handout struct {
		Item     model.Item     `json:"item"`
		Movement model.Movement `json:"movement"`
	}
	decode(t, resp, &handout)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("handout status = %d, want 200", resp.StatusCode)
	}
	if handout.Item.Balance != 9 {
		t.Errorf("balance = %d, want 9", handout.Item.Balance)
	}
	if handout.Movement.Quantity != 1 || handout.Movement.Recipient != "João" {
		t.Errorf("movement = %+v", handout.Movement)
	}

	// Queue a label.
	resp = ts.do(t, http.MethodPost, "/api/labels", ts.token,
		map[string]any{"code": item.Code})
	var label model.Label
	decode(t, resp, &label)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("enqueue status = %d, want 201", resp.StatusCode)
	}
	if label.SequenceNumber != 1 || label.Status != model.LabelStatusPending {
		t.Errorf("label = %+v", label)
	}

	resp = ts.do(t, http.MethodGet, "/api/labels/pending", "", nil)
	var pending []model.Label
	decode(t, resp, &pending)
	if len(pending) != 1 || pending[0].ID != label.ID {
		t.Errorf("pending = %+v", pending)
	}

	// Print and confirm; a repeat confirmation updates nothing.
	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/labels/print?ids=%d", label.ID), "", nil)
	var printed []model.Label
	decode(t, resp, &printed)
	if len(printed) != 1 {
		t.Fatalf("print batch = %+v", printed)
	}

	resp = ts.do(t, http.MethodPost, "/api/labels/printed", ts.token,
		map[string]any{"ids": []int64{label.ID}})
	var marked map[string]int64
	decode(t, resp, &marked)
	if marked["updated"] != 1 {
		t.Errorf("updated = %d, want 1", marked["updated"])
	}

	resp = ts.do(t, http.MethodPost, "/api/labels/printed", ts.token,
		map[string]any{"ids": []int64{label.ID}})
	decode(t, resp, &marked)
	if marked["updated"] != 0 {
		t.Errorf("repeat updated = %d, want 0", marked["updated"])
	}

	resp = ts.do(t, http.MethodGet, "/api/labels/history", "", nil)
	var history []model.Label
	decode(t, resp, &history)
	if len(history) != 1 || history[0].Status != model.LabelStatusPrinted {
		t.Errorf("history = %+v", history)
	}

	// The movement shows up in the ledger.
	resp = ts.do(t, http.MethodGet, "/api/movements?recipient=joão", "", nil)
	var movements []model.Movement
	decode(t, resp, &movements)
	if len(movements) != 1 || movements[0].ItemCode != item.Code {
		t.Errorf("movements = %+v", movements)
	}

	// Deleting the item takes its history with it.
	resp = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/items/%d", item.ID), ts.token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/items/%d", item.ID), "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", resp.StatusCode)
	}
}

func TestPrintBatchIDSelection(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/items", ts.token,
		map[string]any{"name": "Gloves", "balance": 5})
	var item model.Item
	decode(t, resp, &item)
	resp = ts.do(t, http.MethodPost, "/api/labels", ts.token,
		map[string]any{"item_id": item.ID})
	var label model.Label
	decode(t, resp, &label)

	// Without the parameter the whole pending queue is returned.
	resp = ts.do(t, http.MethodGet, "/api/labels/print", "", nil)
	var batch []model.Label
	decode(t, resp, &batch)
	if len(batch) != 1 || batch[0].ID != label.ID {
		t.Errorf("default batch = %+v", batch)
	}

	// An ids parameter that resolves to no valid ids selects nothing.
	resp = ts.do(t, http.MethodGet, "/api/labels/print?ids=abc", "", nil)
	decode(t, resp, &batch)
	if resp.StatusCode != http.StatusOK || len(batch) != 0 {
		t.Errorf("garbage ids batch = %d %+v", resp.StatusCode, batch)
	}

	resp = ts.do(t, http.MethodGet, "/api/labels/print?ids=", "", nil)
	decode(t, resp, &batch)
	if len(batch) != 0 {
		t.Errorf("empty ids batch = %+v", batch)
	}
}

func TestCreateItemConflictsAndValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/items", ts.token,
		map[string]any{"name": "Gloves", "code": "GLV-01", "balance": 5})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPost, "/api/items", ts.token,
		map[string]any{"name": "Other", "code": "GLV-01", "balance": 5})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate code status = %d, want 409", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPost, "/api/items", ts.token,
		map[string]any{"name": "", "balance": 5})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty name status = %d, want 400", resp.StatusCode)
	}
}

func TestReplenishLenientQuantity(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/items", ts.token,
		map[string]any{"name": "Gloves", "balance": 3})
	var item model.Item
	decode(t, resp, &item)

	// Quantity arrives as a string; it still applies.
	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/api/items/%d/replenish", item.ID), ts.token,
		map[string]any{"quantity": "7"})
	var result struct {
		Item    model.Item `json:"item"`
		Applied bool       `json:"applied"`
	}
	decode(t, resp, &result)
	if !result.Applied || result.Item.Balance != 10 {
		t.Errorf("replenish = applied %v, balance %d", result.Applied, result.Item.Balance)
	}

	// Garbage quantity degrades to a no-op.
	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/api/items/%d/replenish", item.ID), ts.token,
		map[string]any{"quantity": "lots"})
	decode(t, resp, &result)
	if resp.StatusCode != http.StatusOK || result.Applied {
		t.Errorf("garbage replenish = %d applied %v", resp.StatusCode, result.Applied)
	}
	if result.Item.Balance != 10 {
		t.Errorf("balance = %d after no-op, want 10", result.Item.Balance)
	}
}

func TestHandOutRecipientCookie(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/items", ts.token,
		map[string]any{"name": "Gloves", "balance": 10})
	var item model.Item
	decode(t, resp, &item)

	// A named recipient sets the cookie.
	resp = ts.do(t, http.MethodPost, "/api/handout", ts.token,
		map[string]any{"code": item.Code, "recipient": "Maria"})
	resp.Body.Close()
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "recipient" {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != "Maria" {
		t.Fatalf("recipient cookie = %+v", cookie)
	}

	// An anonymous hand-out falls back to the cookie.
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/handout",
		bytes.NewBufferString(fmt.Sprintf(`{"code":%q}`, item.Code)))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ts.token)
	req.AddCookie(cookie)

	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatalf("handing out: %v", err)
	}
	var handout struct {
		Movement model.Movement `json:"movement"`
	}
	decode(t, resp, &handout)
	if handout.Movement.Recipient != "Maria" {
		t.Errorf("recipient = %q, want cookie fallback", handout.Movement.Recipient)
	}

	// Without body or cookie the placeholder is used.
	resp = ts.do(t, http.MethodPost, "/api/handout", ts.token,
		map[string]any{"code": item.Code})
	decode(t, resp, &handout)
	if handout.Movement.Recipient != defaultRecipient {
		t.Errorf("recipient = %q, want %q", handout.Movement.Recipient, defaultRecipient)
	}
}

func TestBarcodeEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/barcodes/EPI000001", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("barcode status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}

	resp = ts.do(t, http.MethodGet, "/api/barcodes/..%2Fescape", "", nil)
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Error("traversal code served")
	}
}

func TestReportsDownload(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/items", ts.token,
		map[string]any{"name": "Gloves", "balance": 10})
	var item model.Item
	decode(t, resp, &item)
	resp = ts.do(t, http.MethodPost, "/api/handout", ts.token,
		map[string]any{"code": item.Code, "recipient": "Maria"})
	resp.Body.Close()

	for _, path := range []string{"/api/reports/movements.xlsx", "/api/reports/stock.xlsx"} {
		resp := ts.do(t, http.MethodGet, path, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != xlsxContentType {
			t.Errorf("%s content type = %q", path, ct)
		}
	}
}

func TestMovementsDateFilterFormat(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/items", ts.token,
		map[string]any{"name": "Gloves", "balance": 10})
	var item model.Item
	decode(t, resp, &item)
	resp = ts.do(t, http.MethodPost, "/api/handout", ts.token,
		map[string]any{"code": item.Code, "recipient": "Maria"})
	resp.Body.Close()

	// Day-first dates; dashes are accepted as separators.
	resp = ts.do(t, http.MethodGet, "/api/movements?from=01-01-2020&to=31-12-2999", "", nil)
	var movements []model.Movement
	decode(t, resp, &movements)
	if len(movements) != 1 {
		t.Errorf("got %d movements in range, want 1", len(movements))
	}

	// An unparseable date disables the filter instead of erroring.
	resp = ts.do(t, http.MethodGet, "/api/movements?from=yesterday", "", nil)
	decode(t, resp, &movements)
	if len(movements) != 1 {
		t.Errorf("got %d movements with bad date, want 1", len(movements))
	}
}
