package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pfm/internal/advice"
	"pfm/internal/core"
	pfmlog "pfm/internal/log"
	"pfm/internal/services"
	"pfm/internal/sheets/memory"
	"pfm/internal/sheets/xlsx"
)

type fakeAdvisor struct {
	reply string
	err   error
}

func (f fakeAdvisor) GetAdvice(context.Context, string) (string, error) { return f.reply, f.err }

type brokenStore struct{}

func (brokenStore) Load(context.Context) ([]core.Transaction, error) {
	return nil, errors.New("disk on fire")
}
func (brokenStore) Save(context.Context, []core.Transaction) error { return errors.New("disk on fire") }

func newTestServer(t *testing.T, store *memory.Store, adv services.Advisor) *Server {
	t.Helper()
	svc := services.NewLedgerService(store, nil, adv, nil)
	return newTestServerWith(t, svc)
}

func newTestServerWith(t *testing.T, ledger Ledger) *Server {
	t.Helper()
	logger := pfmlog.New(pfmlog.Config{Format: "text", Output: io.Discard})
	srv, err := NewServer(":0", ledger, logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(srv.rateLimiter.stop)
	return srv
}

func do(srv *Server, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func postForm(srv *Server, values url.Values) *httptest.ResponseRecorder {
	return do(srv, http.MethodPost, "/expenses", strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
}

func TestIndexAndHealth(t *testing.T) {
	store := memory.New(core.NewTransaction("2024-01-01", "Milk", decimal.RequireFromString("3.5"), "Groceries"))
	srv := newTestServer(t, store, fakeAdvisor{})

	rr := do(srv, http.MethodGet, "/", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"Total expenditure: <strong>3.50</strong>",
		`<option value="Groceries">`,
		`name="amount" step="0.01"`,
		`value="` + time.Now().Format(dateLayout) + `"`,
		exportPath,
		`<script src="/static/app.js" defer></script>`,
		`id="notifications"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if csp := rr.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "https://unpkg.com") {
		t.Errorf("CSP = %q", csp)
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, http.MethodGet, path, nil, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestStaticScriptHandlesTriggers(t *testing.T) {
	srv := newTestServer(t, memory.New(), fakeAdvisor{})

	rr := do(srv, http.MethodGet, "/static/app.js", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	for _, event := range []string{eventFormReset, eventNotify} {
		if !strings.Contains(rr.Body.String(), `"`+event+`"`) {
			t.Errorf("app.js does not listen for %s", event)
		}
	}
}

func TestIndexRecommendationsAction(t *testing.T) {
	srv := newTestServer(t, memory.New(), fakeAdvisor{})

	rr := do(srv, http.MethodGet, "/?action=recommendations", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `hx-get="/ui/recommendations"`) {
		t.Error("recommendations mode should load the partial")
	}
	if !strings.Contains(body, "external advice service") {
		t.Error("missing privacy notice")
	}
	if strings.Contains(body, `id="expense-form"`) {
		t.Error("recommendations mode should not render the form")
	}
}

func TestCreateExpenseValidationAndSuccess(t *testing.T) {
	store := memory.New()
	srv := newTestServer(t, store, fakeAdvisor{})

	tests := []struct {
		name     string
		values   url.Values
		wantCode int
		wantBody string
	}{
		{
			name:     "bad amount",
			values:   url.Values{"date": {"2024-01-01"}, "description": {"x"}, "amount": {"abc"}, "category": {"Groceries"}},
			wantCode: http.StatusUnprocessableEntity,
			wantBody: "Invalid amount",
		},
		{
			name:     "unknown category",
			values:   url.Values{"date": {"2024-01-01"}, "description": {"x"}, "amount": {"1"}, "category": {"Travel"}},
			wantCode: http.StatusUnprocessableEntity,
			wantBody: "Unknown category",
		},
		{
			name:     "missing category",
			values:   url.Values{"date": {"2024-01-01"}, "description": {"x"}, "amount": {"1"}},
			wantCode: http.StatusUnprocessableEntity,
			wantBody: "Category is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postForm(srv, tt.values)
			if rr.Code != tt.wantCode {
				t.Fatalf("status=%d want %d", rr.Code, tt.wantCode)
			}
			if !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body %q missing %q", rr.Body.String(), tt.wantBody)
			}
		})
	}
	if store.Saves() != 0 {
		t.Fatalf("rejected input must not be saved, saves=%d", store.Saves())
	}

	rr := postForm(srv, url.Values{"date": {"2024-01-02"}, "description": {"<b>Cinema</b>"}, "amount": {"12.5"}, "category": {"entertainment"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("success status=%d body=%s", rr.Code, rr.Body.String())
	}
	if trig := rr.Header().Get("HX-Trigger"); !strings.Contains(trig, `"expense:created":{"count":1}`) {
		t.Errorf("HX-Trigger = %q", trig)
	}
	body := rr.Body.String()
	if !strings.Contains(body, exportPath) {
		t.Error("success fragment should link to the download")
	}
	if strings.Contains(body, "<b>Cinema</b>") {
		t.Error("description must be escaped")
	}

	txs, _ := store.Load(context.Background())
	if len(txs) != 1 || txs[0].Category != "entertainment" || !txs[0].Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("stored = %+v", txs)
	}
}

func TestCreateExpenseJSON(t *testing.T) {
	store := memory.New()
	srv := newTestServer(t, store, fakeAdvisor{})

	rr := do(srv, http.MethodPost, "/expenses",
		strings.NewReader(`{"date":"2024-03-01","description":"Power","amount":40.25,"category":"Utilities"}`),
		"application/json")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"amount":"40.25"`) || rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("JSON reply = %s", rr.Body.String())
	}
	txs, _ := store.Load(context.Background())
	if len(txs) != 1 || !txs[0].Amount.Equal(decimal.RequireFromString("40.25")) {
		t.Fatalf("stored = %+v", txs)
	}

	rr = do(srv, http.MethodPost, "/expenses",
		strings.NewReader(`{"amount":"1","category":"Travel"}`), "application/json")
	if rr.Code != http.StatusUnprocessableEntity || rr.Body.String() != `{"error":"Unknown category"}` {
		t.Fatalf("invalid JSON input: %d %s", rr.Code, rr.Body.String())
	}

	rr = do(srv, http.MethodPost, "/expenses", strings.NewReader(`{"date":`), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed JSON status=%d", rr.Code)
	}
}

func TestTotalsPartial(t *testing.T) {
	store := memory.New(
		core.NewTransaction("d", "a", decimal.RequireFromString("10"), "groceries"),
		core.NewTransaction("d", "b", decimal.RequireFromString("5.25"), "Groceries"),
		core.NewTransaction("d", "c", decimal.RequireFromString("2"), "utilities"),
	)
	srv := newTestServer(t, store, fakeAdvisor{})

	rr := do(srv, http.MethodGet, "/ui/totals", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"<strong>17.25</strong>", "<td>Groceries</td><td class=\"num\">15.25</td>", "<td>Investments</td><td class=\"num\">0.00</td>"} {
		if !strings.Contains(body, want) {
			t.Errorf("totals missing %q in %s", want, body)
		}
	}
}

func TestRecommendationsPartial(t *testing.T) {
	seed := []core.Transaction{
		core.NewTransaction("d", "a", decimal.RequireFromString("10"), "groceries"),
		core.NewTransaction("d", "b", decimal.RequireFromString("500"), "investments"),
	}

	t.Run("advice text and groups", func(t *testing.T) {
		srv := newTestServer(t, memory.New(seed...), fakeAdvisor{reply: "Spend less on snacks."})
		rr := do(srv, http.MethodGet, "/ui/recommendations", nil, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		body := rr.Body.String()
		if !strings.Contains(body, "Spend less on snacks.") {
			t.Error("missing advice text")
		}
		if strings.Count(body, `class="group"`) != 2 {
			t.Errorf("want 2 groups in %s", body)
		}
	})

	t.Run("status failure shows raw body", func(t *testing.T) {
		aerr := &advice.Error{Kind: advice.KindStatus, StatusCode: 502, Body: `{"error":"<upstream>"}`}
		srv := newTestServer(t, memory.New(seed...), fakeAdvisor{err: aerr})
		rr := do(srv, http.MethodGet, "/ui/recommendations", nil, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		body := rr.Body.String()
		for _, want := range []string{"HTTP 502", "&lt;upstream&gt;", "<pre class=\"raw\">"} {
			if !strings.Contains(body, want) {
				t.Errorf("diagnostic missing %q in %s", want, body)
			}
		}
	})

	t.Run("empty budget", func(t *testing.T) {
		srv := newTestServer(t, memory.New(), fakeAdvisor{reply: "ok"})
		rr := do(srv, http.MethodGet, "/ui/recommendations", nil, "")
		if !strings.Contains(rr.Body.String(), "No transactions yet.") {
			t.Errorf("body = %s", rr.Body.String())
		}
	})
}

func TestExport(t *testing.T) {
	seed := []core.Transaction{
		core.NewTransaction("2024-01-01", "Milk", decimal.RequireFromString("3.5"), "groceries"),
		core.NewTransaction("2024-01-02", "Rent", decimal.RequireFromString("900"), "utilities"),
	}
	srv := newTestServer(t, memory.New(seed...), fakeAdvisor{})

	rr := do(srv, http.MethodGet, exportPath, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != xlsx.ContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="transactions.xlsx"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	got, err := xlsx.Decode(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(got) != len(seed) {
		t.Fatalf("got %d rows, want %d", len(got), len(seed))
	}
	for i := range seed {
		if !got[i].Equal(seed[i]) {
			t.Errorf("row %d = %+v, want %+v", i, got[i], seed[i])
		}
	}
}

func TestStoreFailures(t *testing.T) {
	svc := services.NewLedgerService(brokenStore{}, nil, fakeAdvisor{}, nil)
	srv := newTestServerWith(t, svc)

	for _, path := range []string{"/", "/ui/totals", "/ui/recommendations", exportPath} {
		rr := do(srv, http.MethodGet, path, nil, "")
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("%s status=%d, want 500", path, rr.Code)
		}
	}
	rr := postForm(srv, url.Values{"amount": {"1"}, "category": {"Groceries"}})
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("POST status=%d, want 500", rr.Code)
	}
	rr = do(srv, http.MethodGet, "/readyz", nil, "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status=%d, want 503", rr.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	var logs bytes.Buffer
	logger := pfmlog.New(pfmlog.Config{Format: "json", Output: &logs})
	srv, err := NewServer(":0", services.NewLedgerService(memory.New(), nil, nil, nil), logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(srv.rateLimiter.stop)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	srv.Handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
	if !strings.Contains(logs.String(), `"request_id":"abc-123"`) {
		t.Errorf("completion log lacks request id: %s", logs.String())
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 65))
	srv.Handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("oversized id should be replaced by a UUID, got %q", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := &rateLimiter{clients: map[string]*clientInfo{}, requestsPerMinute: 2, stopCleanup: make(chan struct{})}
	now := time.Now()

	for i, want := range []bool{true, true, false} {
		if got := rl.allowAt("1.2.3.4", now); got != want {
			t.Fatalf("request %d allowed=%v want %v", i, got, want)
		}
	}
	if !rl.allowAt("5.6.7.8", now) {
		t.Error("other clients are limited separately")
	}
	if !rl.allowAt("1.2.3.4", now.Add(61*time.Second)) {
		t.Error("window should reset after a minute")
	}

	rl.cleanupStaleEntries(now.Add(20 * time.Minute))
	if len(rl.clients) != 0 {
		t.Errorf("stale clients left: %d", len(rl.clients))
	}
	rl.stop()
	rl.stop()
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.9:4000", "", "203.0.113.9"},
		{"untrusted peer ignores header", "203.0.113.9:4000", "1.1.1.1", "203.0.113.9"},
		{"trusted proxy", "10.0.0.2:4000", "198.51.100.7, 10.0.0.2", "198.51.100.7"},
		{"trusted proxy bad header", "127.0.0.1:4000", "garbage", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := map[string]bool{
		"/":                     false,
		"/ui/totals":            false,
		"/../../etc/passwd":     true,
		"/.env":                 true,
		"/?file=../secret":      true,
		"/wp-admin/install.php": true,
	}
	for target, want := range tests {
		r := httptest.NewRequest(http.MethodGet, target, nil)
		if got := detectSuspiciousRequest(r); got != want {
			t.Errorf("%s: got %v want %v", target, got, want)
		}
	}
}
