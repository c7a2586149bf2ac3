package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardspend/internal/auth"
	applog "cardspend/internal/log"
	"cardspend/internal/services"
	"cardspend/internal/storage/memory"
)

const statementCSV = "Descrição;Valor;Data\nUBER TRIP 1/3;R$ 23.90;2024-03-02\nPADARIA;12.50;2024-03-05\n"

func newTestServer(t *testing.T, opts Options) http.Handler {
	t.Helper()

	store := memory.NewWithDefaults()
	memSvc := services.NewMemoryService(store, nil)
	expenses := services.NewExpenseService(store, memSvc)
	categories := services.NewCategoryService(store)
	ingest := services.NewIngestService(store, nil)

	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	}

	srv := NewServer(":0", Services{
		Auth:       auth.NewService(store, auth.NewTokens("test-secret", 7*24*time.Hour)),
		Categories: categories,
		Expenses:   expenses,
		Ingest:     ingest,
		Memory:     memSvc,
		Suggest:    services.NewSuggestService(store, store),
		State:      services.NewStateService(expenses, categories, memSvc, ingest),
		Ping:       store.Ping,
	}, opts)
	t.Cleanup(func() { srv.limiter.Stop() })
	return srv.Handler
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func register(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/register", `{"email":"`+email+`","password":"s3cret"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[tokenResponse](t, rec).Token
}

func uploadRequest(t *testing.T, csv string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "statement.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPing(t *testing.T) {
	h := newTestServer(t, Options{})

	rec := do(t, h, http.MethodGet, "/api/ping", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", decode[map[string]string](t, rec)["message"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestHealthAndReadiness(t *testing.T) {
	h := newTestServer(t, Options{})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "", "").Code)
}

func TestMetrics(t *testing.T) {
	h := newTestServer(t, Options{})
	token := register(t, h, "ana@example.com")

	do(t, h, http.MethodGet, "/api/expenses", "", "")
	do(t, h, http.MethodGet, "/api/expenses", "", token)
	do(t, h, http.MethodPost, "/api/upload", "", "")
	do(t, h, "TRACE", "/api/ping", "", "")

	rec := do(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[metricsResponse](t, rec)
	assert.Equal(t, authMetrics{Failures: 1, Successes: 1, Anonymous: 1}, m.Auth)
	assert.Equal(t, int64(1), m.Security.SuspiciousRequests)
	assert.GreaterOrEqual(t, m.Requests.TotalRequests, int64(5))
}

func TestRegisterAndLogin(t *testing.T) {
	h := newTestServer(t, Options{})

	token := register(t, h, "ana@example.com")
	assert.NotEmpty(t, token)

	rec := do(t, h, http.MethodPost, "/api/register", `{"email":"ANA@example.com","password":"other"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/login", `{"email":"ana@example.com","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/login", `{"email":"nobody@example.com","password":"s3cret"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/login", `{"email":"ana@example.com","password":"s3cret"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[tokenResponse](t, rec).Token)

	rec = do(t, h, http.MethodPost, "/api/login", `{"email":"","password":""}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	long := strings.Repeat("x", 80)
	rec = do(t, h, http.MethodPost, "/api/register", `{"email":"bia@example.com","password":"`+long+`"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPost, "/api/login", `{"email":"ana@example.com","password":"`+long+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthErrors(t *testing.T) {
	h := newTestServer(t, Options{})

	rec := do(t, h, http.MethodGet, "/api/expenses", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token absent", decode[errorBody](t, rec).Error)

	rec = do(t, h, http.MethodGet, "/api/expenses", "", "not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token invalid", decode[errorBody](t, rec).Error)
}

func TestCreateExpensesDeduplicates(t *testing.T) {
	h := newTestServer(t, Options{})
	token := register(t, h, "ana@example.com")

	batch := `[
		{"description":"Mercado","amount":"R$ 10.00","date":"2024-03-01"},
		{"description":"Mercado","amount":10,"date":"2024-03-01"},
		{"title":"Cinema","amount":35.5,"date":"2024-03-04"}
	]`
	rec := do(t, h, http.MethodPost, "/api/expenses", batch, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, insertResponse{Success: true, Count: 2}, decode[insertResponse](t, rec))

	rec = do(t, h, http.MethodPost, "/api/expenses", batch, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[insertResponse](t, rec).Count)

	rec = do(t, h, http.MethodGet, "/api/expenses", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-03-04", list[0]["date"])
	assert.Equal(t, "Cinema", list[0]["description"])

	other := register(t, h, "bia@example.com")
	rec = do(t, h, http.MethodGet, "/api/expenses", "", other)
	assert.Empty(t, decode[[]map[string]any](t, rec))
}

func TestCreateExpensesRejectsBadBodies(t *testing.T) {
	h := newTestServer(t, Options{})
	token := register(t, h, "ana@example.com")

	for _, body := range []string{`[]`, `{"description":"x"}`, `not json`} {
		rec := do(t, h, http.MethodPost, "/api/expenses", body, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := do(t, h, http.MethodPost, "/api/expenses", `[{"description":"x","amount":"abc","date":"2024-03-01"}]`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/expenses", `[{"description":"x","amount":10000000000,"date":"2024-03-01"}]`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestMemoryNormalizesDescription(t *testing.T) {
	h := newTestServer(t, Options{})
	token := register(t, h, "ana@example.com")

	rec := do(t, h, http.MethodPost, "/api/memory", `{"description":"NETFLIX 1/12","category":"assinatura"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/memory?description=NETFLIX%207/12", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[recallResponse](t, rec)
	require.NotNil(t, got.Category)
	assert.Equal(t, "assinatura", *got.Category)

	rec = do(t, h, http.MethodGet, "/api/memory?description=SPOTIFY", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"category":null}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/memory", "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	other := register(t, h, "bia@example.com")
	rec = do(t, h, http.MethodGet, "/api/memory?description=NETFLIX", "", other)
	assert.JSONEq(t, `{"category":null}`, rec.Body.String())

	long := "Shop" + strings.Repeat("%201/1", 4<<10)
	rec = do(t, h, http.MethodGet, "/api/memory?description="+long, "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/suggest?description="+long, "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCategorizeRemembersAndSuggests(t *testing.T) {
	h := newTestServer(t, Options{})
	token := register(t, h, "ana@example.com")

	rec := do(t, h, http.MethodPost, "/api/expenses", `[{"description":"IFOOD 2/2","amount":42,"date":"2024-03-01"}]`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/expenses", "", token)
	id := int64(decode[[]map[string]any](t, rec)[0]["id"].(float64))

	rec = do(t, h, http.MethodPatch, "/api/expenses/"+jsonInt(id), `{"category":"Alimentação"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/suggest?description=IFOOD", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"category":"Alimentação","source":"memory"}`, rec.Body.String())

	rec = do(t, h, http.MethodPatch, "/api/expenses/999", `{"category":"x"}`, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/expenses/abc", `{"category":"x"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload(t *testing.T) {
	h := newTestServer(t, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, statementCSV))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, uploadResponse{Success: true, Count: 2, Inserted: 2}, decode[uploadResponse](t, rec))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, statementCSV))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uploadResponse{Success: true, Count: 2, Inserted: 0}, decode[uploadResponse](t, rec))
}

func TestUploadOwnedByCaller(t *testing.T) {
	h := newTestServer(t, Options{})
	token := register(t, h, "ana@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(statementCSV))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/expenses", "", token)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)
}

func TestUploadErrors(t *testing.T) {
	t.Run("invalid token", func(t *testing.T) {
		h := newTestServer(t, Options{})
		req := uploadRequest(t, statementCSV)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no file", func(t *testing.T) {
		h := newTestServer(t, Options{})
		rec := do(t, h, http.MethodPost, "/api/upload", `{}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing columns", func(t *testing.T) {
		h := newTestServer(t, Options{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, "foo,bar\n1,2\n"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		h := newTestServer(t, Options{MaxUploadBytes: 64})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, statementCSV+strings.Repeat("PADARIA;1.00;2024-03-05\n", 20)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestCategories(t *testing.T) {
	h := newTestServer(t, Options{})
	token := register(t, h, "ana@example.com")

	rec := do(t, h, http.MethodPost, "/api/categories", `{"name":"Viagem"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	id := int64(created["id"].(float64))

	rec = do(t, h, http.MethodPost, "/api/categories", `{"name":"Viagem"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/categories", `{"name":"  "}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/expenses", `[{"description":"Hotel","amount":300,"date":"2024-03-10","category":"Viagem"}]`, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/categories/"+jsonInt(id), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, successResponse{Success: true}, decode[successResponse](t, rec))

	rec = do(t, h, http.MethodDelete, "/api/categories/"+jsonInt(id), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, successResponse{Success: false}, decode[successResponse](t, rec))

	rec = do(t, h, http.MethodGet, "/api/categories", "", "")
	for _, c := range decode[[]map[string]any](t, rec) {
		assert.NotEqual(t, "Viagem", c["name"])
	}

	rec = do(t, h, http.MethodGet, "/api/expenses", "", token)
	list := decode[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Viagem", list[0]["category"])
}

func TestSummaryAndReports(t *testing.T) {
	h := newTestServer(t, Options{})
	token := register(t, h, "ana@example.com")

	rec := do(t, h, http.MethodPost, "/api/expenses", `[
		{"description":"Mercado","amount":100,"date":"2024-03-01","category":"Alimentação"},
		{"description":"Uber","amount":50,"date":"2024-03-02","category":"Transporte"},
		{"description":"Luz","amount":80,"date":"2024-02-10"}
	]`, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/summary", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	rec = do(t, h, http.MethodGet, "/api/summary?month=2024-03", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	months := decode[[]map[string]any](t, rec)
	require.Len(t, months, 1)
	assert.Equal(t, "2024-03", months[0]["month"])
	assert.EqualValues(t, 2, months[0]["count"])

	rec = do(t, h, http.MethodGet, "/api/summary?month=March", "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/reports/monthly.pdf?month=2024-03", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "cardspend-2024-03.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = do(t, h, http.MethodGet, "/api/reports/monthly.pdf?month=2023-01", "", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/reports/monthly.pdf", "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/reports/categories.png?month=2024-03", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestExportImport(t *testing.T) {
	h := newTestServer(t, Options{})
	ana := register(t, h, "ana@example.com")

	rec := do(t, h, http.MethodPost, "/api/expenses", `[
		{"description":"Mercado","amount":100,"date":"2024-03-01","category":"Alimentação"},
		{"description":"Luz","amount":80,"date":"2024-02-10"}
	]`, ana)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/export", "", ana)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "cardspend-all.json")
	exported := rec.Body.String()
	doc := decode[map[string]json.RawMessage](t, rec)
	assert.Contains(t, doc, "months")
	assert.Contains(t, doc, "categories")
	assert.Contains(t, doc, "categoryMemory")

	bia := register(t, h, "bia@example.com")
	rec = do(t, h, http.MethodPost, "/api/import", exported, bia)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[map[string]any](t, rec)
	assert.Equal(t, true, res["success"])
	assert.EqualValues(t, 2, res["inserted"])
	assert.EqualValues(t, 1, res["remembered"])

	rec = do(t, h, http.MethodPost, "/api/import", exported, bia)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, rec)["inserted"])

	rec = do(t, h, http.MethodPost, "/api/import", `{"months":[]}`, bia)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/import", `{`, bia)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	h := newTestServer(t, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodPost, "/api/login", `{"email":"a@b.c","password":"x"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/api/login", `{"email":"a@b.c","password":"x"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = do(t, h, http.MethodGet, "/api/ping", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, Options{CORSOrigin: "https://app.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/expenses", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestDiagnosticMethodsBlocked(t *testing.T) {
	h := newTestServer(t, Options{})
	rec := do(t, h, "TRACE", "/api/ping", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func jsonInt(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
