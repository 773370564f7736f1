package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meurenda/internal/core"
	"meurenda/internal/goals"
	"meurenda/internal/localstore"
	applog "meurenda/internal/log"
	"meurenda/internal/middleware/ratelimit"
	"meurenda/internal/report"
	"meurenda/internal/services"
	"meurenda/internal/state"
)

type failingPersister struct{ err error }

func (f failingPersister) Load(context.Context) (state.Snapshot, error) { return state.Snapshot{}, nil }
func (f failingPersister) SaveTransactions(context.Context, []core.Transaction) error {
	return f.err
}
func (f failingPersister) SaveGoals(context.Context, []core.Goal) error { return f.err }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestServer(t *testing.T, persister state.Persister, opts Options) *Server {
	t.Helper()
	logger := applog.New(applog.Config{Output: io.Discard})
	if persister == nil {
		fs, err := localstore.New(t.TempDir(), nil)
		require.NoError(t, err)
		persister = fs
	}
	finance := services.NewFinanceService(state.NewStore(), persister, nil, logger)
	finance.SetClock(func() time.Time { return time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC) })

	opts.Finance = finance
	opts.Logger = logger
	srv := NewServer(opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, nil, Options{Pinger: pinger{}})

	rr := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	down := newTestServer(t, nil, Options{Pinger: pinger{err: errors.New("database is closed")}})
	rr = do(t, down, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "database is closed")
}

func TestTransactionEndpoints(t *testing.T) {
	srv := newTestServer(t, nil, Options{})

	rr := do(t, srv, http.MethodPost, "/api/transactions",
		`{"date":"2024-04-10","amount":"1.234,50","type":"income","description":"Corridas"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[core.Transaction](t, rr)
	assert.Equal(t, core.Income, created.Type)
	assert.True(t, created.Amount.Equal(decimal.RequireFromString("1234.5")))
	assert.Empty(t, rr.Header().Get(HeaderPersistenceError))

	rr = do(t, srv, http.MethodPost, "/api/transactions",
		`{"date":"2024-04-09","amount":80,"type":"EXPENSE","category":"Gasolina"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/api/transactions?type=expense", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.Transaction](t, rr), 1)

	rr = do(t, srv, http.MethodGet, "/api/transactions", "")
	assert.Len(t, decode[[]core.Transaction](t, rr), 2)

	rr = do(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decode[ErrorResponse](t, rr).Error, "not found")

	rr = do(t, srv, http.MethodDelete, "/api/transactions", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/api/transactions?type=EXPENSE", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, rr)["removed"])
}

func TestCreateTransactionRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, nil, Options{})

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed", `{"date":`, http.StatusBadRequest},
		{"unknown field", `{"date":"2024-04-10","amount":1,"type":"INCOME","extra":true}`, http.StatusBadRequest},
		{"bad amount", `{"date":"2024-04-10","amount":"abc","type":"INCOME"}`, http.StatusUnprocessableEntity},
		{"missing amount", `{"date":"2024-04-10","type":"INCOME"}`, http.StatusUnprocessableEntity},
		{"missing date", `{"amount":1,"type":"INCOME"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"date":"10/04/2024","amount":1,"type":"INCOME"}`, http.StatusUnprocessableEntity},
		{"bad type", `{"date":"2024-04-10","amount":1,"type":"LOAN"}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/transactions", tc.body)
			assert.Equal(t, tc.status, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, rr).Error)
		})
	}
}

func TestPersistenceErrorHeader(t *testing.T) {
	srv := newTestServer(t, failingPersister{err: errors.New("disk full")}, Options{})

	rr := do(t, srv, http.MethodPost, "/api/transactions", `{"date":"2024-04-10","amount":1,"type":"INCOME"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "transactions: disk full", rr.Header().Get(HeaderPersistenceError))

	rr = do(t, srv, http.MethodPost, "/api/reset", "")
	assert.Equal(t, "transactions: disk full; goals: disk full", rr.Header().Get(HeaderPersistenceError))

	rr = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestGoalEndpoints(t *testing.T) {
	srv := newTestServer(t, nil, Options{})

	rr := do(t, srv, http.MethodGet, "/api/goals/active/plan", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodPut, "/api/goals", `{"type":"MONTHLY","targetValue":1000,"selectedWeekDays":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodPost, "/api/goals/preview", `{"type":"WEEKLY","targetValue":"500","selectedWeekDays":[1,2,3,4,5]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	plan := decode[goals.Plan](t, rr)
	assert.Equal(t, 5, plan.WorkDays)
	assert.True(t, plan.MarginFallback)

	rr = do(t, srv, http.MethodPut, "/api/goals", `{"type":"WEEKLY","targetValue":500,"selectedWeekDays":[1,2,3,4,5],"isActive":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decode[core.Goal](t, rr)
	assert.NotEmpty(t, first.ID)

	rr = do(t, srv, http.MethodPut, "/api/goals", `{"type":"CUSTOM","targetValue":300,"customTotalDays":3}`)
	require.Equal(t, http.StatusOK, rr.Code)
	second := decode[core.Goal](t, rr)

	rr = do(t, srv, http.MethodPost, "/api/goals/"+second.ID+"/activate", "")
	require.Equal(t, http.StatusOK, rr.Code)
	for _, g := range decode[[]core.Goal](t, rr) {
		assert.Equal(t, g.ID == second.ID, g.IsActive)
	}

	rr = do(t, srv, http.MethodPost, "/api/goals/missing/activate", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/goals/active/plan", "")
	require.Equal(t, http.StatusOK, rr.Code)
	pr := decode[PlanResponse](t, rr)
	assert.Equal(t, second.ID, pr.Goal.ID)
	assert.True(t, pr.Plan.DailyProfitNeeded.Equal(decimal.NewFromInt(100)))

	rr = do(t, srv, http.MethodGet, "/api/goals/active/tracking", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]goals.DayStatus](t, rr), 7)

	rr = do(t, srv, http.MethodDelete, "/api/goals/"+first.ID, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/api/goals", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]core.Goal](t, rr))
}

func TestReportsDashboardAndReset(t *testing.T) {
	srv := newTestServer(t, nil, Options{})
	do(t, srv, http.MethodPost, "/api/transactions", `{"date":"2024-04-10","amount":200,"type":"INCOME"}`)
	do(t, srv, http.MethodPost, "/api/transactions", `{"date":"2024-04-02","amount":50,"type":"EXPENSE"}`)

	rr := do(t, srv, http.MethodGet, "/api/reports?period=daily", "")
	require.Equal(t, http.StatusOK, rr.Code)
	rep := decode[report.Report](t, rr)
	assert.True(t, rep.Totals.Income.Equal(decimal.NewFromInt(200)))
	assert.True(t, rep.Totals.Expenses.IsZero())

	rr = do(t, srv, http.MethodGet, "/api/reports?period=CUSTOM&start=2024-04-01&end=2024-04-05", "")
	require.Equal(t, http.StatusOK, rr.Code)
	rep = decode[report.Report](t, rr)
	assert.True(t, rep.Totals.Expenses.Equal(decimal.NewFromInt(50)))
	assert.Len(t, rep.Chart, 5)

	rr = do(t, srv, http.MethodGet, "/api/reports?period=CUSTOM&start=2024-04-05&end=2024-04-01", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(t, srv, http.MethodGet, "/api/reports?period=YEARLY", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rr.Code)
	dash := decode[report.Dashboard](t, rr)
	assert.True(t, dash.Totals.NetProfit.Equal(decimal.NewFromInt(150)))

	rr = do(t, srv, http.MethodGet, "/api/categories", "")
	assert.Equal(t, core.ExpenseCategories, decode[[]string](t, rr))

	rr = do(t, srv, http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, srv, http.MethodGet, "/api/transactions", "")
	assert.Empty(t, decode[[]core.Transaction](t, rr))
}

func TestWebhookRouteIsOptional(t *testing.T) {
	srv := newTestServer(t, nil, Options{})
	rr := do(t, srv, http.MethodPost, "/webhooks/kiwify", "{}")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	hit := false
	srv = newTestServer(t, nil, Options{Webhook: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.WriteHeader(http.StatusOK)
	})})
	rr = do(t, srv, http.MethodPost, "/webhooks/kiwify", "{}")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, hit)
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	srv := newTestServer(t, nil, Options{RateLimit: ratelimit.Config{RequestsPerMinute: 2}})

	for i := 0; i < 2; i++ {
		rr := do(t, srv, http.MethodPost, "/api/reset", "")
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	rr = do(t, srv, http.MethodGet, "/api/transactions", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWebhookIsNotRateLimited(t *testing.T) {
	hits := 0
	srv := newTestServer(t, nil, Options{
		RateLimit: ratelimit.Config{RequestsPerMinute: 2},
		Webhook: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			w.WriteHeader(http.StatusOK)
		}),
	})

	for i := 0; i < 10; i++ {
		rr := do(t, srv, http.MethodPost, "/webhooks/kiwify", "{}")
		require.Equal(t, http.StatusOK, rr.Code, "delivery %d", i)
	}
	assert.Equal(t, 10, hits)

	for i := 0; i < 2; i++ {
		do(t, srv, http.MethodPost, "/api/reset", "")
	}
	rr := do(t, srv, http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestHandlerLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelDebug, Format: "json", Output: &buf})
	fs, err := localstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	finance := services.NewFinanceService(state.NewStore(), fs, nil, logger)
	srv := NewServer(Options{Finance: finance, Logger: logger})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	req := httptest.NewRequest(http.MethodGet, "/api/reports?period=daily", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		if entry["msg"] == "Report built" {
			found = true
			assert.Equal(t, "abc-123", entry["request_id"])
		}
	}
	assert.True(t, found, "report log line not written: %s", buf.String())
}

func TestBlockedMethod(t *testing.T) {
	srv := newTestServer(t, nil, Options{})
	rr := do(t, srv, "TRACE", "/api/transactions", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, nil, Options{})
	do(t, srv, http.MethodGet, "/healthz", "")
	rr := do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_requests_total 2")
	assert.Contains(t, rr.Body.String(), "transactions 0")
}
