package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famfin/internal/cache"
	"famfin/internal/core"
	"famfin/internal/services"
	"famfin/internal/session"
	"famfin/internal/store/memory"
)

var testNow = time.Date(2024, time.January, 20, 9, 0, 0, 0, time.UTC)

type pingFunc func() error

func (f pingFunc) Ping(context.Context) error { return f() }

type testAPI struct {
	t     *testing.T
	srv   *Server
	store *memory.Store
}

func newTestAPI(t *testing.T, opts Options) *testAPI {
	t.Helper()
	s := memory.New()
	gens := cache.NewGenerations()
	issuer := session.NewIssuer("test-secret-0123456789", time.Hour)

	svc := Services{
		Family:    services.NewFamilyService(s, issuer, gens),
		Ledger:    services.NewLedgerService(s, nil, gens),
		Reports:   services.NewReportService(s, time.UTC, cache.NewLRUCache[core.FinancialReport](16, time.Minute), gens),
		Dashboard: services.NewDashboardService(s, time.UTC),
		Budget:    services.NewBudgetService(s, time.UTC),
		Reminders: services.NewReminderService(s, nil, time.UTC),
	}
	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = 10000
	}
	srv := NewServer(":0", svc, issuer, s, opts)
	srv.now = func() time.Time { return testNow }
	t.Cleanup(func() { srv.limiter.Stop() })
	return &testAPI{t: t, srv: srv, store: s}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

func (a *testAPI) register(email string) services.AuthResult {
	a.t.Helper()
	rr := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "correct-horse", "name": "Anna", "family_name": "Rossi",
	})
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[services.AuthResult](a.t, rr)
}

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := api.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"), path)
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"), path)
	}
}

func TestReadyReportsStoreFailure(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.srv.ready = pingFunc(func() error { return errors.New("database is closed") })

	rr := api.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t, Options{})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			api.srv.Handler.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.JSONEq(t, `{"error":"not authenticated"}`, rr.Body.String())
		})
	}
}

func TestRegisterLoginAndMe(t *testing.T) {
	api := newTestAPI(t, Options{})
	reg := api.register("anna@example.com")
	require.NotEmpty(t, reg.Token)
	assert.Equal(t, core.RoleAdmin, reg.User.Role)

	rr := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "ANNA@example.com", "password": "another-pass", "name": "Other", "family_name": "Other",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "anna@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "anna@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rr.Code)
	login := decode[services.AuthResult](t, rr)

	rr = api.do(http.MethodGet, "/api/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decode[meResponse](t, rr)
	assert.Equal(t, reg.User.ID, me.User.ID)
	assert.Equal(t, "Rossi", me.Family.Name)
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestRecordTransactionAndReport(t *testing.T) {
	api := newTestAPI(t, Options{})
	token := api.register("anna@example.com").Token

	rr := api.do(http.MethodPost, "/api/accounts", token, map[string]any{"name": "Checking", "type": "bank", "initial_balance": "1000"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	account := decode[core.Account](t, rr)

	rr = api.do(http.MethodPost, "/api/categories", token, map[string]any{"name": "Food", "icon": "🍕", "color": "red", "type": "expense"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	food := decode[core.Category](t, rr)

	rr = api.do(http.MethodPost, "/api/transactions", token, map[string]any{
		"type": "expense", "amount": "12.50", "date": "2024-01-15",
		"category_id": food.ID, "source_account_id": account.ID, "note": "pizza",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tx := decode[core.Transaction](t, rr)

	rr = api.do(http.MethodGet, "/api/transactions/"+tx.ID, token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(http.MethodGet, "/api/accounts", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	accounts := decode[[]core.Account](t, rr)
	require.Len(t, accounts, 1)
	assert.Equal(t, int64(98750), accounts[0].CurrentBalance.Cents)

	rr = api.do(http.MethodGet, "/api/reports?start=2024-01-01&end=2024-01-31&label=January", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	report := decode[core.FinancialReport](t, rr)
	assert.Equal(t, "January", report.Label)
	assert.Equal(t, int64(1250), report.TotalExpense.Cents)
	assert.Equal(t, int64(-1250), report.NetSavings.Cents)
	assert.Len(t, report.DailyStats, 31)
	require.Len(t, report.ExpenseCategoryStats, 1)
	assert.Equal(t, "Food", report.ExpenseCategoryStats[0].Name)
	assert.Equal(t, 100.0, report.ExpenseCategoryStats[0].Percentage)

	rr = api.do(http.MethodGet, "/api/reports/monthly?year=2024&month=1", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	monthly := decode[core.FinancialReport](t, rr)
	assert.Equal(t, "January 2024", monthly.Label)
	assert.Equal(t, int64(1250), monthly.TotalExpense.Cents)

	rr = api.do(http.MethodGet, "/api/reports/monthly?month=13", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = api.do(http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	dash := decode[core.DashboardStats](t, rr)
	assert.Equal(t, int64(98750), dash.TotalBalance.Cents)
	assert.Equal(t, int64(1250), dash.MonthlyExpense.Cents)
	assert.Len(t, dash.RecentTransactions, 1)
}

func TestRecordTransactionErrors(t *testing.T) {
	api := newTestAPI(t, Options{})
	token := api.register("anna@example.com").Token

	rr := api.do(http.MethodPost, "/api/accounts", token, map[string]any{"name": "Wallet", "type": "cash", "initial_balance": 50})
	require.Equal(t, http.StatusCreated, rr.Code)
	wallet := decode[core.Account](t, rr)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"negative amount", map[string]any{"type": "expense", "amount": -5, "source_account_id": wallet.ID}, http.StatusUnprocessableEntity},
		{"zero amount", map[string]any{"type": "expense", "amount": 0, "source_account_id": wallet.ID}, http.StatusUnprocessableEntity},
		{"oversized amount", map[string]any{"type": "expense", "amount": "10000000000000.01", "source_account_id": wallet.ID}, http.StatusUnprocessableEntity},
		{"unknown type", map[string]any{"type": "gift", "amount": 5, "source_account_id": wallet.ID}, http.StatusUnprocessableEntity},
		{"missing source", map[string]any{"type": "expense", "amount": 5}, http.StatusUnprocessableEntity},
		{"unknown account", map[string]any{"type": "expense", "amount": 5, "source_account_id": "nope"}, http.StatusNotFound},
		{"bad date", map[string]any{"type": "expense", "amount": 5, "source_account_id": wallet.ID, "date": "15/01/2024"}, http.StatusUnprocessableEntity},
		{"unknown field", map[string]any{"type": "expense", "amount": 5, "source_account_id": wallet.ID, "color": "red"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(http.MethodPost, "/api/transactions", token, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}

	rr = api.do(http.MethodGet, "/api/accounts", token, nil)
	accounts := decode[[]core.Account](t, rr)
	require.Len(t, accounts, 1)
	assert.Equal(t, int64(5000), accounts[0].CurrentBalance.Cents, "failed records leave balances untouched")
}

func TestReportValidation(t *testing.T) {
	api := newTestAPI(t, Options{})
	token := api.register("anna@example.com").Token

	tests := []struct {
		query string
		want  int
	}{
		{"", http.StatusBadRequest},
		{"?start=2024-01-01", http.StatusBadRequest},
		{"?start=2024-13-01&end=2024-12-31", http.StatusUnprocessableEntity},
		{"?start=2024-01-01&end=2024-01-01", http.StatusOK},
		{"?range=weekly", http.StatusOK},
		{"?range=yearly&date=2024-02-30", http.StatusUnprocessableEntity},
		{"?range=hourly", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := api.do(http.MethodGet, "/api/reports"+tt.query, token, nil)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestReportRanges(t *testing.T) {
	api := newTestAPI(t, Options{})
	token := api.register("anna@example.com").Token

	rr := api.do(http.MethodPost, "/api/accounts", token, map[string]any{"name": "Conto", "type": "bank", "initial_balance": 1000})
	require.Equal(t, http.StatusCreated, rr.Code)
	acct := decode[core.Account](t, rr)
	for _, date := range []string{"2023-12-31", "2024-01-15", "2024-01-17", "2024-06-03"} {
		rr = api.do(http.MethodPost, "/api/transactions", token, map[string]any{
			"type": "expense", "amount": 10, "source_account_id": acct.ID, "date": date,
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr = api.do(http.MethodGet, "/api/reports?range=yearly&date=2024-03-01", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	yearly := decode[core.FinancialReport](t, rr)
	assert.Equal(t, "2024", yearly.Label)
	assert.Equal(t, int64(3000), yearly.TotalExpense.Cents)
	require.Len(t, yearly.DailyStats, 3, "long spans list only active days")
	assert.Equal(t, "2024-01-15", yearly.DailyStats[0].Date)
	assert.Equal(t, "2024-06-03", yearly.DailyStats[2].Date)

	// defaults to the week of testNow, Saturday 20 January 2024
	rr = api.do(http.MethodGet, "/api/reports?range=weekly", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	weekly := decode[core.FinancialReport](t, rr)
	assert.Equal(t, "Week of 15 January 2024", weekly.Label)
	assert.Equal(t, int64(2000), weekly.TotalExpense.Cents)
	assert.Len(t, weekly.DailyStats, 7)

	rr = api.do(http.MethodGet, "/api/reports?range=daily&date=2023-12-31", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	daily := decode[core.FinancialReport](t, rr)
	assert.Equal(t, int64(1000), daily.TotalExpense.Cents)
}

func TestMembersAndRoles(t *testing.T) {
	api := newTestAPI(t, Options{})
	admin := api.register("anna@example.com")

	rr := api.do(http.MethodPost, "/api/members", admin.Token, map[string]any{
		"email": "marco@example.com", "password": "marco-pass", "name": "Marco",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	member := decode[core.User](t, rr)
	assert.Equal(t, core.RoleMember, member.Role)

	rr = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "marco@example.com", "password": "marco-pass"})
	require.Equal(t, http.StatusOK, rr.Code)
	memberToken := decode[services.AuthResult](t, rr).Token

	rr = api.do(http.MethodPost, "/api/categories", memberToken, map[string]any{"name": "Fun", "type": "expense"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(http.MethodPatch, "/api/members/"+admin.User.ID+"/role", admin.Token, map[string]any{"role": "member"})
	assert.Equal(t, http.StatusForbidden, rr.Code, "admins cannot demote themselves")

	rr = api.do(http.MethodPatch, "/api/members/"+member.ID+"/role", admin.Token, map[string]any{"role": "admin"})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = api.do(http.MethodGet, "/api/members", admin.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.User](t, rr), 2)
}

func TestDemotedAdminLosesRightsImmediately(t *testing.T) {
	api := newTestAPI(t, Options{})
	anna := api.register("anna@example.com")

	rr := api.do(http.MethodPost, "/api/members", anna.Token, map[string]any{
		"email": "marco@example.com", "password": "marco-pass", "name": "Marco", "role": "admin",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	marco := decode[core.User](t, rr)

	rr = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "marco@example.com", "password": "marco-pass"})
	require.Equal(t, http.StatusOK, rr.Code)
	marcoToken := decode[services.AuthResult](t, rr).Token

	rr = api.do(http.MethodPatch, "/api/members/"+marco.ID+"/role", anna.Token, map[string]any{"role": "member"})
	require.Equal(t, http.StatusNoContent, rr.Code)

	// Marco still holds a token issued while he was admin.
	rr = api.do(http.MethodPost, "/api/categories", marcoToken, map[string]any{"name": "Fun", "type": "expense"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(http.MethodPatch, "/api/members/"+anna.User.ID+"/role", marcoToken, map[string]any{"role": "member"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(http.MethodGet, "/api/me", anna.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, core.RoleAdmin, decode[meResponse](t, rr).User.Role)

	// Promotion takes effect on the existing token as well.
	rr = api.do(http.MethodPatch, "/api/members/"+marco.ID+"/role", anna.Token, map[string]any{"role": "admin"})
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = api.do(http.MethodPost, "/api/categories", marcoToken, map[string]any{"name": "Fun", "type": "expense"})
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestCategoryDelete(t *testing.T) {
	api := newTestAPI(t, Options{})
	token := api.register("anna@example.com").Token

	rr := api.do(http.MethodPost, "/api/categories", token, map[string]any{"name": "Salary", "type": "income"})
	require.Equal(t, http.StatusCreated, rr.Code)
	cat := decode[core.Category](t, rr)

	rr = api.do(http.MethodDelete, "/api/categories/"+cat.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = api.do(http.MethodDelete, "/api/categories/"+cat.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(http.MethodGet, "/api/categories", token, nil)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestBudget(t *testing.T) {
	api := newTestAPI(t, Options{})
	token := api.register("anna@example.com").Token

	rr := api.do(http.MethodGet, "/api/budget", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	empty := decode[core.GlobalBudget](t, rr)
	assert.Zero(t, empty.Limit.Cents)
	assert.Equal(t, core.Monthly, empty.Period)

	rr = api.do(http.MethodPost, "/api/accounts", token, map[string]any{"name": "Checking", "type": "bank", "initial_balance": 500})
	account := decode[core.Account](t, rr)
	rr = api.do(http.MethodPost, "/api/transactions", token, map[string]any{
		"type": "expense", "amount": 25, "date": "2024-01-10", "source_account_id": account.ID,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = api.do(http.MethodPut, "/api/budget", token, map[string]any{"amount_limit": "100"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	b := decode[core.GlobalBudget](t, rr)
	assert.Equal(t, int64(10000), b.Limit.Cents)
	assert.Equal(t, int64(2500), b.Spent.Cents)
	assert.Equal(t, int64(7500), b.Remaining.Cents)
	assert.Equal(t, 25.0, b.Percentage)

	rr = api.do(http.MethodPut, "/api/budget", token, map[string]any{"amount_limit": "100", "period": "yearly"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestReminderLifecycle(t *testing.T) {
	api := newTestAPI(t, Options{})
	token := api.register("anna@example.com").Token

	rr := api.do(http.MethodPost, "/api/reminders", token, map[string]any{
		"title": "Rent", "amount": 800, "next_due_date": "2024-01-31", "frequency": 1, "unit": "months",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rm := decode[core.Reminder](t, rr)
	assert.True(t, rm.IsActive)

	rr = api.do(http.MethodPatch, "/api/reminders/"+rm.ID, token, map[string]any{"is_active": false, "title": "Rent flat"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[core.Reminder](t, rr)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "Rent flat", updated.Title)
	assert.Equal(t, int64(80000), updated.Amount.Cents)

	rr = api.do(http.MethodPatch, "/api/reminders/"+rm.ID, token, map[string]any{"unit": "fortnights"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = api.do(http.MethodPost, "/api/reminders", token, map[string]any{"title": "No date", "amount": 1, "frequency": 1, "unit": "days"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(http.MethodDelete, "/api/reminders/"+rm.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = api.do(http.MethodGet, "/api/reminders", token, nil)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestFamiliesAreIsolated(t *testing.T) {
	api := newTestAPI(t, Options{})
	rossi := api.register("anna@example.com").Token
	bianchi := api.register("luca@example.com").Token

	rr := api.do(http.MethodPost, "/api/reminders", rossi, map[string]any{
		"title": "Rent", "amount": 800, "next_due_date": "2024-01-31", "frequency": 1, "unit": "months",
	})
	rm := decode[core.Reminder](t, rr)

	rr = api.do(http.MethodDelete, "/api/reminders/"+rm.ID, bianchi, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(http.MethodGet, "/api/reminders", bianchi, nil)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t, Options{RateLimitPerMinute: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, api.do(http.MethodGet, "/healthz", "", nil).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
