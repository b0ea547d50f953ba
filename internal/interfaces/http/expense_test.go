package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastos/internal/domain/expense"
	"gastos/internal/infrastructure/localcache"
	"gastos/internal/shared/middleware"
)

const testUser = "7b0c7e52-8f3f-4c55-9d7e-0a4f1f7b6a11"

// MockExpenseRepo implements expense.Repository for testing
type MockExpenseRepo struct {
	ListFunc   func(ctx context.Context, userID string, opts expense.ListOptions) ([]expense.Row, error)
	InsertFunc func(ctx context.Context, params expense.InsertParams) (*expense.Row, error)
	DeleteFunc func(ctx context.Context, userID, id string) error
}

func (m *MockExpenseRepo) List(ctx context.Context, userID string, opts expense.ListOptions) ([]expense.Row, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID, opts)
	}
	return nil, nil
}

func (m *MockExpenseRepo) Insert(ctx context.Context, params expense.InsertParams) (*expense.Row, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockExpenseRepo) Delete(ctx context.Context, userID, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, id)
	}
	return nil
}

// MockCategoryRepo implements expense.CategoryRepository for testing
type MockCategoryRepo struct {
	CheckTableFunc func(ctx context.Context, table string) error
	FindByNameFunc func(ctx context.Context, table, name string, caseInsensitive bool) (*expense.Category, error)
	NamesByIDFunc  func(ctx context.Context, table string, ids []string) (map[string]string, error)
}

func (m *MockCategoryRepo) CheckTable(ctx context.Context, table string) error {
	if m.CheckTableFunc != nil {
		return m.CheckTableFunc(ctx, table)
	}
	return nil
}

func (m *MockCategoryRepo) FindByName(ctx context.Context, table, name string, caseInsensitive bool) (*expense.Category, error) {
	if m.FindByNameFunc != nil {
		return m.FindByNameFunc(ctx, table, name, caseInsensitive)
	}
	return nil, nil
}

func (m *MockCategoryRepo) NamesByID(ctx context.Context, table string, ids []string) (map[string]string, error) {
	if m.NamesByIDFunc != nil {
		return m.NamesByIDFunc(ctx, table, ids)
	}
	return map[string]string{}, nil
}

// foodCategories knows a single category, Food.
func foodCategories() *MockCategoryRepo {
	return &MockCategoryRepo{
		FindByNameFunc: func(_ context.Context, _, name string, caseInsensitive bool) (*expense.Category, error) {
			if name == "Food" || (caseInsensitive && strings.EqualFold(name, "food")) {
				return &expense.Category{ID: "cat-food", Name: "Food"}, nil
			}
			return nil, nil
		},
		NamesByIDFunc: func(_ context.Context, _ string, ids []string) (map[string]string, error) {
			return map[string]string{"cat-food": "Food"}, nil
		},
	}
}

type immediateScheduler struct{}

func (immediateScheduler) ScheduleRefresh(_ string, refresh func(ctx context.Context) error) {
	_ = refresh(context.Background())
}

func newTestHandler(t *testing.T, repo *MockExpenseRepo, cats *MockCategoryRepo) (*ExpenseHandler, *expense.Registry) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	registry := expense.NewRegistry(expense.Deps{
		Expenses:   repo,
		Categories: expense.NewCategoryResolver(cats),
		Cache:      localcache.NewMemory(),
		Scheduler:  immediateScheduler{},
		Logger:     logger,
	})
	h := NewExpenseHandler(registry, time.UTC, logger)
	h.now = func() time.Time { return time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC) }
	return h, registry
}

func authed(req *http.Request, userID string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

func catID(id string) *string { return &id }

func sampleRows() []expense.Row {
	return []expense.Row{
		{ID: "e1", Description: "lunch", Amount: decimal.NewFromInt(100), CategoryID: catID("cat-food"), CreatedAt: time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC)},
		{ID: "e2", Description: "jeep", Amount: decimal.NewFromInt(50), CreatedAt: time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)},
		{ID: "e3", Description: "books", Amount: decimal.NewFromInt(25), CreatedAt: time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)},
		{ID: "e4", Description: "gift", Amount: decimal.NewFromInt(10), CreatedAt: time.Date(2025, 12, 31, 8, 0, 0, 0, time.UTC)},
	}
}

func decodeSnapshot(t *testing.T, body *bytes.Buffer) Snapshot {
	t.Helper()
	var snap Snapshot
	require.NoError(t, json.NewDecoder(body).Decode(&snap))
	return snap
}

func TestHandleList(t *testing.T) {
	var calls int
	repo := &MockExpenseRepo{
		ListFunc: func(_ context.Context, userID string, opts expense.ListOptions) ([]expense.Row, error) {
			calls++
			assert.Equal(t, testUser, userID)
			return sampleRows(), nil
		},
	}
	h, _ := newTestHandler(t, repo, foodCategories())

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.HandleList(rr, authed(httptest.NewRequest(http.MethodGet, "/api/expenses/", nil), testUser))

		require.Equal(t, http.StatusOK, rr.Code)
		snap := decodeSnapshot(t, rr.Body)
		assert.True(t, snap.Hydrated)
		assert.Empty(t, snap.LastError)
		require.Len(t, snap.Expenses, 4)
		assert.Equal(t, "e1", snap.Expenses[0].ID)
		assert.Equal(t, "Food", snap.Expenses[0].CategoryName)
	}
	assert.Equal(t, 1, calls, "only the first request hydrates")
}

func TestHandleList_Filter(t *testing.T) {
	repo := &MockExpenseRepo{
		ListFunc: func(context.Context, string, expense.ListOptions) ([]expense.Row, error) {
			return sampleRows(), nil
		},
	}
	h, _ := newTestHandler(t, repo, foodCategories())

	tests := []struct {
		query string
		want  []string
	}{
		{"?category=food", []string{"e1"}},
		{"?category=ALL&q=JEEP", []string{"e2"}},
		{"?q=uncategorized", []string{"e2", "e3", "e4"}},
		{"?category=Health", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.HandleList(rr, authed(httptest.NewRequest(http.MethodGet, "/api/expenses/"+tt.query, nil), testUser))

			require.Equal(t, http.StatusOK, rr.Code)
			snap := decodeSnapshot(t, rr.Body)
			ids := []string{}
			for _, e := range snap.Expenses {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestHandleList_BackendFailure(t *testing.T) {
	repo := &MockExpenseRepo{
		ListFunc: func(context.Context, string, expense.ListOptions) ([]expense.Row, error) {
			return nil, errors.New("connection refused")
		},
	}
	h, _ := newTestHandler(t, repo, foodCategories())

	rr := httptest.NewRecorder()
	h.HandleList(rr, authed(httptest.NewRequest(http.MethodGet, "/api/expenses/", nil), testUser))

	require.Equal(t, http.StatusOK, rr.Code)
	snap := decodeSnapshot(t, rr.Body)
	assert.False(t, snap.Hydrated)
	assert.Contains(t, snap.LastError, "connection refused")
	assert.NotNil(t, snap.Expenses)
	assert.Empty(t, snap.Expenses)
}

func TestHandleList_NotSignedIn(t *testing.T) {
	h, registry := newTestHandler(t, &MockExpenseRepo{}, foodCategories())

	rr := httptest.NewRecorder()
	h.HandleList(rr, httptest.NewRequest(http.MethodGet, "/api/expenses/", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "must be signed in", strings.TrimSpace(rr.Body.String()))
	assert.Zero(t, registry.Len())
}

func TestHandleAdd(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		insertErr      error
		expectedStatus int
		wantAmount     string
		wantCategory   string
	}{
		{"typed amount", `{"description":"coffee","amount":"₱23.20","category":"food"}`, nil, http.StatusCreated, "23.2", "Food"},
		{"numeric amount", `{"description":"jeep","amount":13}`, nil, http.StatusCreated, "13", ""},
		{"negative amount", `{"description":"refund","amount":-5}`, nil, http.StatusCreated, "0", ""},
		{"missing amount", `{"description":"free"}`, nil, http.StatusCreated, "0", ""},
		{"unknown category", `{"description":"kibble","amount":5,"category":"Pets"}`, nil, http.StatusUnprocessableEntity, "", ""},
		{"backend failure", `{"description":"coffee","amount":5}`, errors.New("insert refused"), http.StatusBadGateway, "", ""},
		{"bad body", `{"description":`, nil, http.StatusBadRequest, "", ""},
		{"bad amount", `{"description":"x","amount":true}`, nil, http.StatusBadRequest, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inserted *expense.InsertParams
			repo := &MockExpenseRepo{
				InsertFunc: func(_ context.Context, params expense.InsertParams) (*expense.Row, error) {
					if tt.insertErr != nil {
						return nil, tt.insertErr
					}
					inserted = &params
					return &expense.Row{
						ID:          "new-1",
						Description: params.Description,
						Amount:      params.Amount,
						CategoryID:  params.CategoryID,
						CreatedAt:   time.Date(2026, 1, 14, 9, 30, 0, 0, time.UTC),
					}, nil
				},
			}
			h, _ := newTestHandler(t, repo, foodCategories())

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/expenses/", strings.NewReader(tt.body))
			h.HandleAdd(rr, authed(req, testUser))

			require.Equal(t, tt.expectedStatus, rr.Code, rr.Body.String())
			if tt.expectedStatus != http.StatusCreated {
				return
			}

			require.NotNil(t, inserted)
			assert.Equal(t, tt.wantAmount, inserted.Amount.String())

			var created expense.Expense
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
			assert.Equal(t, "new-1", created.ID)
			assert.Equal(t, tt.wantCategory, created.CategoryName)
		})
	}
}

func TestHandleDelete(t *testing.T) {
	tests := []struct {
		name           string
		deleteErr      error
		expectedStatus int
		wantRows       int
	}{
		{"Success", nil, http.StatusNoContent, 3},
		{"Backend refuses", errors.New("permission denied"), http.StatusBadGateway, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockExpenseRepo{
				ListFunc: func(context.Context, string, expense.ListOptions) ([]expense.Row, error) {
					return sampleRows(), nil
				},
				DeleteFunc: func(_ context.Context, userID, id string) error {
					assert.Equal(t, testUser, userID)
					assert.Equal(t, "e2", id)
					return tt.deleteErr
				},
			}
			h, registry := newTestHandler(t, repo, foodCategories())
			store, err := registry.For(testUser)
			require.NoError(t, err)
			require.NoError(t, store.Refresh(context.Background()))

			req := authed(httptest.NewRequest(http.MethodDelete, "/api/expenses/e2", nil), testUser)
			req.SetPathValue("id", "e2")
			rr := httptest.NewRecorder()
			h.HandleDelete(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Len(t, store.Rows(), tt.wantRows)
		})
	}
}

func TestHandleDelete_MissingID(t *testing.T) {
	h, _ := newTestHandler(t, &MockExpenseRepo{}, foodCategories())

	rr := httptest.NewRecorder()
	h.HandleDelete(rr, authed(httptest.NewRequest(http.MethodDelete, "/api/expenses/", nil), testUser))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleRefresh(t *testing.T) {
	fail := false
	repo := &MockExpenseRepo{
		ListFunc: func(context.Context, string, expense.ListOptions) ([]expense.Row, error) {
			if fail {
				return nil, errors.New("timeout")
			}
			return sampleRows(), nil
		},
	}
	h, _ := newTestHandler(t, repo, foodCategories())

	rr := httptest.NewRecorder()
	h.HandleRefresh(rr, authed(httptest.NewRequest(http.MethodPost, "/api/expenses/refresh", nil), testUser))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeSnapshot(t, rr.Body).Expenses, 4)

	fail = true
	rr = httptest.NewRecorder()
	h.HandleRefresh(rr, authed(httptest.NewRequest(http.MethodPost, "/api/expenses/refresh", nil), testUser))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "timeout")

	// The previous snapshot is still served.
	rr = httptest.NewRecorder()
	h.HandleList(rr, authed(httptest.NewRequest(http.MethodGet, "/api/expenses/", nil), testUser))
	snap := decodeSnapshot(t, rr.Body)
	assert.Len(t, snap.Expenses, 4)
	assert.Contains(t, snap.LastError, "timeout")
}

func TestHandleSummary(t *testing.T) {
	repo := &MockExpenseRepo{
		ListFunc: func(context.Context, string, expense.ListOptions) ([]expense.Row, error) {
			return sampleRows(), nil
		},
	}
	h, _ := newTestHandler(t, repo, foodCategories())

	rr := httptest.NewRecorder()
	h.HandleSummary(rr, authed(httptest.NewRequest(http.MethodGet, "/api/expenses/summary", nil), testUser))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp SummaryResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "₱100.00", resp.TodayFormatted)
	assert.Equal(t, "₱150.00", resp.WeekFormatted)
	assert.Equal(t, "₱175.00", resp.MonthFormatted)
	assert.Equal(t, "January 2026", resp.MonthLabel)
	assert.Equal(t, "Second Week of Jan, 2026", resp.WeekLabel)
	assert.Equal(t, "UTC", resp.Timezone)
	require.NotEmpty(t, resp.ByCategoryMonth)
	assert.Equal(t, "Food", resp.ByCategoryMonth[0].Category)
	require.Len(t, resp.WeekDays, 7)
	assert.Equal(t, "2026-01-12", resp.WeekDays[0].Date)
	assert.Equal(t, "50", resp.WeekDays[0].Total.String())
	assert.Equal(t, "100", resp.WeekDays[2].Total.String())
}

func TestHandleSignOut(t *testing.T) {
	repo := &MockExpenseRepo{
		ListFunc: func(context.Context, string, expense.ListOptions) ([]expense.Row, error) {
			return sampleRows(), nil
		},
	}
	h, registry := newTestHandler(t, repo, foodCategories())

	rr := httptest.NewRecorder()
	h.HandleList(rr, authed(httptest.NewRequest(http.MethodGet, "/api/expenses/", nil), testUser))
	require.Equal(t, http.StatusOK, rr.Code)
	before, err := registry.For(testUser)
	require.NoError(t, err)

	rr = httptest.NewRecorder()
	h.HandleSignOut(rr, authed(httptest.NewRequest(http.MethodPost, "/api/signout", nil), testUser))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	after, err := registry.For(testUser)
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.False(t, after.Hydrated(), "the next session starts from a fresh load")
}

func TestHandleSummary_Timezone(t *testing.T) {
	h, _ := newTestHandler(t, &MockExpenseRepo{}, foodCategories())

	rr := httptest.NewRecorder()
	h.HandleSummary(rr, authed(httptest.NewRequest(http.MethodGet, "/api/expenses/summary?tz=Asia/Manila", nil), testUser))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp SummaryResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Asia/Manila", resp.Timezone)
	assert.Equal(t, "₱0.00", resp.MonthFormatted)

	rr = httptest.NewRecorder()
	h.HandleSummary(rr, authed(httptest.NewRequest(http.MethodGet, "/api/expenses/summary?tz=Nowhere/Land", nil), testUser))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{expense.ErrNotSignedIn, http.StatusUnauthorized},
		{expense.ErrCategoryNotFound, http.StatusUnprocessableEntity},
		{expense.ErrCategoryTableMissing, http.StatusUnprocessableEntity},
		{errors.New("backend down"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestHandleStream(t *testing.T) {
	var mu sync.Mutex
	rows := sampleRows()[:1]
	repo := &MockExpenseRepo{
		ListFunc: func(context.Context, string, expense.ListOptions) ([]expense.Row, error) {
			mu.Lock()
			defer mu.Unlock()
			return append([]expense.Row(nil), rows...), nil
		},
		InsertFunc: func(_ context.Context, params expense.InsertParams) (*expense.Row, error) {
			return &expense.Row{ID: "new-1", Description: params.Description, Amount: params.Amount, CreatedAt: time.Now()}, nil
		},
	}
	h, registry := newTestHandler(t, repo, foodCategories())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.HandleStream(w, authed(r, testUser))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan Snapshot, 8)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var snap Snapshot
			if json.Unmarshal([]byte(data), &snap) == nil {
				events <- snap
			}
		}
		close(events)
	}()

	waitFor := func(match func(Snapshot) bool) Snapshot {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case snap, ok := <-events:
				require.True(t, ok, "stream ended early")
				if match(snap) {
					return snap
				}
			case <-deadline:
				t.Fatal("timed out waiting for snapshot")
			}
		}
	}

	// Subscribing hydrates the store.
	waitFor(func(s Snapshot) bool { return s.Hydrated && len(s.Expenses) == 1 })

	store, err := registry.For(testUser)
	require.NoError(t, err)
	_, err = store.Add(context.Background(), expense.AddInput{Description: "coffee", Amount: 5})
	require.NoError(t, err)

	snap := waitFor(func(s Snapshot) bool { return len(s.Expenses) == 2 })
	assert.Equal(t, "new-1", snap.Expenses[0].ID)
}
