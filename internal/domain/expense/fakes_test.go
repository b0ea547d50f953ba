package expense

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// fakeBackend is an in-memory Repository and CategoryRepository.
// With legacy set it behaves like a backend whose expense table has no
// category_id column.
type fakeBackend struct {
	mu sync.Mutex

	legacy     bool
	tables     map[string][]Category
	rows       []Row
	nextID     int
	clock      time.Time
	checks     []string
	listErr    error
	insertErr  error
	deleteErr  error
	namesErr   error
	insertions []InsertParams
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tables: map[string][]Category{
			"categories": {
				{ID: "cat-food", Name: "Food"},
				{ID: "cat-transport", Name: "Transport"},
			},
		},
		clock: time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC),
	}
}

func missingColumnErr() error {
	return errors.New(`column expenses.category_id does not exist`)
}

func (f *fakeBackend) List(ctx context.Context, userID string, opts ListOptions) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	if opts.IncludeCategory && f.legacy {
		return nil, missingColumnErr()
	}

	out := make([]Row, 0, len(f.rows))
	for i := len(f.rows) - 1; i >= 0; i-- {
		row := f.rows[i]
		if !opts.IncludeCategory {
			row.CategoryID = nil
		}
		out = append(out, row)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeBackend) Insert(ctx context.Context, params InsertParams) (*Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.insertions = append(f.insertions, params)
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	if params.IncludeCategory && f.legacy {
		return nil, missingColumnErr()
	}

	f.nextID++
	f.clock = f.clock.Add(time.Minute)
	row := Row{
		ID:          fmt.Sprintf("exp-%03d", f.nextID),
		Description: params.Description,
		Amount:      params.Amount,
		CreatedAt:   f.clock,
	}
	if params.CategoryID != nil {
		id := *params.CategoryID
		row.CategoryID = &id
	}
	f.rows = append(f.rows, row)
	return &row, nil
}

func (f *fakeBackend) Delete(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, row := range f.rows {
		if row.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeBackend) CheckTable(ctx context.Context, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.checks = append(f.checks, table)
	if _, ok := f.tables[table]; !ok {
		return fmt.Errorf(`relation "public.%s" does not exist`, table)
	}
	return nil
}

func (f *fakeBackend) FindByName(ctx context.Context, table, name string, caseInsensitive bool) (*Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range f.tables[table] {
		if c.Name == name || (caseInsensitive && strings.EqualFold(c.Name, name)) {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) NamesByID(ctx context.Context, table string, ids []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.namesErr != nil {
		return nil, f.namesErr
	}
	names := make(map[string]string)
	for _, c := range f.tables[table] {
		for _, id := range ids {
			if c.ID == id {
				names[id] = c.Name
			}
		}
	}
	return names, nil
}

func (f *fakeBackend) seed(id, description string, amount float64, categoryID string, createdAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row := Row{
		ID:          id,
		Description: description,
		Amount:      decimal.NewFromFloat(amount),
		CreatedAt:   createdAt,
	}
	if categoryID != "" {
		row.CategoryID = &categoryID
	}
	f.rows = append(f.rows, row)
}

func (f *fakeBackend) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.checks)
}

// memoryCache is a CategoryCache that outlives the stores built on it.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
	setErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]string)}
}

func (c *memoryCache) Load(ctx context.Context, ids []string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string)
	for _, id := range ids {
		if name, ok := c.entries[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func (c *memoryCache) Set(ctx context.Context, id, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[id] = name
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

func (c *memoryCache) get(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.entries[id]
	return name, ok
}

// MockChangefeed implements Changefeed for testing
type MockChangefeed struct {
	mu       sync.Mutex
	acquired int
	released int
	notify   func()
	err      error
}

func (m *MockChangefeed) Subscribe(userID string, notify func()) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.acquired++
	m.notify = notify
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.released++
	}, nil
}

func (m *MockChangefeed) fire() {
	m.mu.Lock()
	notify := m.notify
	m.mu.Unlock()
	if notify != nil {
		notify()
	}
}

func (m *MockChangefeed) counts() (acquired, released int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired, m.released
}

// syncScheduler runs refreshes inline so tests can observe their effect.
type syncScheduler struct {
	mu    sync.Mutex
	calls int
}

func (s *syncScheduler) ScheduleRefresh(userID string, refresh func(ctx context.Context) error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	_ = refresh(context.Background())
}

func (s *syncScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestStore(backend *fakeBackend, cache CategoryCache) *Store {
	return newTestStoreWith(backend, cache, Deps{})
}

func newTestStoreWith(backend *fakeBackend, cache CategoryCache, deps Deps) *Store {
	deps.Expenses = backend
	deps.Categories = NewCategoryResolver(backend)
	deps.Cache = cache
	if deps.Scheduler == nil {
		deps.Scheduler = &syncScheduler{}
	}
	s, err := NewStore("user-1", deps)
	if err != nil {
		panic(err)
	}
	return s
}
