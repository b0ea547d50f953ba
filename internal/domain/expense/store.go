package expense

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	storeMeter         = otel.Meter("gastos/expense")
	refreshTotal, _    = storeMeter.Int64Counter("expense.refresh.total", metric.WithDescription("Expense refreshes by outcome"))
	mutationTotal, _   = storeMeter.Int64Counter("expense.mutation.total", metric.WithDescription("Settled expense mutations by kind and state"))
	observerCounter, _ = storeMeter.Int64UpDownCounter("expense.observers", metric.WithDescription("Registered store observers"))
)

// Deps are the collaborators a Store is built from.
type Deps struct {
	Expenses   Repository
	Categories *CategoryResolver
	Cache      CategoryCache

	// Optional
	Changefeed Changefeed
	Scheduler  RefreshScheduler
	Logger     logrus.FieldLogger
	PageSize   int
	OnMutation func(Mutation)
}

type observer struct {
	id uint64
	fn func()
}

// Store is one signed-in user's in-memory mirror of the remote expense table.
//
// State is guarded by mu, which is never held across backend or cache I/O.
// Concurrent writes settle in completion order; the last one to settle wins.
type Store struct {
	userID     string
	repo       Repository
	categories *CategoryResolver
	cache      CategoryCache
	feed       Changefeed
	scheduler  RefreshScheduler
	log        logrus.FieldLogger
	pageSize   int
	onMutation func(Mutation)

	mu        sync.Mutex
	rows      []Expense
	transient map[string]string
	lastErr   error
	hydrated  bool

	observers   []observer
	nextID      uint64
	feedHeld    bool
	feedGen     uint64
	releaseFeed func()
}

// NewStore creates the store for userID.
func NewStore(userID string, deps Deps) (*Store, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrNotSignedIn
	}
	if deps.Expenses == nil || deps.Categories == nil || deps.Cache == nil {
		return nil, errors.New("expense repository, category resolver and category cache are required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	s := &Store{
		userID:     userID,
		repo:       deps.Expenses,
		categories: deps.Categories,
		cache:      deps.Cache,
		feed:       deps.Changefeed,
		scheduler:  deps.Scheduler,
		log:        logger.WithField("user_id", userID),
		pageSize:   pageSize,
		onMutation: deps.OnMutation,
		transient:  make(map[string]string),
	}
	if s.scheduler == nil {
		s.scheduler = goScheduler{log: s.log}
	}
	return s, nil
}

// UserID returns the owner of the store.
func (s *Store) UserID() string {
	return s.userID
}

// Rows returns a snapshot of the collection, newest first.
func (s *Store) Rows() []Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rows)
}

// LastError returns the message of the most recent failed refresh, or "".
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return ""
	}
	return s.lastErr.Error()
}

// Hydrated reports whether at least one refresh has succeeded.
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// Observed reports whether any observer is registered.
func (s *Store) Observed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers) > 0
}

// Subscribe registers fn to run after every change to the collection.
// Observers run synchronously, in registration order.
//
// The first observer acquires the realtime changefeed and schedules a
// hydration refresh; the feed is released when the last observer leaves.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observer{id: id, fn: fn})
	acquire := !s.feedHeld
	var gen uint64
	if acquire {
		s.feedHeld = true
		s.feedGen++
		gen = s.feedGen
	}
	s.mu.Unlock()

	observerCounter.Add(context.Background(), 1)

	if acquire {
		s.acquireFeed(gen)
	}
	return sync.OnceFunc(func() { s.unsubscribe(id) })
}

func (s *Store) unsubscribe(id uint64) {
	s.mu.Lock()
	s.observers = slices.DeleteFunc(slices.Clone(s.observers), func(o observer) bool { return o.id == id })
	var release func()
	if len(s.observers) == 0 && s.feedHeld {
		s.feedHeld = false
		release = s.releaseFeed
		s.releaseFeed = nil
	}
	s.mu.Unlock()

	observerCounter.Add(context.Background(), -1)

	if release != nil {
		release()
		s.log.Debug("Released expense changefeed")
	}
}

func (s *Store) acquireFeed(gen uint64) {
	var release func()
	if s.feed != nil {
		r, err := s.feed.Subscribe(s.userID, s.scheduleRefresh)
		if err != nil {
			s.log.WithError(err).Warn("Realtime subscription failed; expenses refresh on demand only")
		} else {
			release = r
		}
	}

	s.mu.Lock()
	if !s.feedHeld || s.feedGen != gen {
		s.mu.Unlock()
		if release != nil {
			release()
		}
		return
	}
	s.releaseFeed = release
	s.mu.Unlock()

	s.scheduleRefresh()
}

func (s *Store) scheduleRefresh() {
	s.scheduler.ScheduleRefresh(s.userID, s.Refresh)
}

func (s *Store) notify() {
	s.mu.Lock()
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	for _, o := range observers {
		o.fn()
	}
}

func (s *Store) settle(m *Mutation, cause error) {
	var err error
	if cause == nil {
		err = m.commit()
	} else {
		err = m.rollBack(cause)
	}
	if err != nil {
		s.log.WithError(err).Error("Mutation settled twice")
		return
	}

	mutationTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", string(m.Kind)),
		attribute.String("state", m.State.String()),
	))
	if s.onMutation != nil {
		s.onMutation(*m)
	}
}

// sortExpenses orders newest first, ties broken by descending id.
func sortExpenses(rows []Expense) {
	slices.SortStableFunc(rows, func(a, b Expense) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}

type goScheduler struct {
	log logrus.FieldLogger
}

func (g goScheduler) ScheduleRefresh(userID string, refresh func(ctx context.Context) error) {
	go func() {
		if err := refresh(context.Background()); err != nil {
			g.log.WithError(err).Warn("Background refresh failed")
		}
	}()
}
