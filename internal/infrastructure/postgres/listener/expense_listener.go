package listener

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const (
	DefaultChannel    = "expenses_changed"
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// ChangeNotification is the payload the expenses trigger sends with NOTIFY.
type ChangeNotification struct {
	Op     string `json:"op"`
	UserID string `json:"user_id"`
}

type subscriber struct {
	userID string
	notify func()
}

// ExpenseListener turns NOTIFY events on the expenses channel into wake-ups
// for the subscribed users.
//
// The LISTEN connection is opened when the first subscriber arrives and
// closed when the last one leaves.
type ExpenseListener struct {
	connStr string
	channel string
	log     logrus.FieldLogger

	// run holds the connection loop until ctx ends. Replaced in tests.
	run func(ctx context.Context)

	mu     sync.Mutex
	subs   map[uint64]subscriber
	nextID uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// NewExpenseListener creates a listener for channel, or DefaultChannel when empty.
func NewExpenseListener(connStr, channel string, log logrus.FieldLogger) *ExpenseListener {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	l := &ExpenseListener{
		connStr: connStr,
		channel: channel,
		log:     log.WithField("channel", channel),
		subs:    make(map[uint64]subscriber),
	}
	l.run = l.listen
	return l
}

// Subscribe calls notify whenever userID's expenses change. The returned
// release func is safe to call more than once.
func (l *ExpenseListener) Subscribe(userID string, notify func()) (func(), error) {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.subs[id] = subscriber{userID: userID, notify: notify}
	if l.cancel == nil {
		l.startLocked()
	}
	l.mu.Unlock()

	return sync.OnceFunc(func() { l.release(id) }), nil
}

func (l *ExpenseListener) release(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.subs, id)
	if len(l.subs) == 0 && l.cancel != nil {
		l.cancel()
		l.cancel = nil
		l.log.Info("Expense notification listener stopping")
	}
}

func (l *ExpenseListener) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	go func() {
		defer close(done)
		l.run(ctx)
	}()
	l.log.Info("Expense notification listener started")
}

// Close stops the connection loop regardless of remaining subscribers and
// waits for it to exit.
func (l *ExpenseListener) Close() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.subs = make(map[uint64]subscriber)
	l.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Subscribers returns the number of active subscriptions.
func (l *ExpenseListener) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

func (l *ExpenseListener) listen(ctx context.Context) {
	for attempt := 0; ; attempt++ {
		l.connectAndListen(ctx, attempt > 0)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			l.log.Info("Reconnecting to PostgreSQL for expense notifications")
		}
	}
}

func (l *ExpenseListener) connectAndListen(ctx context.Context, reconnect bool) {
	pl := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.log.Debug("Connected to notification channel")
		case pq.ListenerEventDisconnected:
			l.log.WithError(err).Warn("Disconnected from notification channel")
		case pq.ListenerEventReconnected:
			l.log.Info("Reconnected to notification channel")
		case pq.ListenerEventConnectionAttemptFailed:
			l.log.WithError(err).Warn("Notification channel connection attempt failed")
		}
	})
	defer pl.Close()

	if err := pl.Listen(l.channel); err != nil {
		l.log.WithError(err).Error("Failed to listen for expense notifications")
		return
	}

	// Changes made while disconnected were not seen.
	if reconnect {
		l.wakeAll()
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-pl.Notify:
			if !ok {
				return
			}
			if n == nil {
				// pq sends nil after re-establishing the connection.
				l.wakeAll()
				continue
			}
			l.dispatch(n.Extra)
		case <-ticker.C:
			go func() {
				if err := pl.Ping(); err != nil {
					l.log.WithError(err).Warn("Listener ping failed")
				}
			}()
		}
	}
}

// dispatch wakes the subscribers of the user named in payload, or everyone
// when the payload carries no user.
func (l *ExpenseListener) dispatch(payload string) {
	var n ChangeNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil || n.UserID == "" {
		if err != nil {
			l.log.WithError(err).Debug("Unparsable expense notification")
		}
		l.wakeAll()
		return
	}

	for _, notify := range l.targets(func(s subscriber) bool { return s.userID == n.UserID }) {
		notify()
	}
}

func (l *ExpenseListener) wakeAll() {
	for _, notify := range l.targets(func(subscriber) bool { return true }) {
		notify()
	}
}

func (l *ExpenseListener) targets(match func(subscriber) bool) []func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []func()
	for _, s := range l.subs {
		if match(s) {
			out = append(out, s.notify)
		}
	}
	return out
}
