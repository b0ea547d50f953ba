package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gastos/internal/domain/expense"
	"gastos/internal/shared/middleware"
)

type ExpenseHandler struct {
	registry *expense.Registry
	loc      *time.Location
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewExpenseHandler serves the signed-in user's store from registry. loc is
// the default timezone of the summary endpoint.
func NewExpenseHandler(registry *expense.Registry, loc *time.Location, log logrus.FieldLogger) *ExpenseHandler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ExpenseHandler{
		registry: registry,
		loc:      loc,
		log:      log.WithField("component", "expense_handler"),
		now:      time.Now,
	}
}

// Snapshot is the store state sent to clients.
type Snapshot struct {
	Expenses  []expense.Expense `json:"expenses"`
	LastError string            `json:"lastError"`
	Hydrated  bool              `json:"hydrated"`
}

func snapshotOf(s *expense.Store) Snapshot {
	rows := s.Rows()
	if rows == nil {
		rows = []expense.Expense{}
	}
	return Snapshot{
		Expenses:  rows,
		LastError: s.LastError(),
		Hydrated:  s.Hydrated(),
	}
}

// AddExpenseRequest accepts the amount as a JSON number or as typed text
// such as "₱23.20".
type AddExpenseRequest struct {
	Description string          `json:"description"`
	Amount      json.RawMessage `json:"amount"`
	Category    string          `json:"category"`
}

func (req AddExpenseRequest) amount() (float64, error) {
	raw := bytes.TrimSpace(req.Amount)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
		return expense.ParseAmount(text).InexactFloat64(), nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// SummaryResponse is the dashboard payload.
type SummaryResponse struct {
	expense.Summary
	MonthLabel     string `json:"monthLabel"`
	WeekLabel      string `json:"weekLabel"`
	TodayFormatted string `json:"todayFormatted"`
	WeekFormatted  string `json:"weekFormatted"`
	MonthFormatted string `json:"monthFormatted"`
	Timezone       string `json:"timezone"`
}

// store returns the caller's store, hydrating it on first use. It writes the
// error response itself and returns nil when there is no store.
func (h *ExpenseHandler) store(w http.ResponseWriter, r *http.Request) *expense.Store {
	s, err := h.registry.For(middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return nil
	}
	if !s.Hydrated() {
		// Failures are reported through the snapshot's lastError.
		if err := s.Refresh(r.Context()); err != nil {
			h.log.WithError(err).WithField("user_id", s.UserID()).Warn("Initial expense load failed")
		}
	}
	return s
}

// HandleList returns the user's expenses. Optional ?category= and ?q=
// narrow the list the way the dashboard filter does.
func (h *ExpenseHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	s := h.store(w, r)
	if s == nil {
		return
	}

	snap := snapshotOf(s)
	q := r.URL.Query()
	if category, search := q.Get("category"), q.Get("q"); category != "" || search != "" {
		snap.Expenses = expense.Filter(snap.Expenses, category, search)
		if snap.Expenses == nil {
			snap.Expenses = []expense.Expense{}
		}
	}

	writeJSON(w, http.StatusOK, snap)
}

// HandleAdd records a new expense.
func (h *ExpenseHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.For(middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req AddExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	amount, err := req.amount()
	if err != nil {
		http.Error(w, "amount must be a number or text", http.StatusBadRequest)
		return
	}

	created, err := s.Add(r.Context(), expense.AddInput{
		Description: req.Description,
		Amount:      amount,
		Category:    req.Category,
	})
	if err != nil {
		h.log.WithError(err).WithField("user_id", s.UserID()).Warn("Add expense failed")
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// HandleDelete removes an expense. The store restores it if the backend
// refuses.
func (h *ExpenseHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.For(middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "Expense ID is required", http.StatusBadRequest)
		return
	}

	if err := s.Delete(r.Context(), id); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"user_id": s.UserID(), "expense_id": id}).Warn("Delete expense failed")
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRefresh forces a reload from the backend.
func (h *ExpenseHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.For(middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := s.Refresh(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshotOf(s))
}

// HandleSignOut drops the caller's store so that the next sign-in starts
// from a fresh load.
func (h *ExpenseHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	h.registry.Forget(middleware.UserID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// HandleSummary returns today, week and month totals. ?tz= overrides the
// default timezone.
func (h *ExpenseHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	loc := h.loc
	if tz := r.URL.Query().Get("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			http.Error(w, "Unknown timezone", http.StatusBadRequest)
			return
		}
		loc = l
	}

	s := h.store(w, r)
	if s == nil {
		return
	}

	now := h.now().In(loc)
	summary := expense.Summarize(s.Rows(), now, loc)

	writeJSON(w, http.StatusOK, SummaryResponse{
		Summary:        summary,
		MonthLabel:     expense.MonthLabel(now),
		WeekLabel:      expense.WeekLabel(now),
		TodayFormatted: expense.FormatCurrency(summary.Today),
		WeekFormatted:  expense.FormatCurrency(summary.Week),
		MonthFormatted: expense.FormatCurrency(summary.Month),
		Timezone:       loc.String(),
	})
}

// statusFor maps store errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, expense.ErrNotSignedIn):
		return http.StatusUnauthorized
	case errors.Is(err, expense.ErrCategoryNotFound), errors.Is(err, expense.ErrCategoryTableMissing):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (h *ExpenseHandler) writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
