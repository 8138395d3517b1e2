// Package listview drives the complaint and lead list screens: view mode,
// filters, paging and debounced search, plus a guard that drops responses
// which no longer match the current state.
package listview

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/crmconsole/internal/config"
	"github.com/pitabwire/crmconsole/internal/observability"
	"github.com/pitabwire/crmconsole/model"
)

// ViewMode selects the table or the board.
type ViewMode string

const (
	ModeList   ViewMode = "list"
	ModeKanban ViewMode = "kanban"
)

// Valid reports whether m is a known mode.
func (m ViewMode) Valid() bool {
	return m == ModeList || m == ModeKanban
}

// Defaults used when no options override them.
const (
	DefaultListLimit   = 10
	DefaultKanbanLimit = 500
	DefaultDebounce    = 300 * time.Millisecond
)

// Filters is implemented by the filter sets of each list.
type Filters[F any] interface {
	comparable
	SearchTerm() string
	WithSearch(string) F
	WithoutStatus() F
}

// State is the tuple that determines what the list shows.
type State[F any] struct {
	ViewMode ViewMode `json:"viewMode"`
	Filters  F        `json:"filters"`
	Page     int      `json:"page"`
}

// Params are the fetch parameters derived from a State.
type Params[F any] struct {
	Filters F   `json:"filters"`
	Page    int `json:"page"`
	Limit   int `json:"limit"`
}

// Status is the lifecycle of the current fetch.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result is what the view renders. Items and Pagination are set on success;
// Err and Message on failure.
type Result[T any] struct {
	Status     Status           `json:"status"`
	Items      []T              `json:"items,omitempty"`
	Pagination model.Pagination `json:"pagination"`
	Err        error            `json:"-"`
	Message    string           `json:"message,omitempty"`
}

// Fetcher loads one page for the given parameters.
type Fetcher[F any, T any] func(ctx context.Context, p Params[F]) (*model.ListResponse[T], error)

type settings struct {
	clock       Clock
	debounce    time.Duration
	listLimit   int
	kanbanLimit int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// Option configures a Controller.
type Option func(*settings)

// WithClock replaces the wall clock used by the debounce.
func WithClock(c Clock) Option { return func(s *settings) { s.clock = c } }

// WithDebounce sets the search quiet period.
func WithDebounce(d time.Duration) Option { return func(s *settings) { s.debounce = d } }

// WithLimits sets the page sizes of the list and kanban modes.
func WithLimits(list, kanban int) Option {
	return func(s *settings) {
		s.listLimit = list
		s.kanbanLimit = kanban
	}
}

// WithMetrics records discarded responses.
func WithMetrics(m *observability.Metrics) Option { return func(s *settings) { s.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *settings) { s.logger = l } }

// FromConfig applies the views section of the configuration.
func FromConfig(cfg config.ViewsConfig) Option {
	return func(s *settings) {
		if cfg.ListLimit > 0 {
			s.listLimit = cfg.ListLimit
		}
		if cfg.KanbanLimit > 0 {
			s.kanbanLimit = cfg.KanbanLimit
		}
		if cfg.SearchDebounce > 0 {
			s.debounce = cfg.SearchDebounce
		}
	}
}

// Controller holds the state of one list screen. It is safe for concurrent
// use; fetches run outside the lock.
type Controller[F Filters[F], T any] struct {
	resource string
	fetch    Fetcher[F, T]
	settings

	mu          sync.Mutex
	state       State[F]
	searchInput string
	timer       Timer
	timerSeq    uint64
	gen         uint64
	applied     uint64
	result      Result[T]

	auto     bool
	autoCtx  context.Context
	onResult []func(Result[T])
}

// New creates a Controller in list mode on page 1.
func New[F Filters[F], T any](resource string, fetch Fetcher[F, T], opts ...Option) *Controller[F, T] {
	s := settings{
		clock:       realClock{},
		debounce:    DefaultDebounce,
		listLimit:   DefaultListLimit,
		kanbanLimit: DefaultKanbanLimit,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return &Controller[F, T]{
		resource: resource,
		fetch:    fetch,
		settings: s,
		state:    State[F]{ViewMode: ModeList, Page: 1},
		result:   Result[T]{Status: StatusIdle},
	}
}

// AutoRefresh makes every committed state change start a fetch with ctx.
// Without it the owner calls Refresh.
func (c *Controller[F, T]) AutoRefresh(ctx context.Context) {
	c.mu.Lock()
	c.auto = true
	c.autoCtx = ctx
	c.mu.Unlock()
}

// OnResult registers fn to receive every applied result.
func (c *Controller[F, T]) OnResult(fn func(Result[T])) {
	c.mu.Lock()
	c.onResult = append(c.onResult, fn)
	c.mu.Unlock()
}

// State returns the committed state.
func (c *Controller[F, T]) State() State[F] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SearchInput returns the visible search text, which may be ahead of the
// committed filter.
func (c *Controller[F, T]) SearchInput() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searchInput
}

// Params returns the fetch parameters of the committed state.
func (c *Controller[F, T]) Params() Params[F] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paramsLocked()
}

func (c *Controller[F, T]) paramsLocked() Params[F] {
	if c.state.ViewMode == ModeKanban {
		return Params[F]{Filters: c.state.Filters.WithoutStatus(), Page: 1, Limit: c.kanbanLimit}
	}
	return Params[F]{Filters: c.state.Filters, Page: c.state.Page, Limit: c.listLimit}
}

// Result returns the last applied result.
func (c *Controller[F, T]) Result() Result[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// ShowPagination reports whether the pager should render: list mode with a
// successful result spanning more than one page.
func (c *Controller[F, T]) ShowPagination() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ViewMode == ModeList &&
		c.result.Status == StatusSuccess &&
		c.result.Pagination.TotalPages > 1
}

// SetViewMode switches mode and returns to page 1.
func (c *Controller[F, T]) SetViewMode(m ViewMode) {
	c.commit(func(s *State[F]) {
		s.ViewMode = m
		s.Page = 1
	})
}

// SetFilters replaces every filter, search included, and returns to page 1.
func (c *Controller[F, T]) SetFilters(f F) {
	c.mu.Lock()
	c.stopTimerLocked()
	c.searchInput = f.SearchTerm()
	c.mu.Unlock()

	c.commit(func(s *State[F]) {
		s.Filters = f
		s.Page = 1
	})
}

// UpdateFilters applies fn to the filters. A change returns to page 1.
func (c *Controller[F, T]) UpdateFilters(fn func(F) F) {
	c.commit(func(s *State[F]) {
		next := fn(s.Filters)
		if next != s.Filters {
			s.Filters = next
			s.Page = 1
		}
	})
}

// SetPage moves to page n. Pages beyond the last are the server's concern.
func (c *Controller[F, T]) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	c.commit(func(s *State[F]) { s.Page = n })
}

// Type records a keystroke. The visible input changes at once; the filter
// commits after the debounce period passes without another keystroke.
func (c *Controller[F, T]) Type(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.searchInput = value
	c.stopTimerLocked()
	c.timerSeq++
	seq := c.timerSeq
	c.timer = c.clock.AfterFunc(c.debounce, func() { c.fireDebounce(seq) })
}

// Submit commits the visible search text immediately.
func (c *Controller[F, T]) Submit() {
	c.mu.Lock()
	c.stopTimerLocked()
	value := c.searchInput
	c.mu.Unlock()

	c.commitSearch(value)
}

func (c *Controller[F, T]) fireDebounce(seq uint64) {
	c.mu.Lock()
	if seq != c.timerSeq || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	value := c.searchInput
	c.mu.Unlock()

	c.commitSearch(value)
}

func (c *Controller[F, T]) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerSeq++
}

func (c *Controller[F, T]) commitSearch(value string) {
	c.commit(func(s *State[F]) {
		if s.Filters.SearchTerm() == value {
			return
		}
		s.Filters = s.Filters.WithSearch(value)
		s.Page = 1
	})
}

// commit applies fn and, when the fetch tuple changed and auto refresh is
// on, starts a fetch.
func (c *Controller[F, T]) commit(fn func(*State[F])) {
	c.mu.Lock()
	before := c.paramsLocked()
	fn(&c.state)
	changed := before != c.paramsLocked()
	auto, ctx := c.auto, c.autoCtx
	c.mu.Unlock()

	if changed && auto {
		go c.Refresh(ctx)
	}
}

// Refresh fetches the current tuple. A response is applied only if the
// state still has the tuple it was fetched for and no newer fetch has been
// applied; otherwise it is discarded. The returned result is the one current
// after the call.
func (c *Controller[F, T]) Refresh(ctx context.Context) Result[T] {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	params := c.paramsLocked()
	c.result = Result[T]{Status: StatusPending}
	c.mu.Unlock()

	resp, err := c.fetch(ctx, params)

	c.mu.Lock()
	if params != c.paramsLocked() || gen <= c.applied {
		current := c.result
		c.mu.Unlock()
		c.metrics.RecordListResponseDiscarded(c.resource)
		c.logger.Debug("discarding stale list response",
			zap.String("resource", c.resource),
			zap.Uint64("generation", gen),
		)
		return current
	}
	c.applied = gen

	var res Result[T]
	if err != nil {
		res = Result[T]{Status: StatusFailure, Err: err, Message: errorMessage(err)}
	} else {
		res = Result[T]{Status: StatusSuccess, Items: resp.Data, Pagination: resp.Pagination}
		if res.Items == nil {
			res.Items = []T{}
		}
	}
	c.result = res
	listeners := append(([]func(Result[T]))(nil), c.onResult...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(res)
	}
	return res
}

// errorMessage is the raw message shown in place of the table.
func errorMessage(err error) string {
	var e *model.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
