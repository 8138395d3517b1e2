package kanban

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/pitabwire/crmconsole/internal/observability"
	"github.com/pitabwire/crmconsole/internal/resources"
	"github.com/pitabwire/crmconsole/model"
)

// ErrUnknownStatus is returned for a drop on a column that is not a status.
var ErrUnknownStatus = errors.New("kanban: unknown status")

// Outcome describes what a drop did.
type Outcome string

const (
	// OutcomeNoop means no request was made.
	OutcomeNoop Outcome = "noop"
	// OutcomeSent means the caller's drop was sent and has completed.
	OutcomeSent Outcome = "sent"
	// OutcomeQueued means another update of the record was in flight; the
	// drop replaced any earlier queued target and will be sent after it.
	OutcomeQueued Outcome = "queued"
)

// Updater sends a status-only update of one record.
type Updater func(ctx context.Context, id, status string) error

type pending struct {
	ctx    context.Context
	status string
}

// Engine turns drops into status updates. Updates of one record are
// serialized and the last requested status wins.
type Engine struct {
	resource string
	statuses []string
	update   Updater
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu       sync.Mutex
	inflight map[string]*pending // nil value: in flight, nothing queued
}

// NewEngine creates an Engine for a board with the given status columns.
func NewEngine(resource string, statuses []model.Option, update Updater, metrics *observability.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		resource: resource,
		statuses: model.OptionValues(statuses),
		update:   update,
		metrics:  metrics,
		logger:   logger,
		inflight: make(map[string]*pending),
	}
}

// NewComplaintEngine moves complaints between status columns.
func NewComplaintEngine(svc *resources.Complaints, metrics *observability.Metrics, logger *zap.Logger) *Engine {
	return NewEngine(resources.ResourceComplaints, model.ComplaintStatuses, svc.UpdateStatus, metrics, logger)
}

// NewLeadEngine moves leads between status columns.
func NewLeadEngine(svc *resources.Leads, metrics *observability.Metrics, logger *zap.Logger) *Engine {
	return NewEngine(resources.ResourceLeads, model.LeadStatuses, svc.UpdateStatus, metrics, logger)
}

// Drop handles a card with currentStatus dropped on target. An empty target
// or the card's own column is a no-op; an unknown target is a no-op that
// returns ErrUnknownStatus. Otherwise exactly one {status} update is sent,
// either now or after the record's in-flight update completes.
//
// When Drop sends, it blocks until the record has no queued target left and
// returns the error of the last update it sent.
func (e *Engine) Drop(ctx context.Context, itemID, currentStatus, target string) (Outcome, error) {
	if target == "" || target == currentStatus {
		e.metrics.RecordKanbanDrop(e.resource, string(OutcomeNoop))
		return OutcomeNoop, nil
	}
	if !slices.Contains(e.statuses, target) {
		e.metrics.RecordKanbanDrop(e.resource, "unknown_status")
		return OutcomeNoop, ErrUnknownStatus
	}

	e.mu.Lock()
	if _, busy := e.inflight[itemID]; busy {
		e.inflight[itemID] = &pending{ctx: context.WithoutCancel(ctx), status: target}
		e.mu.Unlock()
		e.metrics.RecordKanbanDrop(e.resource, string(OutcomeQueued))
		return OutcomeQueued, nil
	}
	e.inflight[itemID] = nil
	e.mu.Unlock()

	sent := target
	err := e.send(ctx, itemID, target)
	for {
		e.mu.Lock()
		next := e.inflight[itemID]
		if next == nil {
			delete(e.inflight, itemID)
			e.mu.Unlock()
			return OutcomeSent, err
		}
		e.inflight[itemID] = nil
		e.mu.Unlock()

		if next.status == sent && err == nil {
			continue
		}
		sent = next.status
		err = e.send(next.ctx, itemID, next.status)
	}
}

func (e *Engine) send(ctx context.Context, id, status string) error {
	err := e.update(ctx, id, status)
	if err != nil {
		e.metrics.RecordKanbanDrop(e.resource, "failed")
		observability.LoggerFrom(ctx, e.logger).Warn("status update failed",
			zap.String("resource", e.resource),
			zap.String("record_id", id),
			zap.String("status", status),
			zap.Error(err),
		)
		return err
	}
	e.metrics.RecordKanbanDrop(e.resource, string(OutcomeSent))
	return nil
}

// Updating reports whether any status update is in flight.
func (e *Engine) Updating() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inflight) > 0
}

// UpdatingRecord reports whether id has an update in flight.
func (e *Engine) UpdatingRecord(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inflight[id]
	return ok
}
