package kanban

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/crmconsole/internal/observability"
	"github.com/pitabwire/crmconsole/model"
)

type update struct{ id, status string }

type recordingUpdater struct {
	mu      sync.Mutex
	updates []update
	block   chan struct{}
	started chan struct{}
	err     error
}

func (r *recordingUpdater) update(_ context.Context, id, status string) error {
	r.mu.Lock()
	r.updates = append(r.updates, update{id, status})
	block, started := r.block, r.started
	r.block, r.started = nil, nil
	err := r.err
	r.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}
	return err
}

func (r *recordingUpdater) sent() []update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]update(nil), r.updates...)
}

func newEngine(r *recordingUpdater, m *observability.Metrics) *Engine {
	return NewEngine("complaints", model.ComplaintStatuses, r.update, m, nil)
}

func TestDrop_sameColumnIsNoop(t *testing.T) {
	r := &recordingUpdater{}
	e := newEngine(r, nil)

	out, err := e.Drop(context.Background(), "c1", "open", "open")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, out)

	out, err = e.Drop(context.Background(), "c1", "open", "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, out)
	assert.Empty(t, r.sent())
}

func TestDrop_unknownStatus(t *testing.T) {
	r := &recordingUpdater{}
	e := newEngine(r, nil)

	out, err := e.Drop(context.Background(), "c1", "open", "c2")
	assert.ErrorIs(t, err, ErrUnknownStatus)
	assert.Equal(t, OutcomeNoop, out)
	assert.Empty(t, r.sent())
}

func TestDrop_sendsExactlyOneStatusUpdate(t *testing.T) {
	r := &recordingUpdater{}
	reg := prometheus.NewRegistry()
	m := observability.InitMetrics(reg)
	e := newEngine(r, m)

	out, err := e.Drop(context.Background(), "c1", "open", "resolved")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)
	assert.Equal(t, []update{{"c1", "resolved"}}, r.sent())
	assert.False(t, e.Updating())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KanbanDropsTotal.WithLabelValues("complaints", "sent")))
}

func TestDrop_failureIsReturned(t *testing.T) {
	r := &recordingUpdater{err: model.NewAuthError(401, "Unauthorized")}
	e := newEngine(r, nil)

	out, err := e.Drop(context.Background(), "c1", "open", "closed")
	assert.Equal(t, OutcomeSent, out)
	assert.True(t, model.IsKind(err, model.KindAuth))
	assert.False(t, e.UpdatingRecord("c1"))
}

func TestDrop_rapidDropsLastRequestedWins(t *testing.T) {
	r := &recordingUpdater{block: make(chan struct{}), started: make(chan struct{})}
	block, started := r.block, r.started
	e := newEngine(r, nil)

	done := make(chan error)
	go func() {
		_, err := e.Drop(context.Background(), "c1", "open", "in_progress")
		done <- err
	}()
	<-started
	assert.True(t, e.Updating())
	assert.True(t, e.UpdatingRecord("c1"))
	assert.False(t, e.UpdatingRecord("c2"))

	out, err := e.Drop(context.Background(), "c1", "open", "resolved")
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, out)
	out, _ = e.Drop(context.Background(), "c1", "open", "closed")
	assert.Equal(t, OutcomeQueued, out)

	close(block)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("drop did not finish")
	}

	assert.Equal(t, []update{{"c1", "in_progress"}, {"c1", "closed"}}, r.sent(),
		"the superseded target is never sent and updates go out in request order")
	assert.False(t, e.Updating())
}

func TestDrop_queuedContextOutlivesCaller(t *testing.T) {
	r := &recordingUpdater{block: make(chan struct{}), started: make(chan struct{})}
	block, started := r.block, r.started
	e := newEngine(r, nil)

	done := make(chan struct{})
	go func() {
		_, _ = e.Drop(context.Background(), "c1", "open", "resolved")
		close(done)
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	_, _ = e.Drop(ctx, "c1", "open", "closed")
	cancel()

	close(block)
	<-done
	assert.Len(t, r.sent(), 2)
}

func TestDrop_otherRecordsAreIndependent(t *testing.T) {
	r := &recordingUpdater{block: make(chan struct{}), started: make(chan struct{})}
	block, started := r.block, r.started
	e := newEngine(r, nil)

	go func() { _, _ = e.Drop(context.Background(), "c1", "open", "resolved") }()
	<-started

	out, err := e.Drop(context.Background(), "c2", "open", "closed")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)
	close(block)
}
