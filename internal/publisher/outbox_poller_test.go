package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	r "github.com/fjod/go_cart/cart-checkout/internal/repository"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockOutbox struct {
	mu        sync.Mutex
	events    []*r.OutboxEvent
	fetchErr  error
	markErr   error
	processed []int
}

func (m *mockOutbox) GetUnprocessedEvents(context.Context, int) ([]*r.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []*r.OutboxEvent
	for _, e := range m.events {
		if !contains(m.processed, e.ID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockOutbox) MarkEventAsProcessed(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.processed = append(m.processed, id)
	return nil
}

func (m *mockOutbox) processedIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.processed...)
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	failOn   string
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range msgs {
		if string(m.Key) == w.failOn {
			return errors.New("broker unavailable")
		}
		w.messages = append(w.messages, m)
	}
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWriter) sent() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.messages...)
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func newTestPoller(repo r.OutboxRepository, w MessageWriter) *OutboxPoller {
	return &OutboxPoller{
		timeout:   time.Second,
		eventTick: 10 * time.Millisecond,
		repo:      repo,
		writer:    w,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func event(id int, code string) *r.OutboxEvent {
	payload, _ := json.Marshal(map[string]any{"code": code, "purchaser": "buyer@shop"})
	return &r.OutboxEvent{ID: id, AggregateID: code, EventType: "ticket.created", Payload: payload, CreatedAt: time.Now()}
}

func TestOutboxPoller_PublishesAndMarks(t *testing.T) {
	repo := &mockOutbox{events: []*r.OutboxEvent{event(1, "abc"), event(2, "def")}}
	w := &fakeWriter{}
	p := newTestPoller(repo, w)

	p.processUnpublishedEvents(context.Background())

	msgs := w.sent()
	require.Len(t, msgs, 2)
	assert.Equal(t, "abc", string(msgs[0].Key))
	assert.Equal(t, "event_type", msgs[0].Headers[0].Key)
	assert.Equal(t, "ticket.created", string(msgs[0].Headers[0].Value))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msgs[1].Value, &payload))
	assert.Equal(t, "def", payload["code"])
	assert.Equal(t, []int{1, 2}, repo.processedIDs())
}

func TestOutboxPoller_StopsBatchOnPublishFailure(t *testing.T) {
	repo := &mockOutbox{events: []*r.OutboxEvent{event(1, "abc"), event(2, "bad"), event(3, "ghi")}}
	w := &fakeWriter{failOn: "bad"}
	p := newTestPoller(repo, w)

	p.processUnpublishedEvents(context.Background())

	assert.Equal(t, []int{1}, repo.processedIDs())
	assert.Len(t, w.sent(), 1)
}

func TestOutboxPoller_FetchErrorIsLogged(t *testing.T) {
	repo := &mockOutbox{fetchErr: errors.New("db down")}
	w := &fakeWriter{}
	p := newTestPoller(repo, w)

	assert.NotPanics(t, func() { p.processUnpublishedEvents(context.Background()) })
	assert.Empty(t, w.sent())
}

func TestOutboxPoller_MarkFailureRepublishesLater(t *testing.T) {
	repo := &mockOutbox{events: []*r.OutboxEvent{event(1, "abc")}, markErr: errors.New("db down")}
	w := &fakeWriter{}
	p := newTestPoller(repo, w)

	p.processUnpublishedEvents(context.Background())
	p.processUnpublishedEvents(context.Background())

	assert.Len(t, w.sent(), 2, "at-least-once: unmarked rows are sent again")
}

func TestOutboxPoller_RunUntilCancelled(t *testing.T) {
	repo := &mockOutbox{events: []*r.OutboxEvent{event(1, "abc")}}
	w := &fakeWriter{}
	p := newTestPoller(repo, w)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(repo.processedIDs()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
	assert.Len(t, w.sent(), 1)
}
