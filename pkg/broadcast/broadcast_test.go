package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/observability"
)

type recordingSink struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) received() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Event(nil), s.events...)
}

func waitClose(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}

func TestNoop(t *testing.T) {
	var b Broadcaster = Noop{}
	assert.NotPanics(t, func() { b.Emit(context.Background(), EventTaskCreated, nil) })
}

func TestDispatcher_FansOut(t *testing.T) {
	metrics := observability.NewNopMetrics()
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("down")}
	d := NewDispatcher(time.Second, metrics, ok, failing)

	d.Emit(context.Background(), EventTaskUpdated, map[string]string{"id": "t1"})
	waitClose(t, d)

	require.Len(t, ok.received(), 1)
	require.Len(t, failing.received(), 1)
	event := ok.received()[0]
	assert.Equal(t, EventTaskUpdated, event.Type)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BroadcastEventsTotal.WithLabelValues(EventTaskUpdated, "recording", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BroadcastEventsTotal.WithLabelValues(EventTaskUpdated, "recording", "failed")))
}

func TestDispatcher_SurvivesCancelledRequest(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(time.Second, nil, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Emit(ctx, EventProjectCreated, nil)
	waitClose(t, d)

	assert.Len(t, sink.received(), 1)
}

func TestRedisSink(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, DefaultRedisChannel)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	sink := NewRedisSink(client, "")
	require.NoError(t, sink.Publish(ctx, &Event{ID: "e1", Type: EventTaskCreated, Data: map[string]string{"title": "Roadmap"}}))

	select {
	case msg := <-sub.Channel():
		var event Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, "e1", event.ID)
		assert.Equal(t, EventTaskCreated, event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

type fakeNATS struct {
	subject string
	data    []byte
	err     error
}

func (f *fakeNATS) Publish(subj string, data []byte) error {
	f.subject = subj
	f.data = data
	return f.err
}

func TestNATSSink(t *testing.T) {
	conn := &fakeNATS{}
	sink := newNATSSink(conn, "")

	require.NoError(t, sink.Publish(context.Background(), &Event{ID: "e1", Type: EventProjectUpdated}))
	assert.Equal(t, "taskhub.events.projectUpdated", conn.subject)
	assert.Contains(t, string(conn.data), `"type":"projectUpdated"`)

	conn.err = errors.New("no responders")
	assert.Error(t, sink.Publish(context.Background(), &Event{Type: EventTaskCreated}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Publish(ctx, &Event{Type: EventTaskCreated}), context.Canceled)
}

func TestWebhookSink_SignsPayload(t *testing.T) {
	var got struct {
		body      []byte
		signature string
		event     string
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.body, _ = io.ReadAll(r.Body)
		got.signature = r.Header.Get(HeaderSignature)
		got.event = r.Header.Get(HeaderEvent)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink, err := NewWebhookSink(WebhookConfig{URL: server.URL, Secret: "s3cret"})
	require.NoError(t, err)

	require.NoError(t, sink.Publish(context.Background(), &Event{ID: "e1", Type: EventTaskUpdated}))
	assert.Equal(t, EventTaskUpdated, got.event)
	assert.True(t, VerifySignature(got.body, got.signature, "s3cret"))
	assert.False(t, VerifySignature(got.body, got.signature, "other"))
}

func TestWebhookSink_Retries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink, err := NewWebhookSink(WebhookConfig{URL: server.URL, MaxAttempts: 3})
	require.NoError(t, err)
	sink.backoff = time.Millisecond

	require.NoError(t, sink.Publish(context.Background(), &Event{Type: EventTaskCreated}))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWebhookSink_NoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sink, err := NewWebhookSink(WebhookConfig{URL: server.URL, MaxAttempts: 5})
	require.NoError(t, err)
	sink.backoff = time.Millisecond

	assert.Error(t, sink.Publish(context.Background(), &Event{Type: EventTaskCreated}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewWebhookSink_RequiresURL(t *testing.T) {
	_, err := NewWebhookSink(WebhookConfig{})
	assert.Error(t, err)
}
