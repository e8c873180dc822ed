package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	name   string
	err    error
	events []Event
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Notify(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func TestDispatcher_FansOut(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b", err: errors.New("down")}

	var failed []string
	d := NewDispatcher(a, b)
	d.OnError(func(sink string, _ Event, _ error) { failed = append(failed, sink) })

	sent := d.Dispatch(context.Background(),
		New(KindMilestone, "50%", "job half done", map[string]any{"job_id": "j1"}),
		New(KindAlert, "error rate", "too many failures", nil),
	)
	assert.Equal(t, 2, sent)
	assert.Len(t, a.events, 2)
	assert.Len(t, b.events, 2)
	assert.Equal(t, []string{"b", "b"}, failed)
}

func TestDispatcher_Nil(t *testing.T) {
	var d *Dispatcher
	assert.Equal(t, 0, d.Dispatch(context.Background(), New(KindAlert, "t", "m", nil)))
}

func TestWebhookSink(t *testing.T) {
	var got Event
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	ev := New(KindMilestone, "75%", "job j1 reached 75%", map[string]any{"job_id": "j1"})
	require.NoError(t, NewWebhookSink(ts.URL).Notify(context.Background(), ev))
	assert.Equal(t, KindMilestone, got.Kind)
	assert.Equal(t, "j1", got.Metadata["job_id"])
}

func TestWebhookSink_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	err := NewWebhookSink(ts.URL).Notify(context.Background(), New(KindAlert, "t", "m", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestLogSink(t *testing.T) {
	assert.NoError(t, LogSink{}.Notify(context.Background(), New(KindJobCompleted, "done", "job done", map[string]any{"n": 1})))
	assert.Equal(t, "log", LogSink{}.Name())
}
