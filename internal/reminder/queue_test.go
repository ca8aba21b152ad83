package reminder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/beekhof/admin-calendar/internal/observability/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTask() Task {
	return Task{
		InquiryID: "42",
		Name:      "Ada Lovelace",
		Email:     "ada@example.com",
		Phone:     "555-0100",
		StartTime: "2024-03-05T10:00:00Z",
	}
}

func TestQueueDeliversTask(t *testing.T) {
	received := make(chan map[string]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	q := NewQueue(srv.URL, 4, srv.Client(), nil, nil)
	q.Start(context.Background())
	require.True(t, q.Enqueue(sampleTask()))

	select {
	case body := <-received:
		assert.Equal(t, "42", body["inquiryId"])
		assert.Equal(t, "Ada Lovelace", body["name"])
		assert.Equal(t, "ada@example.com", body["email"])
		assert.Equal(t, "555-0100", body["phone"])
		assert.Equal(t, "2024-03-05T10:00:00Z", body["startTime"])
	case <-time.After(5 * time.Second):
		t.Fatal("reminder was not delivered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))
}

func TestQueueDropsWhenFull(t *testing.T) {
	// No worker is started, so the buffer fills up.
	q := NewQueue("http://reminders.invalid", 1, nil, nil, nil)
	assert.True(t, q.Enqueue(sampleTask()))
	assert.False(t, q.Enqueue(sampleTask()))
}

func TestQueueDisabledWithoutURL(t *testing.T) {
	q := NewQueue("", 1, nil, nil, nil)
	assert.False(t, q.Enqueue(sampleTask()))
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := NewQueue("http://reminders.invalid", 1, nil, nil, nil)
	q.Start(context.Background())
	require.NoError(t, q.Close(context.Background()))
	assert.False(t, q.Enqueue(sampleTask()))
}

func TestSendReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	q := NewQueue(srv.URL, 1, srv.Client(), nil, nil)
	err := q.Send(context.Background(), sampleTask())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func slowWebhook(t *testing.T, delay time.Duration, delivered *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
			delivered.Add(1)
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func reminderCount(t *testing.T, reg *prometheus.Registry, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "admincal_reminder_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" && label.GetValue() == status {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCloseDrainsAfterStartContextCancelled(t *testing.T) {
	var delivered atomic.Int32
	srv := slowWebhook(t, 50*time.Millisecond, &delivered)

	ctx, stop := context.WithCancel(context.Background())
	q := NewQueue(srv.URL, 8, srv.Client(), nil, nil)
	q.Start(ctx)
	for i := 0; i < 5; i++ {
		require.True(t, q.Enqueue(sampleTask()))
	}
	// Shutdown signal arrives before the queue is closed.
	stop()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Close(closeCtx))
	assert.Equal(t, int32(5), delivered.Load())
}

func TestCloseTimeoutCountsUndeliveredAsDropped(t *testing.T) {
	var delivered atomic.Int32
	srv := slowWebhook(t, time.Second, &delivered)

	reg := prometheus.NewRegistry()
	q := NewQueue(srv.URL, 8, srv.Client(), metrics.NewCalendarMetrics(reg), nil)
	q.Start(context.Background())
	for i := 0; i < 3; i++ {
		require.True(t, q.Enqueue(sampleTask()))
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(closeCtx), context.DeadlineExceeded)
	assert.Equal(t, int32(0), delivered.Load())
	assert.Equal(t, float64(3), reminderCount(t, reg, "dropped"))
	assert.Equal(t, float64(0), reminderCount(t, reg, "failed"))
}

func TestCloseWithoutStartReturnsImmediately(t *testing.T) {
	reg := prometheus.NewRegistry()
	q := NewQueue("http://reminders.invalid", 4, nil, metrics.NewCalendarMetrics(reg), nil)
	require.True(t, q.Enqueue(sampleTask()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))
	assert.Equal(t, float64(1), reminderCount(t, reg, "dropped"))
}
