// Package reminder delivers appointment reminder requests to the scheduling
// webhook in the background. Delivery is best effort: a failed or dropped
// reminder never affects the booking that produced it.
package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/beekhof/admin-calendar/internal/observability/metrics"
	"github.com/beekhof/admin-calendar/pkg/logging"

	"github.com/google/uuid"
)

const (
	DefaultQueueSize = 64
	requestTimeout   = 10 * time.Second
)

// Task is the webhook payload.
type Task struct {
	InquiryID string `json:"inquiryId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	StartTime string `json:"startTime"`
}

// Queue posts tasks from a buffered channel on a single worker goroutine.
type Queue struct {
	url     string
	client  *http.Client
	metrics *metrics.CalendarMetrics
	logger  *logging.Logger

	mu      sync.Mutex
	closed  bool
	started bool
	cancel  context.CancelFunc
	tasks   chan Task
	done    chan struct{}
}

// NewQueue creates a queue for url. An empty url disables delivery.
func NewQueue(url string, size int, client *http.Client, m *metrics.CalendarMetrics, logger *logging.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Queue{
		url:     url,
		client:  client,
		metrics: m,
		logger:  logger,
		tasks:   make(chan Task, size),
		done:    make(chan struct{}),
	}
}

// Start runs the worker until Close has drained the queue. Cancelling ctx
// does not stop it; queued tasks are abandoned only when Close gives up.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.started = true
	q.cancel = cancel

	go func() {
		defer close(q.done)
		for task := range q.tasks {
			if workerCtx.Err() != nil {
				q.drop(task, "queue closed before delivery")
				continue
			}
			q.deliver(workerCtx, task)
		}
	}()
}

// Enqueue hands task to the worker without blocking. It reports false when
// the task was dropped because the queue is full, closed or disabled.
func (q *Queue) Enqueue(task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.url == "" {
		q.metrics.ObserveReminder("dropped")
		return false
	}
	select {
	case q.tasks <- task:
		return true
	default:
		q.metrics.ObserveReminder("dropped")
		q.logger.Warn("reminder queue full, dropping task", "inquiry_id", task.InquiryID)
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to be delivered.
// When ctx expires first, undelivered tasks are abandoned and counted as
// dropped.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	started := q.started
	q.mu.Unlock()

	if !started {
		for task := range q.tasks {
			q.drop(task, "queue closed before delivery")
		}
		return nil
	}

	select {
	case <-q.done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-q.done
		return ctx.Err()
	}
}

func (q *Queue) drop(task Task, reason string) {
	q.metrics.ObserveReminder("dropped")
	q.logger.Warn("reminder dropped", "inquiry_id", task.InquiryID, "reason", reason)
}

func (q *Queue) deliver(ctx context.Context, task Task) {
	if err := q.Send(ctx, task); err != nil {
		if ctx.Err() != nil {
			q.drop(task, "queue closed during delivery")
			return
		}
		q.metrics.ObserveReminder("failed")
		q.logger.Warn("reminder delivery failed", "inquiry_id", task.InquiryID, "error", err)
		return
	}
	q.metrics.ObserveReminder("sent")
	q.logger.Debug("reminder scheduled", "inquiry_id", task.InquiryID)
}

// Send posts one task synchronously.
func (q *Queue) Send(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build reminder request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post reminder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reminder webhook returned status %d", resp.StatusCode)
	}
	return nil
}
