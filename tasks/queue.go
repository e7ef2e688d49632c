// Package tasks carries fire-and-forget work off the request path: scheduled
// post publication, follow notifications and outbound mail. Handlers enqueue
// and return; a failed task is logged, never surfaced to the client.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Task types the server enqueues.
const (
	TypeScheduledPost = "post.scheduled"
	TypeFollowCreated = "follow.created"
	TypeResetEmail    = "email.reset"
)

// ScheduledPostPayload publishes a post at its scheduled time.
type ScheduledPostPayload struct {
	AuthorID  uint
	Content   string
	ImagePath string
}

// FollowCreatedPayload fans out after a new follow edge, never after a
// re-follow.
type FollowCreatedPayload struct {
	FollowerID uint
	FolloweeID uint
}

// ResetEmailPayload mails a password reset code.
type ResetEmailPayload struct {
	Email string
	Code  string
}

// Task is one unit of queued work.
type Task struct {
	ID      string
	Type    string
	Payload any
}

// Handler runs one task. A returned error means the task failed; the queue
// logs it and moves on.
type Handler func(ctx context.Context, task Task) error

// Queue is what producers see. The in-process implementation below runs
// tasks on goroutines; a broker-backed implementation would satisfy the same
// interface.
type Queue interface {
	Enqueue(task Task)
	EnqueueAfter(delay time.Duration, task Task)
}

// InProc dispatches tasks to registered handlers inside the server process.
// Register handlers before the first Enqueue.
type InProc struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string]Handler

	wg sync.WaitGroup
}

func NewInProc(logger *zap.Logger) *InProc {
	return &InProc{
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Handle registers the handler for a task type, replacing any previous one.
func (q *InProc) Handle(taskType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = h
}

// Enqueue runs the task as soon as a goroutine picks it up.
func (q *InProc) Enqueue(task Task) {
	q.EnqueueAfter(0, task)
}

// EnqueueAfter runs the task once the delay elapses.
func (q *InProc) EnqueueAfter(delay time.Duration, task Task) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	q.wg.Add(1)
	run := func() {
		defer q.wg.Done()
		q.dispatch(task)
	}
	if delay <= 0 {
		go run()
		return
	}
	time.AfterFunc(delay, run)
}

// Drain blocks until every enqueued task, delayed ones included, has
// finished.
func (q *InProc) Drain() {
	q.wg.Wait()
}

func (q *InProc) dispatch(task Task) {
	q.mu.RLock()
	h, ok := q.handlers[task.Type]
	q.mu.RUnlock()
	if !ok {
		q.logger.Warn("no handler for task",
			zap.String("task_type", task.Type),
			zap.String("task_id", task.ID))
		return
	}
	if err := h(context.Background(), task); err != nil {
		q.logger.Error("task failed",
			zap.String("task_type", task.Type),
			zap.String("task_id", task.ID),
			zap.Error(err))
		return
	}
	q.logger.Debug("task done",
		zap.String("task_type", task.Type),
		zap.String("task_id", task.ID))
}
