// Package notify: in-process Scheduler implementation.
//
// LocalScheduler backs the Scheduler contract with plain timers. Each
// scheduled notification holds one time.Timer; when the trigger elapses the
// notification "fires" and is reported to subscribers as a default-action
// response. Cancel stops the timer before it fires.
//
// Notes:
//   - A trigger in the past fires immediately. This matches the observed
//     platform behavior for past-due local notifications.
//   - Delivery is best effort: if no subscriber is registered when a
//     notification fires, the event is dropped (the startup sweep reconciles
//     records the process missed).
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LocalScheduler is a timer-backed Scheduler. Safe for concurrent use.
type LocalScheduler struct {
	mu      sync.Mutex
	pending map[string]*pendingNotification
	subs    map[int]Handler
	nextSub int
	closed  bool
}

type pendingNotification struct {
	req   Request
	timer *time.Timer
}

// NewLocalScheduler returns an empty scheduler with no subscribers.
func NewLocalScheduler() *LocalScheduler {
	return &LocalScheduler{
		pending: make(map[string]*pendingNotification),
		subs:    make(map[int]Handler),
	}
}

// Schedule registers req and returns its notification identifier. The timer
// is armed for req.Trigger; past triggers fire on a zero-duration timer.
func (s *LocalScheduler) Schedule(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	delay := time.Until(req.Trigger)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSchedulerClosed
	}

	p := &pendingNotification{req: req}
	p.timer = time.AfterFunc(delay, func() { s.fire(id) })
	s.pending[id] = p

	log.Debug().
		Str("notification_id", id).
		Time("trigger", req.Trigger).
		Str("category", req.Data.Category).
		Msg("notification scheduled")
	return id, nil
}

// Cancel stops the notification's timer, if it is still pending. Cancelling
// an unknown or already-fired identifier is a no-op.
func (s *LocalScheduler) Cancel(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[id]; ok {
		p.timer.Stop()
		delete(s.pending, id)
		log.Debug().Str("notification_id", id).Msg("notification cancelled")
	}
	return nil
}

// Subscribe registers h for fired notifications. The returned function
// removes the subscription; it is safe to call more than once.
func (s *LocalScheduler) Subscribe(h Handler) func() {
	s.mu.Lock()
	idx := s.nextSub
	s.nextSub++
	s.subs[idx] = h
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, idx)
		s.mu.Unlock()
	}
}

// Pending reports whether id still has an armed timer. Used by tests and the
// startup sweep's stray-notification safeguard.
func (s *LocalScheduler) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// PendingCount returns the number of armed notifications.
func (s *LocalScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops every armed timer and rejects further scheduling.
func (s *LocalScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
	}
}

// fire removes the pending entry and fans the event out to subscribers as a
// default-action response. Handlers run on the timer goroutine; they must not
// block for long.
func (s *LocalScheduler) fire(id string) {
	s.mu.Lock()
	p, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	handlers := make([]Handler, 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	resp := Response{
		ActionID:  ActionDefault,
		RequestID: id,
		Data:      p.req.Data,
	}
	for _, h := range handlers {
		h(resp)
	}
}
