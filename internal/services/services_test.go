package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/armi-app/armi-server/internal/domain"
	"github.com/armi-app/armi-server/internal/notify"
)

// newServiceDB opens an isolated in-memory database with the full schema.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Profile{},
		&domain.ScheduledText{},
		&domain.Reminder{},
		&domain.Feedback{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeScheduler records every Schedule and Cancel call. It can be told to
// fail either operation.
type fakeScheduler struct {
	mu        sync.Mutex
	nextID    int
	scheduled []notify.Request
	cancelled []string
	failNext  error
	failAll   error
}

func (f *fakeScheduler) Schedule(_ context.Context, req notify.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return "", f.failAll
	}
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return "", err
	}
	f.nextID++
	f.scheduled = append(f.scheduled, req)
	return fmt.Sprintf("n-%d", f.nextID), nil
}

func (f *fakeScheduler) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeScheduler) Subscribe(notify.Handler) func() { return func() {} }

func (f *fakeScheduler) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancelled)
}

func (f *fakeScheduler) lastScheduled(t *testing.T) notify.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scheduled) == 0 {
		t.Fatalf("nothing scheduled")
	}
	return f.scheduled[len(f.scheduled)-1]
}

// fakeComposer records compose calls and can be told to fail or panic.
type fakeComposer struct {
	mu       sync.Mutex
	calls    []string
	err      error
	panicMsg string
}

func (f *fakeComposer) Compose(_ context.Context, phone, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.calls = append(f.calls, phone+"|"+body)
	return f.err
}

func (f *fakeComposer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errSchedulerDown = errors.New("scheduler unavailable")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func intptr(i int) *int { return &i }

func sptr(s string) *string { return &s }

func tptr(t time.Time) *time.Time { return &t }
