// Package services – TextService
//
// This file implements TextService, the application-level component that owns
// the lifecycle of scheduled texts. A scheduled text and its local
// notification live in two independently-owned stores (the database and the
// notification scheduler); this service keeps them from desynchronizing.
//
// Ordering rule (cancel-before-overwrite): whenever a record's notification
// identifier is about to be replaced or cleared, the old notification is
// cancelled first. Violating this order leaves a stale notification pointing
// at data that no longer matches the record.
//
// Failure policy (record truth wins): notification schedule/cancel calls are
// best effort. A failure is logged and never rolls back the store mutation
// that triggered it; results carry NotificationScheduled so callers can tell
// the user when a record was saved without its reminder.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/armi-app/armi-server/internal/domain"
	"github.com/armi-app/armi-server/internal/notify"
	"github.com/armi-app/armi-server/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// snoozeHour is the local wall-clock hour a snoozed text is moved to on the
// following calendar day. Fixed policy, not relative to the previous time.
const snoozeHour = 9

// TextService coordinates scheduled-text persistence with the notification
// scheduler. Two concurrent lifecycle operations for the same record id are
// serialized by a per-id mutex so their cancel/mutate/schedule/persist
// sequences cannot interleave.
type TextService struct {
	DB        *gorm.DB
	Scheduler notify.Scheduler

	// FreeTierLimit caps scheduled texts created per calendar month.
	// Zero or negative disables quota enforcement.
	FreeTierLimit int

	// Clock overrides time.Now for snooze computation. Nil means time.Now.
	Clock func() time.Time

	locks sync.Map // record id -> *sync.Mutex
}

// TextResult is the outcome of a mutating lifecycle operation.
// NotificationScheduled is false when the record was persisted but its
// notification could not be scheduled.
type TextResult struct {
	Text                  *domain.ScheduledText `json:"text"`
	NotificationScheduled bool                  `json:"notification_scheduled"`
}

// CreateTextInput carries the fields for a new scheduled text.
type CreateTextInput struct {
	PhoneNumber  string
	Message      string
	ScheduledFor time.Time
	ProfileID    *string
	Birthday     bool
}

// EditTextInput carries the mutable fields of an existing scheduled text.
// Nil fields are left unchanged.
type EditTextInput struct {
	PhoneNumber  *string
	Message      *string
	ScheduledFor *time.Time
}

// Create validates the input, enforces the monthly quota, inserts the record,
// and schedules its notification. The record is inserted without a
// notification id; the id returned by the scheduler is persisted afterwards.
// If scheduling fails the record still exists without a notification; it
// degrades to a record with no reminder.
//
// The design does not hard-block past timestamps; the notification layer
// decides what a past trigger means.
func (s *TextService) Create(ctx context.Context, userID string, in CreateTextInput) (*TextResult, error) {
	tr := otel.Tracer("services/TextService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Message = strings.TrimSpace(in.Message)
	if in.PhoneNumber == "" {
		return nil, ErrEmptyPhoneNumber
	}
	if in.Message == "" {
		return nil, ErrEmptyMessage
	}

	if s.FreeTierLimit > 0 {
		used, err := repo.MonthlyScheduledTextCount(ctx, s.DB, userID, s.now())
		if err != nil {
			return nil, err
		}
		if used >= int64(s.FreeTierLimit) {
			return nil, ErrQuotaExceeded
		}
	}

	st, err := repo.CreateScheduledText(ctx, s.DB, userID, in.PhoneNumber, in.Message, in.ScheduledFor, in.ProfileID, in.Birthday)
	if err != nil {
		return nil, err
	}

	scheduled := s.scheduleAndPersist(ctx, st)
	return &TextResult{Text: st, NotificationScheduled: scheduled}, nil
}

// Edit applies updates to an unsent record. If a notification is live it is
// cancelled before the record changes, and a new one is scheduled afterwards
// (always, conservatively; a message-only edit still refreshes the
// notification body).
func (s *TextService) Edit(ctx context.Context, userID, id string, in EditTextInput) (*TextResult, error) {
	tr := otel.Tracer("services/TextService")
	ctx, span := tr.Start(ctx, "Edit",
		trace.WithAttributes(
			attribute.String("text.id", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	unlock := s.lock(id)
	defer unlock()

	st, err := repo.GetScheduledText(ctx, s.DB, id, userID)
	if err != nil {
		return nil, asTextNotFound(err)
	}
	if st.Sent {
		return nil, ErrAlreadySent
	}

	updates := map[string]any{}
	if in.PhoneNumber != nil {
		p := strings.TrimSpace(*in.PhoneNumber)
		if p == "" {
			return nil, ErrEmptyPhoneNumber
		}
		updates["phone_number"] = p
		st.PhoneNumber = p
	}
	if in.Message != nil {
		m := strings.TrimSpace(*in.Message)
		if m == "" {
			return nil, ErrEmptyMessage
		}
		updates["message"] = m
		st.Message = m
	}
	if in.ScheduledFor != nil {
		updates["scheduled_for"] = in.ScheduledFor.UTC()
		st.ScheduledFor = in.ScheduledFor.UTC()
	}

	// Cancel before the record is overwritten.
	s.cancelIfLive(ctx, st)

	if len(updates) > 0 {
		if err := repo.UpdateScheduledText(ctx, s.DB, id, userID, updates); err != nil {
			return nil, asTextNotFound(err)
		}
	}

	scheduled := s.scheduleAndPersist(ctx, st)
	return &TextResult{Text: st, NotificationScheduled: scheduled}, nil
}

// Snooze moves the record to 09:00 local time on the calendar day after the
// moment Snooze was invoked. A fixed policy, independent of the previous
// scheduled time. Order: cancel old notification, persist the new time,
// schedule the replacement, persist its id.
func (s *TextService) Snooze(ctx context.Context, userID, id string) (*TextResult, error) {
	tr := otel.Tracer("services/TextService")
	ctx, span := tr.Start(ctx, "Snooze",
		trace.WithAttributes(
			attribute.String("text.id", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	unlock := s.lock(id)
	defer unlock()

	st, err := repo.GetScheduledText(ctx, s.DB, id, userID)
	if err != nil {
		return nil, asTextNotFound(err)
	}
	if st.Sent {
		return nil, ErrAlreadySent
	}

	newTime := NextSnoozeTime(s.now())

	s.cancelIfLive(ctx, st)

	if err := repo.SnoozeScheduledText(ctx, s.DB, id, newTime); err != nil {
		return nil, asTextNotFound(err)
	}
	st.ScheduledFor = newTime.UTC()

	scheduled := s.scheduleAndPersist(ctx, st)
	return &TextResult{Text: st, NotificationScheduled: scheduled}, nil
}

// MarkAsSent cancels any live notification, flips the terminal sent flag, and
// clears the notification id. Calling it twice is safe; the store update is
// simply re-applied.
func (s *TextService) MarkAsSent(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/TextService")
	ctx, span := tr.Start(ctx, "MarkAsSent",
		trace.WithAttributes(
			attribute.String("text.id", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	unlock := s.lock(id)
	defer unlock()

	st, err := repo.GetScheduledText(ctx, s.DB, id, userID)
	if err != nil {
		return asTextNotFound(err)
	}

	s.cancelIfLive(ctx, st)

	if err := repo.MarkScheduledTextSent(ctx, s.DB, id); err != nil {
		return asTextNotFound(err)
	}
	return nil
}

// Delete cancels any live notification and removes the record.
func (s *TextService) Delete(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/TextService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("text.id", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	unlock := s.lock(id)
	defer unlock()

	st, err := repo.GetScheduledText(ctx, s.DB, id, userID)
	if err != nil {
		return asTextNotFound(err)
	}

	s.cancelIfLive(ctx, st)

	if err := repo.DeleteScheduledText(ctx, s.DB, id, userID); err != nil {
		return asTextNotFound(err)
	}
	return nil
}

// Get returns a single record for its owner.
func (s *TextService) Get(ctx context.Context, userID, id string) (*domain.ScheduledText, error) {
	st, err := repo.GetScheduledText(ctx, s.DB, id, userID)
	if err != nil {
		return nil, asTextNotFound(err)
	}
	return st, nil
}

// ListPage returns paginated scheduled texts for a user, soonest first.
func (s *TextService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.ScheduledText, int64, error) {
	tr := otel.Tracer("services/TextService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountScheduledTexts(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ScheduledText{}, 0, nil
	}

	items, err := repo.ListScheduledTextsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// MonthlyCount reports scheduled texts created this calendar month, plus the
// configured limit (0 means unlimited).
func (s *TextService) MonthlyCount(ctx context.Context, userID string) (used int64, limit int, err error) {
	used, err = repo.MonthlyScheduledTextCount(ctx, s.DB, userID, s.now())
	return used, s.FreeTierLimit, err
}

// NextSnoozeTime computes 09:00 local on the calendar day following now.
func NextSnoozeTime(now time.Time) time.Time {
	next := now.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), snoozeHour, 0, 0, 0, now.Location())
}

// --- internals ---

func (s *TextService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// lock acquires the per-record mutex and returns its release function.
// Mutexes are never removed from the map; record ids are bounded by the
// user's data and the entries are two words each.
func (s *TextService) lock(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// cancelIfLive cancels the record's live notification, if any. Best effort:
// a cancel failure is logged and the lifecycle operation proceeds.
func (s *TextService) cancelIfLive(ctx context.Context, st *domain.ScheduledText) {
	if st.NotificationID == nil {
		return
	}
	if err := s.Scheduler.Cancel(ctx, *st.NotificationID); err != nil {
		log.Warn().
			Err(err).
			Str("text_id", st.ID).
			Str("notification_id", *st.NotificationID).
			Msg("failed to cancel notification")
	}
	st.NotificationID = nil
}

// scheduleAndPersist schedules a notification for st and writes the returned
// identifier back onto the record. Returns false when either step failed; the
// record keeps a nil notification id in that case.
func (s *TextService) scheduleAndPersist(ctx context.Context, st *domain.ScheduledText) bool {
	category := notify.CategoryScheduledText
	title := "Scheduled text"
	if st.IsBirthdayText {
		category = notify.CategoryBirthdayText
		title = "Birthday text"
	}
	data := notify.Data{
		Category: category,
		TextID:   st.ID,
		Birthday: st.IsBirthdayText,
	}
	if st.ProfileID != nil {
		data.ProfileID = *st.ProfileID
	}

	nid, err := s.Scheduler.Schedule(ctx, notify.Request{
		Title:   title,
		Body:    st.Message,
		Trigger: st.ScheduledFor,
		Data:    data,
	})
	if err != nil {
		log.Warn().Err(err).Str("text_id", st.ID).Msg("failed to schedule notification")
		return false
	}

	if err := repo.UpdateScheduledTextNotificationID(ctx, s.DB, st.ID, &nid); err != nil {
		log.Warn().Err(err).Str("text_id", st.ID).Str("notification_id", nid).
			Msg("failed to persist notification id")
		// The notification exists but the record doesn't know about it; drop
		// it so it cannot fire against a record that lost the correlation.
		if cerr := s.Scheduler.Cancel(ctx, nid); cerr != nil {
			log.Warn().Err(cerr).Str("notification_id", nid).Msg("failed to cancel orphaned notification")
		}
		return false
	}
	st.NotificationID = &nid
	return true
}

// asTextNotFound maps store not-found errors to the service sentinel.
func asTextNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, repo.ErrNotFound) {
		return ErrTextNotFound
	}
	return err
}
