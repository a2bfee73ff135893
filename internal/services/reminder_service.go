// Package services – ReminderService
//
// Reminders are the lighter sibling of scheduled texts: a dated prompt that
// the user completes rather than a message that goes out. They reuse the same
// best-effort notification policy (record truth wins) but need no per-id
// locking; completion is idempotent and there is no overwrite path.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/armi-app/armi-server/internal/domain"
	"github.com/armi-app/armi-server/internal/notify"
	"github.com/armi-app/armi-server/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ReminderService owns reminder records and their notifications.
type ReminderService struct {
	DB        *gorm.DB
	Scheduler notify.Scheduler
}

// CreateReminderInput carries the fields for a new reminder.
type CreateReminderInput struct {
	Title       string
	Description string
	Type        string
	DueAt       time.Time
	ProfileID   *string
}

// ReminderResult is the outcome of creating a reminder.
type ReminderResult struct {
	Reminder              *domain.Reminder `json:"reminder"`
	NotificationScheduled bool             `json:"notification_scheduled"`
}

// Create validates and inserts a reminder, then schedules its notification.
// An empty type defaults to general.
func (s *ReminderService) Create(ctx context.Context, userID string, in CreateReminderInput) (*ReminderResult, error) {
	tr := otel.Tracer("services/ReminderService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, ErrEmptyName
	}
	switch in.Type {
	case "":
		in.Type = domain.ReminderTypeGeneral
	case domain.ReminderTypeGeneral, domain.ReminderTypeGift:
	default:
		return nil, ErrInvalidReminderType
	}

	r, err := repo.CreateReminder(ctx, s.DB, userID, in.Title,
		strings.TrimSpace(in.Description), in.Type, in.DueAt, in.ProfileID)
	if err != nil {
		return nil, err
	}

	scheduled := s.scheduleAndPersist(ctx, r)
	return &ReminderResult{Reminder: r, NotificationScheduled: scheduled}, nil
}

// Get returns a single reminder for its owner.
func (s *ReminderService) Get(ctx context.Context, userID, id string) (*domain.Reminder, error) {
	r, err := repo.GetReminder(ctx, s.DB, id, userID)
	if err != nil {
		return nil, asReminderNotFound(err)
	}
	return r, nil
}

// ListPage returns paginated reminders for a user, soonest due first.
func (s *ReminderService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Reminder, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountReminders(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Reminder{}, 0, nil
	}

	items, err := repo.ListRemindersPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Complete cancels the reminder's notification, marks it completed, and for
// gift reminders clears the linked profile's gift flag. Completing twice is
// harmless.
func (s *ReminderService) Complete(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/ReminderService")
	ctx, span := tr.Start(ctx, "Complete",
		trace.WithAttributes(
			attribute.String("reminder.id", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	r, err := repo.GetReminder(ctx, s.DB, id, userID)
	if err != nil {
		return asReminderNotFound(err)
	}

	s.cancelIfLive(ctx, r)

	if err := repo.CompleteReminder(ctx, s.DB, id); err != nil {
		return asReminderNotFound(err)
	}

	if r.Type == domain.ReminderTypeGift && r.ProfileID != nil {
		if err := repo.UpdateProfileGiftReminderStatus(ctx, s.DB, *r.ProfileID, false); err != nil {
			log.Warn().Err(err).Str("profile_id", *r.ProfileID).Msg("failed to clear gift reminder flag")
		}
	}
	return nil
}

// Delete cancels the reminder's notification and removes the record.
func (s *ReminderService) Delete(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/ReminderService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("reminder.id", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	r, err := repo.GetReminder(ctx, s.DB, id, userID)
	if err != nil {
		return asReminderNotFound(err)
	}

	s.cancelIfLive(ctx, r)

	if err := repo.DeleteReminder(ctx, s.DB, id, userID); err != nil {
		return asReminderNotFound(err)
	}
	return nil
}

func (s *ReminderService) cancelIfLive(ctx context.Context, r *domain.Reminder) {
	if r.NotificationID == nil {
		return
	}
	if err := s.Scheduler.Cancel(ctx, *r.NotificationID); err != nil {
		log.Warn().
			Err(err).
			Str("reminder_id", r.ID).
			Str("notification_id", *r.NotificationID).
			Msg("failed to cancel reminder notification")
	}
	r.NotificationID = nil
}

func (s *ReminderService) scheduleAndPersist(ctx context.Context, r *domain.Reminder) bool {
	nid, err := s.Scheduler.Schedule(ctx, notify.Request{
		Title:   r.Title,
		Body:    r.Description,
		Trigger: r.DueAt,
		Data:    notify.Data{Category: notify.CategoryReminder},
	})
	if err != nil {
		log.Warn().Err(err).Str("reminder_id", r.ID).Msg("failed to schedule reminder notification")
		return false
	}
	if err := repo.UpdateReminderNotificationID(ctx, s.DB, r.ID, &nid); err != nil {
		log.Warn().Err(err).Str("reminder_id", r.ID).Msg("failed to persist reminder notification id")
		if cerr := s.Scheduler.Cancel(ctx, nid); cerr != nil {
			log.Warn().Err(cerr).Str("notification_id", nid).Msg("failed to cancel orphaned notification")
		}
		return false
	}
	r.NotificationID = &nid
	return true
}

// asReminderNotFound maps store not-found errors to the service sentinel.
func asReminderNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, repo.ErrNotFound) {
		return ErrReminderNotFound
	}
	return err
}
