// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ScheduledText model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no lifecycle logic, only CRUD
// persistence and query composition. The cancel-before-overwrite ordering
// around notification identifiers lives in services.TextService.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/armi-app/armi-server/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateScheduledText inserts a new ScheduledText row for userID. The record
// is created without a notification id; the service persists one after the
// notification layer returns it.
func CreateScheduledText(ctx context.Context, db *gorm.DB, userID, phoneNumber, message string, scheduledFor time.Time, profileID *string, birthday bool) (*domain.ScheduledText, error) {
	st := &domain.ScheduledText{
		ID:             uuid.NewString(),
		UserID:         userID,
		ProfileID:      profileID,
		PhoneNumber:    phoneNumber,
		Message:        message,
		ScheduledFor:   scheduledFor.UTC(),
		IsBirthdayText: birthday,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(st).Error; err != nil {
		return nil, err
	}
	return st, nil
}

// GetScheduledText fetches a single record by ID and owner, or ErrNotFound.
func GetScheduledText(ctx context.Context, db *gorm.DB, id, userID string) (*domain.ScheduledText, error) {
	var st domain.ScheduledText
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetScheduledTextByID fetches a record by ID alone. The response dispatcher
// uses this path: a notification payload carries no user identity.
func GetScheduledTextByID(ctx context.Context, db *gorm.DB, id string) (*domain.ScheduledText, error) {
	var st domain.ScheduledText
	if err := db.WithContext(ctx).Where("id = ?", id).First(&st).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

// ListScheduledTextsPage returns a paginated slice for userID ordered by
// scheduled time ascending (soonest first), with ID as tiebreaker.
func ListScheduledTextsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.ScheduledText, error) {
	var out []domain.ScheduledText
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("scheduled_for ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountScheduledTexts returns the total number of records owned by userID.
func CountScheduledTexts(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ScheduledText{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// UpdateScheduledText applies message/phone/time/profile updates to a record.
// Updates is a column map so callers can change any subset. Returns
// ErrNotFound when the record is missing or not owned by userID.
func UpdateScheduledText(ctx context.Context, db *gorm.DB, id, userID string, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.ScheduledText{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateScheduledTextNotificationID persists the record's active notification
// identifier; nil clears it. No ownership filter: the service already holds
// a verified record, and the sweep updates records it loaded itself.
func UpdateScheduledTextNotificationID(ctx context.Context, db *gorm.DB, id string, notificationID *string) error {
	res := db.WithContext(ctx).
		Model(&domain.ScheduledText{}).
		Where("id = ?", id).
		Update("notification_id", notificationID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SnoozeScheduledText moves the record's scheduled time. The caller cancels
// the old notification first and schedules a replacement afterwards.
func SnoozeScheduledText(ctx context.Context, db *gorm.DB, id string, newTime time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ScheduledText{}).
		Where("id = ?", id).
		Update("scheduled_for", newTime.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkScheduledTextSent flips the terminal sent flag and clears the
// notification id in one update. Re-applying to an already-sent record is
// harmless; the same values are written again.
func MarkScheduledTextSent(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.ScheduledText{}).
		Where("id = ?", id).
		Updates(map[string]any{"sent": true, "notification_id": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteScheduledText soft-deletes the record, enforcing ownership.
func DeleteScheduledText(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.ScheduledText{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
