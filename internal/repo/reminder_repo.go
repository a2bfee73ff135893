// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Reminder model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/armi-app/armi-server/internal/domain"
)

// CreateReminder inserts a new Reminder row owned by userID.
func CreateReminder(ctx context.Context, db *gorm.DB, userID, title, description, typ string, dueAt time.Time, profileID *string) (*domain.Reminder, error) {
	r := &domain.Reminder{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProfileID:   profileID,
		Title:       title,
		Description: description,
		Type:        typ,
		DueAt:       dueAt.UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetReminder fetches a reminder by ID and owner, or ErrNotFound.
func GetReminder(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Reminder, error) {
	var r domain.Reminder
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRemindersPage returns a paginated slice for userID ordered by due time.
func ListRemindersPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Reminder, error) {
	var out []domain.Reminder
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("due_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountReminders returns the total number of reminders owned by userID.
func CountReminders(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Reminder{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// CompleteReminder sets the completion flag and clears the notification id.
// Re-applying to a completed reminder rewrites the same values.
func CompleteReminder(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Reminder{}).
		Where("id = ?", id).
		Updates(map[string]any{"completed": true, "notification_id": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateReminderNotificationID persists the reminder's active notification
// identifier; nil clears it.
func UpdateReminderNotificationID(ctx context.Context, db *gorm.DB, id string, notificationID *string) error {
	res := db.WithContext(ctx).
		Model(&domain.Reminder{}).
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

// DeleteReminder soft-deletes a reminder, enforcing ownership.
func DeleteReminder(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Reminder{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
