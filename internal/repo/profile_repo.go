// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Profile model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/armi-app/armi-server/internal/domain"
)

// CreateProfile inserts a new Profile row owned by userID.
func CreateProfile(ctx context.Context, db *gorm.DB, userID, name, phoneNumber, notes string, birthday *time.Time) (*domain.Profile, error) {
	p := &domain.Profile{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		PhoneNumber: phoneNumber,
		Notes:       notes,
		Birthday:    birthday,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetProfile fetches a single profile by ID and owner, or ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Profile, error) {
	var p domain.Profile
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfileByID fetches a profile by ID alone (dispatcher/sweep path).
func GetProfileByID(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProfilesPage returns a paginated slice of profiles for userID ordered
// by name ascending.
func ListProfilesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Profile, error) {
	var out []domain.Profile
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountProfiles returns the total number of profiles owned by userID.
func CountProfiles(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Profile{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// UpdateProfile applies a column map to a profile, enforcing ownership.
func UpdateProfile(ctx context.Context, db *gorm.DB, id, userID string, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Profile{}).
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

// UpdateProfileBirthdayTextStatus flips the birthday-text toggle and its
// linked scheduled text in one update. relatedID is nil when disabling.
// No ownership filter: the dispatcher and sweep operate on payload-derived
// profile ids with no user identity at hand.
func UpdateProfileBirthdayTextStatus(ctx context.Context, db *gorm.DB, profileID string, enabled bool, relatedID *string) error {
	res := db.WithContext(ctx).
		Model(&domain.Profile{}).
		Where("id = ?", profileID).
		Updates(map[string]any{
			"birthday_text_enabled": enabled,
			"birthday_text_id":      relatedID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateProfileGiftReminderStatus flips the gift-reminder toggle.
func UpdateProfileGiftReminderStatus(ctx context.Context, db *gorm.DB, profileID string, enabled bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Profile{}).
		Where("id = ?", profileID).
		Update("gift_reminder_enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListProfilesWithBirthdayTextEnabled returns every profile, across all
// users, whose birthday-text toggle is armed. Input to the startup sweep.
func ListProfilesWithBirthdayTextEnabled(ctx context.Context, db *gorm.DB) ([]domain.Profile, error) {
	var out []domain.Profile
	err := db.WithContext(ctx).
		Where("birthday_text_enabled = ?", true).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// DeleteProfile soft-deletes a profile, enforcing ownership.
func DeleteProfile(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Profile{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
