// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Feedback model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/armi-app/armi-server/internal/domain"
)

// CreateFeedback inserts a feedback row for userID.
func CreateFeedback(ctx context.Context, db *gorm.DB, userID, message string, rating *int) (*domain.Feedback, error) {
	fb := &domain.Feedback{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Rating:    rating,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(fb).Error; err != nil {
		return nil, err
	}
	return fb, nil
}

// ListFeedback returns all feedback rows for userID, newest first.
func ListFeedback(ctx context.Context, db *gorm.DB, userID string) ([]domain.Feedback, error) {
	var out []domain.Feedback
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
