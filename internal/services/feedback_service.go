// Package services – FeedbackService
//
// Feedback is a plain write-mostly entity: validate, store, list. No
// notifications, no lifecycle.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/armi-app/armi-server/internal/domain"
	"github.com/armi-app/armi-server/internal/repo"
)

// FeedbackService stores user-submitted app feedback.
type FeedbackService struct {
	DB *gorm.DB
}

// Submit validates and stores one piece of feedback. Rating is optional but
// must be within 1..5 when present.
func (s *FeedbackService) Submit(ctx context.Context, userID, message string, rating *int) (*domain.Feedback, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyFeedback
	}
	if rating != nil && (*rating < 1 || *rating > 5) {
		return nil, ErrInvalidRating
	}
	return repo.CreateFeedback(ctx, s.DB, userID, message, rating)
}

// List returns the user's feedback, newest first.
func (s *FeedbackService) List(ctx context.Context, userID string) ([]domain.Feedback, error) {
	return repo.ListFeedback(ctx, s.DB, userID)
}
