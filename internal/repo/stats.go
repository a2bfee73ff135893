// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for free-tier quota enforcement and conditional responses in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/armi-app/armi-server/internal/domain"
)

// MonthlyScheduledTextCount returns how many scheduled texts userID created
// in the calendar month containing now. The free tier caps this number; the
// service compares the count against the configured limit before creating a
// new record.
func MonthlyScheduledTextCount(ctx context.Context, db *gorm.DB, userID string, now time.Time) (int64, error) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).UTC()
	end := start.AddDate(0, 1, 0)

	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ScheduledText{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, start, end).
		Count(&total).Error
	return total, err
}

// ScheduledTextsStats returns aggregate metadata for a user's scheduled
// texts: the total number of rows and the maximum UpdatedAt timestamp among
// those rows. Used for ETag generation on list responses.
//
// Return values:
//   - count:        total scheduled texts for userID
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func ScheduledTextsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ScheduledText{}).Where("user_id = ?", userID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
