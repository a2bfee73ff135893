// Handler wiring shared across all endpoint files.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Service dependencies are taken as
// interfaces so tests can swap in fakes without a database.
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/armi-app/armi-server/internal/domain"
	"github.com/armi-app/armi-server/internal/notify"
	"github.com/armi-app/armi-server/internal/services"
	"github.com/armi-app/armi-server/internal/utils"
)

//
// Service contracts (context-aware)
//

// TextService defines scheduled-text lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type TextService interface {
	// Create validates and inserts a scheduled text, scheduling its notification.
	Create(ctx context.Context, userID string, in services.CreateTextInput) (*services.TextResult, error)
	// Get returns a single scheduled text owned by userID.
	Get(ctx context.Context, userID, id string) (*domain.ScheduledText, error)
	// ListPage returns a page of the user's scheduled texts and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.ScheduledText, int64, error)
	// Edit applies partial updates to an unsent scheduled text.
	Edit(ctx context.Context, userID, id string, in services.EditTextInput) (*services.TextResult, error)
	// Snooze moves the text to the next snooze slot.
	Snooze(ctx context.Context, userID, id string) (*services.TextResult, error)
	// MarkAsSent flips the terminal sent flag.
	MarkAsSent(ctx context.Context, userID, id string) error
	// Delete removes the text and cancels its notification.
	Delete(ctx context.Context, userID, id string) error
	// MonthlyCount reports quota usage for the current calendar month.
	MonthlyCount(ctx context.Context, userID string) (used int64, limit int, err error)
}

// ProfileService defines profile CRUD and automation toggles.
type ProfileService interface {
	Create(ctx context.Context, userID string, in services.CreateProfileInput) (*domain.Profile, error)
	Get(ctx context.Context, userID, id string) (*domain.Profile, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Profile, int64, error)
	Update(ctx context.Context, userID, id string, in services.UpdateProfileInput) (*domain.Profile, error)
	Delete(ctx context.Context, userID, id string) error
	EnableBirthdayText(ctx context.Context, userID, profileID, message string) (*services.TextResult, error)
	DisableBirthdayText(ctx context.Context, userID, profileID string) error
	SetGiftReminder(ctx context.Context, userID, profileID string, enabled bool) error
}

// ReminderService defines reminder lifecycle operations.
type ReminderService interface {
	Create(ctx context.Context, userID string, in services.CreateReminderInput) (*services.ReminderResult, error)
	Get(ctx context.Context, userID, id string) (*domain.Reminder, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Reminder, int64, error)
	Complete(ctx context.Context, userID, id string) error
	Delete(ctx context.Context, userID, id string) error
}

// FeedbackService defines operations to capture app feedback.
type FeedbackService interface {
	Submit(ctx context.Context, userID, message string, rating *int) (*domain.Feedback, error)
	List(ctx context.Context, userID string) ([]domain.Feedback, error)
}

// ResponseDispatcher consumes notification response events replayed over HTTP.
type ResponseDispatcher interface {
	Dispatch(ctx context.Context, resp notify.Response) services.Disposition
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for scheduled texts, profiles,
// reminders, feedback, and the notification-response webhook.
type Handlers struct {
	textSvc     TextService
	profileSvc  ProfileService
	reminderSvc ReminderService
	feedbackSvc FeedbackService
	dispatcher  ResponseDispatcher
}

// New constructs a Handlers instance bound to the given services.
func New(textSvc TextService, profileSvc ProfileService, reminderSvc ReminderService, feedbackSvc FeedbackService, dispatcher ResponseDispatcher) *Handlers {
	return &Handlers{
		textSvc:     textSvc,
		profileSvc:  profileSvc,
		reminderSvc: reminderSvc,
		feedbackSvc: feedbackSvc,
		dispatcher:  dispatcher,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// Shared DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// paginationFor computes the metadata block for a page of total items.
func paginationFor(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// parseTime parses an RFC 3339 timestamp, returning a zero time on failure.
func parseTime(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
