// Reminder HTTP handlers.
//
// This file exposes REST endpoints for reminder resources:
//   - POST   /reminders                 (create)
//   - GET    /reminders                 (list, paginated)
//   - GET    /reminders/{id}            (fetch one)
//   - POST   /reminders/{id}/complete   (complete)
//   - DELETE /reminders/{id}            (delete)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/armi-app/armi-server/internal/domain"
	"github.com/armi-app/armi-server/internal/services"
)

//
// DTOs
//

// CreateReminderRequest is the JSON payload for creating a reminder.
type CreateReminderRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=255" example:"Buy a gift"`
	Description string `json:"description"`
	// Type is "general" or "gift"; empty defaults to general.
	Type string `json:"type" example:"gift"`
	// DueAt is an RFC 3339 timestamp.
	DueAt     string  `json:"due_at" binding:"required" example:"2026-06-01T09:00:00Z"`
	ProfileID *string `json:"profile_id,omitempty"`
}

// ListRemindersResponse wraps a page of reminders and pagination info.
type ListRemindersResponse struct {
	Reminders  []domain.Reminder `json:"reminders"`
	Pagination Pagination        `json:"pagination"`
}

//
// Handlers
//

// CreateReminder godoc
// @ID          createReminder
// @Summary     Create a reminder
// @Tags        Reminders
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateReminderRequest  true  "Create payload"
//
// @Success     201  {object} services.ReminderResult
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /reminders [post]
func (h *Handlers) CreateReminder(c *gin.Context) {
	var req CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	due, okTime := parseTime(req.DueAt)
	if !okTime {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "due_at must be RFC 3339")
		return
	}

	res, err := h.reminderSvc.Create(c.Request.Context(), userID(c), services.CreateReminderInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		DueAt:       due,
		ProfileID:   req.ProfileID,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyName), errors.Is(err, services.ErrInvalidReminderType):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, res)
}

// ListReminders godoc
// @ID          listReminders
// @Summary     List reminders (paginated)
// @Tags        Reminders
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListRemindersResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /reminders [get]
func (h *Handlers) ListReminders(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.reminderSvc.ListPage(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListRemindersResponse{
		Reminders:  items,
		Pagination: paginationFor(page, pageSize, total),
	})
}

// GetReminder godoc
// @ID          getReminder
// @Summary     Fetch one reminder
// @Tags        Reminders
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Reminder ID (UUID)" format(uuid)
//
// @Success     200  {object} domain.Reminder
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /reminders/{id} [get]
func (h *Handlers) GetReminder(c *gin.Context) {
	id, okID := reminderID(c)
	if !okID {
		return
	}
	r, err := h.reminderSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failReminderErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, r)
}

// CompleteReminder godoc
// @ID          completeReminder
// @Summary     Complete a reminder
// @Description Cancels the notification, marks the reminder done, and clears a linked gift flag.
// @Tags        Reminders
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Reminder ID (UUID)" format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /reminders/{id}/complete [post]
func (h *Handlers) CompleteReminder(c *gin.Context) {
	id, okID := reminderID(c)
	if !okID {
		return
	}
	if err := h.reminderSvc.Complete(c.Request.Context(), userID(c), id); err != nil {
		failReminderErr(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}

// DeleteReminder godoc
// @ID          deleteReminder
// @Summary     Delete a reminder
// @Tags        Reminders
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Reminder ID (UUID)" format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /reminders/{id} [delete]
func (h *Handlers) DeleteReminder(c *gin.Context) {
	id, okID := reminderID(c)
	if !okID {
		return
	}
	if err := h.reminderSvc.Delete(c.Request.Context(), userID(c), id); err != nil {
		failReminderErr(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}

//
// Helpers
//

// reminderID validates the :id path param and writes a 400 when invalid.
func reminderID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reminder id must be a UUID")
		return "", false
	}
	return id, true
}

// failReminderErr maps service sentinels onto HTTP statuses.
func failReminderErr(c *gin.Context, err error, fallbackCode string) {
	if errors.Is(err, services.ErrReminderNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "reminder not found")
		return
	}
	fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
}
