// Scheduled text HTTP handlers.
//
// This file exposes REST endpoints for scheduled text resources:
//   - POST   /texts                (create, Idempotency-Key replay)
//   - GET    /texts                (list, paginated, ETag support)
//   - GET    /texts/{id}           (fetch one)
//   - PUT    /texts/{id}           (edit)
//   - POST   /texts/{id}/snooze    (move to next snooze slot)
//   - POST   /texts/{id}/sent      (mark sent)
//   - DELETE /texts/{id}           (delete)
//   - GET    /texts/stats/monthly  (quota usage)
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/armi-app/armi-server/internal/domain"
	"github.com/armi-app/armi-server/internal/repo"
	"github.com/armi-app/armi-server/internal/services"
)

// idempotencyTTL is how long a stored Idempotency-Key replay stays valid.
const idempotencyTTL = 24 * time.Hour

//
// DTOs
//

// CreateTextRequest is the JSON payload for scheduling a text.
type CreateTextRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required" example:"+15555550123"`
	Message     string `json:"message"      binding:"required" example:"Happy birthday!"`
	// ScheduledFor is an RFC 3339 timestamp.
	ScheduledFor   string  `json:"scheduled_for" binding:"required" example:"2026-06-15T09:00:00Z"`
	ProfileID      *string `json:"profile_id,omitempty"`
	IsBirthdayText bool    `json:"is_birthday_text"`
}

// UpdateTextRequest is the JSON payload for editing a text. Absent fields are
// left unchanged.
type UpdateTextRequest struct {
	PhoneNumber  *string `json:"phone_number,omitempty"`
	Message      *string `json:"message,omitempty"`
	ScheduledFor *string `json:"scheduled_for,omitempty"`
}

// ListTextsResponse wraps a page of scheduled texts and pagination info.
type ListTextsResponse struct {
	Texts      []domain.ScheduledText `json:"texts"`
	Pagination Pagination             `json:"pagination"`
}

// MonthlyStatsResponse reports quota usage for the current calendar month.
type MonthlyStatsResponse struct {
	Used  int64 `json:"used"`
	Limit int   `json:"limit"` // 0 means unlimited
}

//
// Handlers
//

// CreateText godoc
// @ID          createText
// @Summary     Schedule a text
// @Description Creates a scheduled text and arms its notification. Supports Idempotency-Key replay.
// @Tags        Texts
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Replay-safe create key"
// @Param       body             body    handlers.CreateTextRequest  true  "Create payload"
//
// @Success     201  {object}  services.TextResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Quota exceeded"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /texts [post]
func (h *Handlers) CreateText(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	var req CreateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	when, okTime := parseTime(req.ScheduledFor)
	if !okTime {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "scheduled_for must be RFC 3339")
		return
	}

	// Idempotency replay (best effort): a stored key returns the original
	// record instead of creating a second text.
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	db := h.textDB()
	if key != "" && db != nil {
		if rec, err := repo.GetIdempotency(ctx, db, uid, key, time.Now().UTC()); err == nil {
			if st, gerr := h.textSvc.Get(ctx, uid, rec.TextID); gerr == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, rec.Status, services.TextResult{Text: st, NotificationScheduled: st.NotificationID != nil})
				return
			}
		}
	}

	res, err := h.textSvc.Create(ctx, uid, services.CreateTextInput{
		PhoneNumber:  req.PhoneNumber,
		Message:      req.Message,
		ScheduledFor: when,
		ProfileID:    req.ProfileID,
		Birthday:     req.IsBirthdayText,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage), errors.Is(err, services.ErrEmptyPhoneNumber):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrQuotaExceeded):
			fail(c, http.StatusForbidden, ErrCodeQuotaExceeded, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	if key != "" && db != nil {
		// Replay protection is advisory; the create already succeeded.
		_, _ = repo.CreateIdempotency(ctx, db, uid, key, res.Text.ID, http.StatusCreated, idempotencyTTL)
	}
	ok(c, http.StatusCreated, res)
}

// ListTexts godoc
// @ID          listTexts
// @Summary     List scheduled texts (paginated)
// @Description Returns a page of the user's scheduled texts, soonest first. Supports weak ETag via If-None-Match.
// @Tags        Texts
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListTextsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /texts [get]
func (h *Handlers) ListTexts(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if db := h.textDB(); db != nil {
		count, maxTS, err := repo.ScheduledTextsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"texts:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.textSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListTextsResponse{
		Texts:      items,
		Pagination: paginationFor(page, pageSize, total),
	})
}

// GetText godoc
// @ID          getText
// @Summary     Fetch one scheduled text
// @Tags        Texts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Text ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.ScheduledText
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /texts/{id} [get]
func (h *Handlers) GetText(c *gin.Context) {
	id, okID := textID(c)
	if !okID {
		return
	}
	st, err := h.textSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failTextErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, st)
}

// UpdateText godoc
// @ID          updateText
// @Summary     Edit a scheduled text
// @Description Applies partial changes to an unsent text. The pending notification is replaced.
// @Tags        Texts
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Text ID (UUID)"  format(uuid)
// @Param       body       body    handlers.UpdateTextRequest  true  "Fields to change"
//
// @Success     200  {object} services.TextResult
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Failure     409  {object} handlers.ErrorResponse "Already sent"
// @Router      /texts/{id} [put]
func (h *Handlers) UpdateText(c *gin.Context) {
	id, okID := textID(c)
	if !okID {
		return
	}

	var req UpdateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	in := services.EditTextInput{PhoneNumber: req.PhoneNumber, Message: req.Message}
	if req.ScheduledFor != nil {
		when, okTime := parseTime(*req.ScheduledFor)
		if !okTime {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "scheduled_for must be RFC 3339")
			return
		}
		in.ScheduledFor = &when
	}

	res, err := h.textSvc.Edit(c.Request.Context(), userID(c), id, in)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage), errors.Is(err, services.ErrEmptyPhoneNumber):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			failTextErr(c, err, ErrCodeUpdateFailed)
		}
		return
	}
	ok(c, http.StatusOK, res)
}

// SnoozeText godoc
// @ID          snoozeText
// @Summary     Snooze a scheduled text
// @Description Moves the text to 09:00 local time on the next calendar day and replaces its notification.
// @Tags        Texts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Text ID (UUID)"  format(uuid)
//
// @Success     200  {object} services.TextResult
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Failure     409  {object} handlers.ErrorResponse "Already sent"
// @Router      /texts/{id}/snooze [post]
func (h *Handlers) SnoozeText(c *gin.Context) {
	id, okID := textID(c)
	if !okID {
		return
	}
	res, err := h.textSvc.Snooze(c.Request.Context(), userID(c), id)
	if err != nil {
		failTextErr(c, err, ErrCodeSnoozeFailed)
		return
	}
	ok(c, http.StatusOK, res)
}

// MarkTextSent godoc
// @ID          markTextSent
// @Summary     Mark a scheduled text as sent
// @Description Cancels the pending notification and flips the terminal sent flag.
// @Tags        Texts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Text ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /texts/{id}/sent [post]
func (h *Handlers) MarkTextSent(c *gin.Context) {
	id, okID := textID(c)
	if !okID {
		return
	}
	if err := h.textSvc.MarkAsSent(c.Request.Context(), userID(c), id); err != nil {
		failTextErr(c, err, ErrCodeSendFailed)
		return
	}
	noContent(c)
}

// DeleteText godoc
// @ID          deleteText
// @Summary     Delete a scheduled text
// @Description Cancels the pending notification and removes the record.
// @Tags        Texts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Text ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /texts/{id} [delete]
func (h *Handlers) DeleteText(c *gin.Context) {
	id, okID := textID(c)
	if !okID {
		return
	}
	if err := h.textSvc.Delete(c.Request.Context(), userID(c), id); err != nil {
		failTextErr(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}

// MonthlyTextStats godoc
// @ID          monthlyTextStats
// @Summary     Monthly quota usage
// @Description Reports how many texts were scheduled this calendar month against the configured limit.
// @Tags        Texts
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object} handlers.MonthlyStatsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /texts/stats/monthly [get]
func (h *Handlers) MonthlyTextStats(c *gin.Context) {
	used, limit, err := h.textSvc.MonthlyCount(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, MonthlyStatsResponse{Used: used, Limit: limit})
}

//
// Helpers
//

// textID validates the :id path param and writes a 400 when it is not a UUID.
func textID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text id must be a UUID")
		return "", false
	}
	return id, true
}

// failTextErr maps service sentinels onto HTTP statuses, using fallbackCode
// for unclassified errors.
func failTextErr(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrTextNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "scheduled text not found")
	case errors.Is(err, services.ErrAlreadySent):
		fail(c, http.StatusConflict, ErrCodeAlreadySent, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

// textDB exposes the concrete service's database handle for ETag and
// idempotency lookups; nil when the handler was built on a fake.
func (h *Handlers) textDB() *gorm.DB {
	if svc, okSvc := h.textSvc.(*services.TextService); okSvc {
		return svc.DB
	}
	return nil
}
