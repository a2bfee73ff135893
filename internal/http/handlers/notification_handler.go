// Notification response webhook.
//
// This file exposes the replay path for notification responses:
//   - POST /notifications/response
//
// A mobile shell delivers responses live through the scheduler subscription,
// but a response that arrived while the process was down is replayed here on
// the next cold start. The dispatcher's dedup set makes the overlap safe: the
// same request id submitted on both paths is handled exactly once.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/armi-app/armi-server/internal/notify"
)

// NotificationResponseRequest is the JSON payload for a replayed response.
type NotificationResponseRequest struct {
	// RequestID identifies the fired notification; it is the dedup key.
	RequestID string `json:"request_id" binding:"required"`
	// ActionID is the action the user chose; empty means the default tap.
	ActionID string      `json:"action_id"`
	Data     notify.Data `json:"data"`
}

// NotificationResponseResult echoes the dispatcher's decision.
type NotificationResponseResult struct {
	Disposition string `json:"disposition" example:"marked_sent"`
}

// HandleNotificationResponse godoc
// @ID          handleNotificationResponse
// @Summary     Replay a notification response
// @Description Feeds one notification response event through the dispatcher. Duplicates are dropped.
// @Tags        Notifications
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.NotificationResponseRequest  true  "Response event"
//
// @Success     200  {object} handlers.NotificationResponseResult
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /notifications/response [post]
func (h *Handlers) HandleNotificationResponse(c *gin.Context) {
	var req NotificationResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RequestID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request_id required")
		return
	}

	actionID := req.ActionID
	if actionID == "" {
		actionID = notify.ActionDefault
	}

	disp := h.dispatcher.Dispatch(c.Request.Context(), notify.Response{
		ActionID:  actionID,
		RequestID: req.RequestID,
		Data:      req.Data,
	})
	ok(c, http.StatusOK, NotificationResponseResult{Disposition: string(disp)})
}
