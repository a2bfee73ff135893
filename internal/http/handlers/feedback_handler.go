// Feedback HTTP handlers.
//
// This file exposes REST endpoints for app feedback:
//   - POST /feedback  (submit)
//   - GET  /feedback  (list own submissions)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/armi-app/armi-server/internal/services"
)

// SubmitFeedbackRequest is the JSON payload for submitting feedback.
type SubmitFeedbackRequest struct {
	Message string `json:"message" binding:"required" example:"Snooze saved my week"`
	// Rating is optional; when present it must be within 1..5.
	Rating *int `json:"rating,omitempty" example:"5"`
}

// SubmitFeedback godoc
// @ID          submitFeedback
// @Summary     Submit app feedback
// @Tags        Feedback
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.SubmitFeedbackRequest  true  "Feedback payload"
//
// @Success     201  {object} domain.Feedback
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /feedback [post]
func (h *Handlers) SubmitFeedback(c *gin.Context) {
	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	fb, err := h.feedbackSvc.Submit(c.Request.Context(), userID(c), req.Message, req.Rating)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyFeedback), errors.Is(err, services.ErrInvalidRating):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, fb)
}

// ListFeedback godoc
// @ID          listFeedback
// @Summary     List own feedback submissions
// @Tags        Feedback
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {array}  domain.Feedback
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /feedback [get]
func (h *Handlers) ListFeedback(c *gin.Context) {
	items, err := h.feedbackSvc.List(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, items)
}
