// Profile HTTP handlers.
//
// This file exposes REST endpoints for profile resources and their
// automations:
//   - POST   /profiles                         (create)
//   - GET    /profiles                         (list, paginated)
//   - GET    /profiles/{id}                    (fetch one)
//   - PUT    /profiles/{id}                    (update)
//   - DELETE /profiles/{id}                    (delete, tears down birthday text)
//   - POST   /profiles/{id}/birthday-text      (arm birthday text)
//   - DELETE /profiles/{id}/birthday-text      (disarm birthday text)
//   - PUT    /profiles/{id}/gift-reminder      (flip gift reminder flag)
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

// CreateProfileRequest is the JSON payload for creating a profile.
type CreateProfileRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=255" example:"June Carter"`
	PhoneNumber string `json:"phone_number" example:"+15555550123"`
	Notes       string `json:"notes"`
	// Birthday is an RFC 3339 timestamp; the time component is ignored.
	Birthday *string `json:"birthday,omitempty" example:"1990-06-15T00:00:00Z"`
}

// UpdateProfileRequest is the JSON payload for editing a profile. Absent
// fields are left unchanged.
type UpdateProfileRequest struct {
	Name        *string `json:"name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Birthday    *string `json:"birthday,omitempty"`
}

// EnableBirthdayTextRequest optionally overrides the generated greeting.
type EnableBirthdayTextRequest struct {
	Message string `json:"message"`
}

// SetGiftReminderRequest flips the gift reminder flag.
type SetGiftReminderRequest struct {
	Enabled bool `json:"enabled"`
}

// ListProfilesResponse wraps a page of profiles and pagination info.
type ListProfilesResponse struct {
	Profiles   []domain.Profile `json:"profiles"`
	Pagination Pagination       `json:"pagination"`
}

//
// Handlers
//

// CreateProfile godoc
// @ID          createProfile
// @Summary     Create a profile
// @Tags        Profiles
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateProfileRequest  true  "Create payload"
//
// @Success     201  {object} domain.Profile
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /profiles [post]
func (h *Handlers) CreateProfile(c *gin.Context) {
	var req CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	in := services.CreateProfileInput{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Notes:       req.Notes,
	}
	if req.Birthday != nil {
		bd, okTime := parseTime(*req.Birthday)
		if !okTime {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "birthday must be RFC 3339")
			return
		}
		in.Birthday = &bd
	}

	p, err := h.profileSvc.Create(c.Request.Context(), userID(c), in)
	if err != nil {
		if errors.Is(err, services.ErrEmptyName) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, p)
}

// ListProfiles godoc
// @ID          listProfiles
// @Summary     List profiles (paginated)
// @Tags        Profiles
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListProfilesResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /profiles [get]
func (h *Handlers) ListProfiles(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.profileSvc.ListPage(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListProfilesResponse{
		Profiles:   items,
		Pagination: paginationFor(page, pageSize, total),
	})
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Fetch one profile
// @Tags        Profiles
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Profile ID (UUID)" format(uuid)
//
// @Success     200  {object} domain.Profile
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /profiles/{id} [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	id, okID := profileID(c)
	if !okID {
		return
	}
	p, err := h.profileSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failProfileErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Edit a profile
// @Tags        Profiles
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Profile ID (UUID)" format(uuid)
// @Param       body       body    handlers.UpdateProfileRequest  true  "Fields to change"
//
// @Success     200  {object} domain.Profile
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /profiles/{id} [put]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	id, okID := profileID(c)
	if !okID {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	in := services.UpdateProfileInput{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Notes:       req.Notes,
	}
	if req.Birthday != nil {
		bd, okTime := parseTime(*req.Birthday)
		if !okTime {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "birthday must be RFC 3339")
			return
		}
		in.Birthday = &bd
	}

	p, err := h.profileSvc.Update(c.Request.Context(), userID(c), id, in)
	if err != nil {
		if errors.Is(err, services.ErrEmptyName) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		failProfileErr(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, p)
}

// DeleteProfile godoc
// @ID          deleteProfile
// @Summary     Delete a profile
// @Description Removes the profile; an armed birthday text is torn down with it.
// @Tags        Profiles
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Profile ID (UUID)" format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /profiles/{id} [delete]
func (h *Handlers) DeleteProfile(c *gin.Context) {
	id, okID := profileID(c)
	if !okID {
		return
	}
	if err := h.profileSvc.Delete(c.Request.Context(), userID(c), id); err != nil {
		failProfileErr(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}

// EnableBirthdayText godoc
// @ID          enableBirthdayText
// @Summary     Arm an automatic birthday text
// @Description Schedules a birthday text for the profile's next birthday and flips the toggle.
// @Tags        Profiles
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Profile ID (UUID)" format(uuid)
// @Param       body       body    handlers.EnableBirthdayTextRequest  false "Optional custom message"
//
// @Success     201  {object} services.TextResult
// @Failure     400  {object} handlers.ErrorResponse "No birthday on record"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /profiles/{id}/birthday-text [post]
func (h *Handlers) EnableBirthdayText(c *gin.Context) {
	id, okID := profileID(c)
	if !okID {
		return
	}

	var req EnableBirthdayTextRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	res, err := h.profileSvc.EnableBirthdayText(c.Request.Context(), userID(c), id, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoBirthday), errors.Is(err, services.ErrEmptyPhoneNumber):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			failProfileErr(c, err, ErrCodeCreateFailed)
		}
		return
	}
	ok(c, http.StatusCreated, res)
}

// DisableBirthdayText godoc
// @ID          disableBirthdayText
// @Summary     Disarm the automatic birthday text
// @Tags        Profiles
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Profile ID (UUID)" format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /profiles/{id}/birthday-text [delete]
func (h *Handlers) DisableBirthdayText(c *gin.Context) {
	id, okID := profileID(c)
	if !okID {
		return
	}
	if err := h.profileSvc.DisableBirthdayText(c.Request.Context(), userID(c), id); err != nil {
		failProfileErr(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}

// SetGiftReminder godoc
// @ID          setGiftReminder
// @Summary     Flip the gift reminder flag
// @Tags        Profiles
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Profile ID (UUID)" format(uuid)
// @Param       body       body    handlers.SetGiftReminderRequest  true  "Desired state"
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /profiles/{id}/gift-reminder [put]
func (h *Handlers) SetGiftReminder(c *gin.Context) {
	id, okID := profileID(c)
	if !okID {
		return
	}

	var req SetGiftReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.profileSvc.SetGiftReminder(c.Request.Context(), userID(c), id, req.Enabled); err != nil {
		failProfileErr(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}

//
// Helpers
//

// profileID validates the :id path param and writes a 400 when invalid.
func profileID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "profile id must be a UUID")
		return "", false
	}
	return id, true
}

// failProfileErr maps service sentinels onto HTTP statuses.
func failProfileErr(c *gin.Context, err error, fallbackCode string) {
	if errors.Is(err, services.ErrProfileNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "profile not found")
		return
	}
	fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
}
