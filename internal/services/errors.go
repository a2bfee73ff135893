// Package services defines the business logic for profiles, scheduled texts,
// reminders, and feedback. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Scheduled-text errors.
var (
	// ErrTextNotFound indicates that the requested scheduled text does not
	// exist or is not accessible to the current user.
	ErrTextNotFound = errors.New("scheduled text not found")

	// ErrEmptyMessage is returned when a create or edit request carries an
	// empty message body.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrEmptyPhoneNumber is returned when a create request carries no
	// destination phone number.
	ErrEmptyPhoneNumber = errors.New("phone number is empty")

	// ErrAlreadySent is returned when a mutation targets a text that has
	// already been sent. Sent is terminal; there is no unsend.
	ErrAlreadySent = errors.New("scheduled text already sent")

	// ErrQuotaExceeded is returned when the free-tier monthly scheduled-text
	// quota has been reached.
	ErrQuotaExceeded = errors.New("monthly scheduled text quota exceeded")
)

// Profile errors.
var (
	// ErrProfileNotFound indicates that the requested profile does not exist
	// or is not accessible to the current user.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrEmptyName is returned when a profile is created without a name.
	ErrEmptyName = errors.New("name is empty")

	// ErrNoBirthday is returned when a birthday text is armed for a profile
	// that has no birthday on record.
	ErrNoBirthday = errors.New("profile has no birthday set")
)

// Reminder errors.
var (
	// ErrReminderNotFound indicates that the requested reminder does not
	// exist or is not accessible to the current user.
	ErrReminderNotFound = errors.New("reminder not found")

	// ErrInvalidReminderType is returned when the reminder type is outside
	// the allowed set ("general" or "gift").
	ErrInvalidReminderType = errors.New("reminder type must be general or gift")
)

// Feedback errors.
var (
	// ErrEmptyFeedback is returned when a feedback submission has no message.
	ErrEmptyFeedback = errors.New("feedback message is empty")

	// ErrInvalidRating is returned when a feedback rating is outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)
