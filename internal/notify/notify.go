// Package notify abstracts the local notification subsystem that the
// scheduled-text lifecycle depends on. The service layer talks to a Scheduler
// only through opaque notification identifiers; delivery responses flow back
// through a subscription.
//
// The contract mirrors what a mobile shell's notification bridge provides:
// schedule-by-trigger, cancel-by-identifier, and an event stream carrying the
// user's response to a fired notification.
package notify

import (
	"context"
	"time"
)

// Category identifiers carried in notification payloads. The dispatcher only
// processes categories owned by this domain; anything else belongs to other
// subsystems and is ignored.
const (
	CategoryScheduledText = "scheduled-text"
	CategoryBirthdayText  = "birthday-text"
	CategoryReminder      = "reminder"
)

// Action identifiers a response may carry.
const (
	// ActionDefault is the plain body tap.
	ActionDefault = "default"
	// ActionEdit is the explicit "edit" long-press action.
	ActionEdit = "edit"
)

// Request describes one notification to be scheduled.
type Request struct {
	Title   string
	Body    string
	Trigger time.Time
	Data    Data
}

// Data is the domain payload attached to a notification and echoed back on
// its response. TextID correlates the notification to a ScheduledText row;
// ProfileID is set for birthday texts so the dispatcher can clear the
// originating profile's toggle.
type Data struct {
	Category  string `json:"category"`
	TextID    string `json:"text_id"`
	ProfileID string `json:"profile_id,omitempty"`
	Birthday  bool   `json:"birthday,omitempty"`
}

// Response is one inbound notification-response event: the user tapped or
// long-pressed a fired notification. RequestID identifies the physical
// notification and is the dedup key; the platform may redeliver the same
// response on cold start after the live listener already saw it.
type Response struct {
	ActionID  string
	RequestID string
	Data      Data
}

// Handler consumes a single response event.
type Handler func(Response)

// Scheduler schedules and cancels local notifications and delivers responses.
//
// Schedule returns an opaque identifier for the created notification. Cancel
// is idempotent: cancelling an unknown or already-fired identifier is not an
// error. Subscribe registers a response handler and returns an unsubscribe
// function; a scheduler may fan out each response to every subscriber.
type Scheduler interface {
	Schedule(ctx context.Context, req Request) (string, error)
	Cancel(ctx context.Context, id string) error
	Subscribe(h Handler) (unsubscribe func())
}
