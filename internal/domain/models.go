// Package domain defines the persistence models for profiles, scheduled
// texts, reminders, and feedback. These types are mapped with GORM and form
// the core data layer of the ARMi backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Profile represents a person in the user's network. Profiles are the anchor
// for reminders and scheduled texts; a scheduled text may reference a profile
// but the profile does not own it (weak reference, lookup only).
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the account that owns this profile; indexed.
//   - Name: display name of the contact.
//   - PhoneNumber: contact number; not validated beyond shape.
//   - Birthday: optional date of birth (time component ignored).
//   - Notes: free-form relationship notes.
//   - BirthdayTextEnabled: true while an automatic birthday text is armed.
//   - BirthdayTextID: the scheduled text backing the birthday toggle, if any.
//   - GiftReminderEnabled: true while a gift reminder is armed for this profile.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type Profile struct {
	ID                  string         `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID              string         `json:"user_id"      gorm:"type:varchar(64);not null;index:idx_user_profiles"`
	Name                string         `json:"name"         gorm:"type:varchar(255);not null"`
	PhoneNumber         string         `json:"phone_number" gorm:"type:varchar(32)"`
	Birthday            *time.Time     `json:"birthday,omitempty"`
	Notes               string         `json:"notes"        gorm:"type:text"`
	BirthdayTextEnabled bool           `json:"birthday_text_enabled" gorm:"not null;default:false"`
	BirthdayTextID      *string        `json:"birthday_text_id,omitempty" gorm:"type:char(36)"`
	GiftReminderEnabled bool           `json:"gift_reminder_enabled" gorm:"not null;default:false"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// ScheduledText represents an outbound text message to be composed at a
// future time. Its lifecycle is owned by services.TextService, which keeps
// the record and its local notification in sync.
//
// Invariants (enforced by the service layer, not the schema):
//   - At most one live notification identifier per record at any time.
//   - Sent == true implies NotificationID == nil.
//   - ScheduledFor changes only through an explicit edit or snooze.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: identifier of the owning account; indexed.
//   - ProfileID: optional weak reference to a Profile (no FK constraint).
//   - PhoneNumber: destination number, required.
//   - Message: body text, required, non-empty.
//   - ScheduledFor: absolute point in time the text should go out.
//   - Sent: terminal flag; there is no unsend.
//   - NotificationID: opaque identifier of the single active notification,
//     or nil when none is scheduled.
//   - IsBirthdayText: marks texts armed through a profile's birthday toggle.
type ScheduledText struct {
	ID             string         `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID         string         `json:"user_id"       gorm:"type:varchar(64);not null;index:idx_user_texts"`
	ProfileID      *string        `json:"profile_id,omitempty" gorm:"type:char(36);index"`
	PhoneNumber    string         `json:"phone_number"  gorm:"type:varchar(32);not null"`
	Message        string         `json:"message"       gorm:"type:text;not null"`
	ScheduledFor   time.Time      `json:"scheduled_for" gorm:"not null;index"`
	Sent           bool           `json:"sent"          gorm:"not null;default:false"`
	NotificationID *string        `json:"notification_id,omitempty" gorm:"type:varchar(64)"`
	IsBirthdayText bool           `json:"is_birthday_text" gorm:"not null;default:false"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for ScheduledText.
func (ScheduledText) TableName() string { return "scheduled_texts" }

// Reminder is the lighter-weight sibling of ScheduledText: a dated prompt
// with a completion flag and optional profile linkage. Completing a gift
// reminder also clears the linked profile's gift toggle.
type Reminder struct {
	ID             string         `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID         string         `json:"user_id"     gorm:"type:varchar(64);not null;index:idx_user_reminders"`
	ProfileID      *string        `json:"profile_id,omitempty" gorm:"type:char(36);index"`
	Title          string         `json:"title"       gorm:"type:varchar(255);not null"`
	Description    string         `json:"description" gorm:"type:text"`
	DueAt          time.Time      `json:"due_at"      gorm:"not null;index"`
	Type           string         `json:"type"        gorm:"type:varchar(16);not null;default:'general';check:type IN ('general','gift')"`
	Completed      bool           `json:"completed"   gorm:"not null;default:false"`
	NotificationID *string        `json:"notification_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Reminder.
func (Reminder) TableName() string { return "reminders" }

// Reminder types.
const (
	ReminderTypeGeneral = "general"
	ReminderTypeGift    = "gift"
)

// Feedback represents a piece of app feedback submitted by a user. It is a
// plain CRUD entity with no lifecycle beyond creation.
type Feedback struct {
	ID        string         `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id" gorm:"type:varchar(64);not null;index"`
	Message   string         `json:"message" gorm:"type:text;not null"`
	Rating    *int           `json:"rating,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"       gorm:"index"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }
