// Package services – ProfileService
//
// This file implements profile CRUD plus the two per-profile automations:
// the birthday text toggle (backed by a scheduled text owned by TextService)
// and the gift reminder flag. Arming a birthday text creates the scheduled
// text first and flips the toggle only once the text exists; disarming tears
// the text down through the same lifecycle service so its notification is
// cancelled with it.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/armi-app/armi-server/internal/domain"
	"github.com/armi-app/armi-server/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// birthdayHour is the local wall-clock hour a birthday text fires at.
const birthdayHour = 9

// nameCaser title-cases profile names without lowercasing letters the user
// typed in caps (so "deLong" stays "DeLong", not "Delong").
var nameCaser = cases.Title(language.Und, cases.NoLower)

// ProfileService owns profile records and their automations.
type ProfileService struct {
	DB    *gorm.DB
	Texts *TextService

	// Clock overrides time.Now for birthday scheduling. Nil means time.Now.
	Clock func() time.Time
}

// CreateProfileInput carries the fields for a new profile.
type CreateProfileInput struct {
	Name        string
	PhoneNumber string
	Notes       string
	Birthday    *time.Time
}

// UpdateProfileInput carries the mutable profile fields. Nil means unchanged.
type UpdateProfileInput struct {
	Name        *string
	PhoneNumber *string
	Notes       *string
	Birthday    *time.Time
}

// Create validates and inserts a profile. The name is trimmed and
// title-cased before persisting.
func (s *ProfileService) Create(ctx context.Context, userID string, in CreateProfileInput) (*domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	name := nameCaser.String(strings.TrimSpace(in.Name))
	if name == "" {
		return nil, ErrEmptyName
	}

	return repo.CreateProfile(ctx, s.DB, userID, name,
		strings.TrimSpace(in.PhoneNumber), strings.TrimSpace(in.Notes), in.Birthday)
}

// Get returns a single profile for its owner.
func (s *ProfileService) Get(ctx context.Context, userID, id string) (*domain.Profile, error) {
	p, err := repo.GetProfile(ctx, s.DB, id, userID)
	if err != nil {
		return nil, asProfileNotFound(err)
	}
	return p, nil
}

// ListPage returns paginated profiles for a user, ordered by name.
func (s *ProfileService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Profile, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountProfiles(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Profile{}, 0, nil
	}

	items, err := repo.ListProfilesPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Update applies partial changes to a profile and returns the fresh record.
func (s *ProfileService) Update(ctx context.Context, userID, id string, in UpdateProfileInput) (*domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(
			attribute.String("profile.id", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	updates := map[string]any{}
	if in.Name != nil {
		name := nameCaser.String(strings.TrimSpace(*in.Name))
		if name == "" {
			return nil, ErrEmptyName
		}
		updates["name"] = name
	}
	if in.PhoneNumber != nil {
		updates["phone_number"] = strings.TrimSpace(*in.PhoneNumber)
	}
	if in.Notes != nil {
		updates["notes"] = strings.TrimSpace(*in.Notes)
	}
	if in.Birthday != nil {
		updates["birthday"] = in.Birthday
	}

	if len(updates) > 0 {
		if err := repo.UpdateProfile(ctx, s.DB, id, userID, updates); err != nil {
			return nil, asProfileNotFound(err)
		}
	}
	p, err := repo.GetProfile(ctx, s.DB, id, userID)
	if err != nil {
		return nil, asProfileNotFound(err)
	}
	return p, nil
}

// Delete removes a profile. An armed birthday text is torn down first so no
// notification outlives the profile it was created for.
func (s *ProfileService) Delete(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("profile.id", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	p, err := repo.GetProfile(ctx, s.DB, id, userID)
	if err != nil {
		return asProfileNotFound(err)
	}

	if p.BirthdayTextID != nil {
		if err := s.Texts.Delete(ctx, userID, *p.BirthdayTextID); err != nil && !errors.Is(err, ErrTextNotFound) {
			log.Warn().Err(err).Str("profile_id", id).Msg("failed to delete birthday text with profile")
		}
	}

	if err := repo.DeleteProfile(ctx, s.DB, id, userID); err != nil {
		return asProfileNotFound(err)
	}
	return nil
}

// EnableBirthdayText arms an automatic birthday text for the profile. The
// text is scheduled for the next occurrence of the birthday at 09:00 local
// time; message defaults to a greeting when empty. If the profile is already
// armed, the previous text is replaced.
func (s *ProfileService) EnableBirthdayText(ctx context.Context, userID, profileID, message string) (*TextResult, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "EnableBirthdayText",
		trace.WithAttributes(
			attribute.String("profile.id", profileID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	p, err := repo.GetProfile(ctx, s.DB, profileID, userID)
	if err != nil {
		return nil, asProfileNotFound(err)
	}
	if p.Birthday == nil {
		return nil, ErrNoBirthday
	}

	// Replace, not stack: tear down the previous text before creating a new
	// one so the profile never points at two live birthday texts.
	if p.BirthdayTextID != nil {
		if err := s.Texts.Delete(ctx, userID, *p.BirthdayTextID); err != nil && !errors.Is(err, ErrTextNotFound) {
			return nil, err
		}
	}

	message = strings.TrimSpace(message)
	if message == "" {
		message = fmt.Sprintf("Happy birthday, %s!", p.Name)
	}

	res, err := s.Texts.Create(ctx, userID, CreateTextInput{
		PhoneNumber:  p.PhoneNumber,
		Message:      message,
		ScheduledFor: NextBirthdayOccurrence(*p.Birthday, s.now()),
		ProfileID:    &profileID,
		Birthday:     true,
	})
	if err != nil {
		return nil, err
	}

	if err := repo.UpdateProfileBirthdayTextStatus(ctx, s.DB, profileID, true, &res.Text.ID); err != nil {
		// The toggle could not be flipped; do not leave an unowned text behind.
		if derr := s.Texts.Delete(ctx, userID, res.Text.ID); derr != nil {
			log.Warn().Err(derr).Str("text_id", res.Text.ID).Msg("failed to roll back birthday text")
		}
		return nil, asProfileNotFound(err)
	}
	return res, nil
}

// DisableBirthdayText disarms the birthday toggle and deletes its backing
// scheduled text, cancelling the pending notification with it.
func (s *ProfileService) DisableBirthdayText(ctx context.Context, userID, profileID string) error {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "DisableBirthdayText",
		trace.WithAttributes(
			attribute.String("profile.id", profileID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	p, err := repo.GetProfile(ctx, s.DB, profileID, userID)
	if err != nil {
		return asProfileNotFound(err)
	}

	if p.BirthdayTextID != nil {
		if err := s.Texts.Delete(ctx, userID, *p.BirthdayTextID); err != nil && !errors.Is(err, ErrTextNotFound) {
			return err
		}
	}

	if err := repo.UpdateProfileBirthdayTextStatus(ctx, s.DB, profileID, false, nil); err != nil {
		return asProfileNotFound(err)
	}
	return nil
}

// SetGiftReminder flips the profile's gift reminder flag. The flag itself is
// cleared automatically when a linked gift reminder is completed.
func (s *ProfileService) SetGiftReminder(ctx context.Context, userID, profileID string, enabled bool) error {
	if _, err := repo.GetProfile(ctx, s.DB, profileID, userID); err != nil {
		return asProfileNotFound(err)
	}
	if err := repo.UpdateProfileGiftReminderStatus(ctx, s.DB, profileID, enabled); err != nil {
		return asProfileNotFound(err)
	}
	return nil
}

// NextBirthdayOccurrence returns the next occurrence of birthday's month and
// day after now, at 09:00 in now's location. A birthday occurring later today
// still counts as this year's.
func NextBirthdayOccurrence(birthday, now time.Time) time.Time {
	next := time.Date(now.Year(), birthday.Month(), birthday.Day(), birthdayHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year()+1, birthday.Month(), birthday.Day(), birthdayHour, 0, 0, 0, now.Location())
	}
	return next
}

func (s *ProfileService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// asProfileNotFound maps store not-found errors to the service sentinel.
func asProfileNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, repo.ErrNotFound) {
		return ErrProfileNotFound
	}
	return err
}
