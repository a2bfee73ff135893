// Package services – SweepService
//
// This file implements the birthday cleanup sweep. A birthday text whose
// scheduled time passed without the user acting on the notification leaves a
// profile armed with a stale toggle and a record that will never resolve
// itself. The sweep reconciles those leftovers: the past-due record is marked
// sent, its stray notification is cancelled, and the profile is disarmed.
//
// Run is invoked once at startup; Start additionally repeats it on a ticker
// for long-lived deployments.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/armi-app/armi-server/internal/domain"
	"github.com/armi-app/armi-server/internal/notify"
	"github.com/armi-app/armi-server/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// SweepService reconciles past-due birthday texts with their profiles.
type SweepService struct {
	DB        *gorm.DB
	Scheduler notify.Scheduler

	// Clock overrides time.Now for past-due evaluation. Nil means time.Now.
	Clock func() time.Time
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Examined int
	Cleaned  int
	Errors   int
}

// Run performs one sweep over every profile with birthday texting armed.
// Each profile is handled independently; one failure never stops the pass.
func (s *SweepService) Run(ctx context.Context) (SweepResult, error) {
	tr := otel.Tracer("services/SweepService")
	ctx, span := tr.Start(ctx, "Run")
	defer span.End()

	var res SweepResult

	profiles, err := repo.ListProfilesWithBirthdayTextEnabled(ctx, s.DB)
	if err != nil {
		return res, err
	}

	now := s.now()
	for i := range profiles {
		p := &profiles[i]
		res.Examined++
		cleaned, err := s.sweepProfile(ctx, p, now)
		if err != nil {
			res.Errors++
			log.Warn().Err(err).Str("profile_id", p.ID).Msg("birthday sweep failed for profile")
			continue
		}
		if cleaned {
			res.Cleaned++
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.examined", res.Examined),
		attribute.Int("sweep.cleaned", res.Cleaned),
		attribute.Int("sweep.errors", res.Errors),
	)
	log.Info().
		Int("examined", res.Examined).
		Int("cleaned", res.Cleaned).
		Int("errors", res.Errors).
		Msg("birthday cleanup sweep finished")
	return res, nil
}

// sweepProfile reconciles one armed profile. Profiles whose text is missing
// are disarmed outright; texts still in the future are left alone. The bool
// reports whether any state was repaired.
func (s *SweepService) sweepProfile(ctx context.Context, p *domain.Profile, now time.Time) (bool, error) {
	if p.BirthdayTextID == nil || *p.BirthdayTextID == "" {
		// Armed without a related text id. Disarm; there is nothing to wait for.
		return true, repo.UpdateProfileBirthdayTextStatus(ctx, s.DB, p.ID, false, nil)
	}

	st, err := repo.GetScheduledTextByID(ctx, s.DB, *p.BirthdayTextID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The text was deleted out from under the toggle.
			return true, repo.UpdateProfileBirthdayTextStatus(ctx, s.DB, p.ID, false, nil)
		}
		return false, err
	}

	if st.Sent {
		// Sent through a path that could not reach the profile toggle.
		return true, repo.UpdateProfileBirthdayTextStatus(ctx, s.DB, p.ID, false, nil)
	}

	if !st.ScheduledFor.Before(now) {
		// Still pending; leave it alone.
		return false, nil
	}

	// Past due and unsent. Cancel whatever notification is left, close out
	// the record, and disarm the profile.
	if st.NotificationID != nil {
		if err := s.Scheduler.Cancel(ctx, *st.NotificationID); err != nil {
			log.Warn().Err(err).Str("text_id", st.ID).Msg("failed to cancel stray birthday notification")
		}
	}
	if err := repo.MarkScheduledTextSent(ctx, s.DB, st.ID); err != nil {
		return false, err
	}
	return true, repo.UpdateProfileBirthdayTextStatus(ctx, s.DB, p.ID, false, nil)
}

// Start runs an initial sweep immediately and then repeats every interval
// until ctx is cancelled. It blocks; run it in its own goroutine.
func (s *SweepService) Start(ctx context.Context, interval time.Duration) {
	if _, err := s.Run(ctx); err != nil {
		log.Error().Err(err).Msg("birthday cleanup sweep failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				log.Error().Err(err).Msg("birthday cleanup sweep failed")
			}
		}
	}
}

func (s *SweepService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}
