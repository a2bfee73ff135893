package services

import (
	"context"
	"testing"
	"time"

	"github.com/armi-app/armi-server/internal/repo"
)

func newSweep(t *testing.T) (*SweepService, *fakeScheduler) {
	t.Helper()
	sched := &fakeScheduler{}
	return &SweepService{DB: newServiceDB(t), Scheduler: sched}, sched
}

// armProfile seeds a profile with an armed birthday text scheduled at when.
func armProfile(t *testing.T, s *SweepService, userID string, when time.Time) (profileID, textID string) {
	t.Helper()
	ctx := context.Background()

	p, err := repo.CreateProfile(ctx, s.DB, userID, "Sam", "+15555550123", "", nil)
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	st, err := repo.CreateScheduledText(ctx, s.DB, userID, p.PhoneNumber, "Happy birthday!", when, &p.ID, true)
	if err != nil {
		t.Fatalf("seed text: %v", err)
	}
	if err := repo.UpdateScheduledTextNotificationID(ctx, s.DB, st.ID, sptr("n-stale")); err != nil {
		t.Fatalf("set notification id: %v", err)
	}
	if err := repo.UpdateProfileBirthdayTextStatus(ctx, s.DB, p.ID, true, &st.ID); err != nil {
		t.Fatalf("arm profile: %v", err)
	}
	return p.ID, st.ID
}

func TestSweep_PastDueTextClosedAndProfileDisarmed(t *testing.T) {
	s, sched := newSweep(t)
	profileID, textID := armProfile(t, s, "u1", time.Now().Add(-48*time.Hour))

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Examined != 1 || res.Cleaned != 1 || res.Errors != 0 {
		t.Fatalf("result = %+v", res)
	}

	st, _ := repo.GetScheduledTextByID(context.Background(), s.DB, textID)
	if !st.Sent || st.NotificationID != nil {
		t.Fatalf("text not closed out: sent=%v nid=%v", st.Sent, st.NotificationID)
	}
	p, _ := repo.GetProfileByID(context.Background(), s.DB, profileID)
	if p.BirthdayTextEnabled || p.BirthdayTextID != nil {
		t.Fatalf("profile not disarmed: %+v", p)
	}
	if sched.cancelCount() != 1 || sched.cancelled[0] != "n-stale" {
		t.Fatalf("stray notification not cancelled: %v", sched.cancelled)
	}
}

func TestSweep_FutureTextLeftAlone(t *testing.T) {
	s, sched := newSweep(t)
	profileID, textID := armProfile(t, s, "u1", time.Now().Add(48*time.Hour))

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Cleaned != 0 {
		t.Fatalf("future text must not be cleaned: %+v", res)
	}

	st, _ := repo.GetScheduledTextByID(context.Background(), s.DB, textID)
	if st.Sent {
		t.Fatalf("future text marked sent")
	}
	p, _ := repo.GetProfileByID(context.Background(), s.DB, profileID)
	if !p.BirthdayTextEnabled {
		t.Fatalf("armed profile disarmed early")
	}
	if sched.cancelCount() != 0 {
		t.Fatalf("nothing should be cancelled: %v", sched.cancelled)
	}
}

func TestSweep_DanglingToggleDisarmed(t *testing.T) {
	s, _ := newSweep(t)
	ctx := context.Background()

	p, err := repo.CreateProfile(ctx, s.DB, "u1", "Sam", "+1", "", nil)
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	// Armed but pointing at a text that no longer exists.
	if err := repo.UpdateProfileBirthdayTextStatus(ctx, s.DB, p.ID, true, sptr("deleted-text")); err != nil {
		t.Fatalf("arm: %v", err)
	}

	res, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Cleaned != 1 {
		t.Fatalf("result = %+v", res)
	}
	got, _ := repo.GetProfileByID(ctx, s.DB, p.ID)
	if got.BirthdayTextEnabled {
		t.Fatalf("dangling toggle not disarmed")
	}
}

func TestSweep_HandlesProfilesIndependently(t *testing.T) {
	s, _ := newSweep(t)

	// One past-due, one future, across different users.
	pastProfile, _ := armProfile(t, s, "u1", time.Now().Add(-time.Hour))
	futureProfile, _ := armProfile(t, s, "u2", time.Now().Add(time.Hour))

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Examined != 2 || res.Cleaned != 1 {
		t.Fatalf("result = %+v", res)
	}

	past, _ := repo.GetProfileByID(context.Background(), s.DB, pastProfile)
	future, _ := repo.GetProfileByID(context.Background(), s.DB, futureProfile)
	if past.BirthdayTextEnabled || !future.BirthdayTextEnabled {
		t.Fatalf("past=%v future=%v", past.BirthdayTextEnabled, future.BirthdayTextEnabled)
	}
}

func TestSweep_ClockInjection(t *testing.T) {
	s, _ := newSweep(t)
	when := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	_, textID := armProfile(t, s, "u1", when)

	// At one second before the trigger nothing is past due.
	s.Clock = fixedClock(when.Add(-time.Second))
	if res, _ := s.Run(context.Background()); res.Cleaned != 0 {
		t.Fatalf("cleaned before due: %+v", res)
	}

	// One second after, the sweep closes it.
	s.Clock = fixedClock(when.Add(time.Second))
	if res, _ := s.Run(context.Background()); res.Cleaned != 1 {
		t.Fatalf("not cleaned after due")
	}
	st, _ := repo.GetScheduledTextByID(context.Background(), s.DB, textID)
	if !st.Sent {
		t.Fatalf("text not closed")
	}
}
