package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/armi-app/armi-server/internal/repo"
)

func newProfileService(t *testing.T) (*ProfileService, *fakeScheduler) {
	t.Helper()
	db := newServiceDB(t)
	sched := &fakeScheduler{}
	texts := &TextService{DB: db, Scheduler: sched}
	return &ProfileService{DB: db, Texts: texts}, sched
}

func TestProfileService_Create_NormalizesName(t *testing.T) {
	svc, _ := newProfileService(t)

	p, err := svc.Create(context.Background(), "u1", CreateProfileInput{Name: "  june carter  "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Name != "June Carter" {
		t.Fatalf("name = %q", p.Name)
	}

	// Intentional interior caps survive title casing.
	p2, err := svc.Create(context.Background(), "u1", CreateProfileInput{Name: "ana deLong"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p2.Name != "Ana DeLong" {
		t.Fatalf("name = %q", p2.Name)
	}

	if _, err := svc.Create(context.Background(), "u1", CreateProfileInput{Name: "   "}); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("blank name: %v", err)
	}
}

func TestProfileService_UpdateAndGet(t *testing.T) {
	svc, _ := newProfileService(t)

	p, _ := svc.Create(context.Background(), "u1", CreateProfileInput{Name: "June"})
	got, err := svc.Update(context.Background(), "u1", p.ID, UpdateProfileInput{
		Notes:       sptr("met at the conference"),
		PhoneNumber: sptr("+15555550199"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Notes != "met at the conference" || got.PhoneNumber != "+15555550199" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := svc.Get(context.Background(), "u2", p.ID); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("cross-user get: %v", err)
	}
}

func TestProfileService_EnableBirthdayText(t *testing.T) {
	svc, sched := newProfileService(t)
	birthday := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)
	svc.Clock = fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	p, _ := svc.Create(context.Background(), "u1", CreateProfileInput{
		Name: "June", PhoneNumber: "+15555550123", Birthday: &birthday,
	})

	res, err := svc.EnableBirthdayText(context.Background(), "u1", p.ID, "")
	if err != nil {
		t.Fatalf("EnableBirthdayText: %v", err)
	}
	if !res.Text.IsBirthdayText {
		t.Fatalf("text not flagged as birthday")
	}
	want := time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)
	if !res.Text.ScheduledFor.Equal(want) {
		t.Fatalf("scheduled for %v, want %v", res.Text.ScheduledFor, want)
	}
	if res.Text.Message != "Happy birthday, June!" {
		t.Fatalf("default message = %q", res.Text.Message)
	}

	got, _ := repo.GetProfileByID(context.Background(), svc.DB, p.ID)
	if !got.BirthdayTextEnabled || got.BirthdayTextID == nil || *got.BirthdayTextID != res.Text.ID {
		t.Fatalf("profile not armed: %+v", got)
	}
	if req := sched.lastScheduled(t); req.Data.Category != "birthday-text" {
		t.Fatalf("category = %q", req.Data.Category)
	}
}

func TestProfileService_EnableBirthdayText_RequiresBirthday(t *testing.T) {
	svc, _ := newProfileService(t)

	p, _ := svc.Create(context.Background(), "u1", CreateProfileInput{Name: "June", PhoneNumber: "+1"})
	if _, err := svc.EnableBirthdayText(context.Background(), "u1", p.ID, "hi"); !errors.Is(err, ErrNoBirthday) {
		t.Fatalf("expected ErrNoBirthday, got %v", err)
	}
}

func TestProfileService_EnableBirthdayText_ReplacesPrevious(t *testing.T) {
	svc, sched := newProfileService(t)
	birthday := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)

	p, _ := svc.Create(context.Background(), "u1", CreateProfileInput{
		Name: "June", PhoneNumber: "+1", Birthday: &birthday,
	})

	first, err := svc.EnableBirthdayText(context.Background(), "u1", p.ID, "v1")
	if err != nil {
		t.Fatalf("first enable: %v", err)
	}
	second, err := svc.EnableBirthdayText(context.Background(), "u1", p.ID, "v2")
	if err != nil {
		t.Fatalf("second enable: %v", err)
	}
	if first.Text.ID == second.Text.ID {
		t.Fatalf("second enable must create a new text")
	}

	// The first text and its notification are gone.
	if _, err := repo.GetScheduledTextByID(context.Background(), svc.DB, first.Text.ID); err == nil {
		t.Fatalf("first text must be deleted")
	}
	if sched.cancelCount() != 1 {
		t.Fatalf("first notification not cancelled: %v", sched.cancelled)
	}
	got, _ := repo.GetProfileByID(context.Background(), svc.DB, p.ID)
	if got.BirthdayTextID == nil || *got.BirthdayTextID != second.Text.ID {
		t.Fatalf("toggle points at %v, want %s", got.BirthdayTextID, second.Text.ID)
	}
}

func TestProfileService_DisableBirthdayText(t *testing.T) {
	svc, sched := newProfileService(t)
	birthday := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)

	p, _ := svc.Create(context.Background(), "u1", CreateProfileInput{
		Name: "June", PhoneNumber: "+1", Birthday: &birthday,
	})
	res, _ := svc.EnableBirthdayText(context.Background(), "u1", p.ID, "hi")

	if err := svc.DisableBirthdayText(context.Background(), "u1", p.ID); err != nil {
		t.Fatalf("DisableBirthdayText: %v", err)
	}
	got, _ := repo.GetProfileByID(context.Background(), svc.DB, p.ID)
	if got.BirthdayTextEnabled || got.BirthdayTextID != nil {
		t.Fatalf("profile still armed: %+v", got)
	}
	if _, err := repo.GetScheduledTextByID(context.Background(), svc.DB, res.Text.ID); err == nil {
		t.Fatalf("backing text must be deleted")
	}
	if sched.cancelCount() != 1 {
		t.Fatalf("notification not cancelled: %v", sched.cancelled)
	}
}

func TestProfileService_DeleteTearsDownBirthdayText(t *testing.T) {
	svc, sched := newProfileService(t)
	birthday := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)

	p, _ := svc.Create(context.Background(), "u1", CreateProfileInput{
		Name: "June", PhoneNumber: "+1", Birthday: &birthday,
	})
	res, _ := svc.EnableBirthdayText(context.Background(), "u1", p.ID, "hi")

	if err := svc.Delete(context.Background(), "u1", p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), "u1", p.ID); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("profile must be gone, got %v", err)
	}
	if _, err := repo.GetScheduledTextByID(context.Background(), svc.DB, res.Text.ID); err == nil {
		t.Fatalf("birthday text must not outlive its profile")
	}
	if sched.cancelCount() != 1 {
		t.Fatalf("notification not cancelled: %v", sched.cancelled)
	}
}

func TestProfileService_SetGiftReminder(t *testing.T) {
	svc, _ := newProfileService(t)

	p, _ := svc.Create(context.Background(), "u1", CreateProfileInput{Name: "June"})
	if err := svc.SetGiftReminder(context.Background(), "u1", p.ID, true); err != nil {
		t.Fatalf("SetGiftReminder: %v", err)
	}
	got, _ := repo.GetProfileByID(context.Background(), svc.DB, p.ID)
	if !got.GiftReminderEnabled {
		t.Fatalf("flag not set")
	}

	if err := svc.SetGiftReminder(context.Background(), "u2", p.ID, false); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("cross-user toggle: %v", err)
	}
}

func TestNextBirthdayOccurrence(t *testing.T) {
	birthday := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)

	// Before this year's date: same year.
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := NextBirthdayOccurrence(birthday, now); got.Year() != 2026 || got.Month() != 6 || got.Day() != 15 || got.Hour() != 9 {
		t.Fatalf("got %v", got)
	}

	// After this year's date: next year.
	now = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if got := NextBirthdayOccurrence(birthday, now); got.Year() != 2027 {
		t.Fatalf("got %v", got)
	}

	// On the day, before 09:00: still today.
	now = time.Date(2026, 6, 15, 8, 0, 0, 0, time.UTC)
	if got := NextBirthdayOccurrence(birthday, now); got.Year() != 2026 || got.Day() != 15 {
		t.Fatalf("got %v", got)
	}
}
