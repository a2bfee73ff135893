package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/armi-app/armi-server/internal/domain"
	"github.com/armi-app/armi-server/internal/notify"
	"github.com/armi-app/armi-server/internal/repo"
)

func newDispatcher(t *testing.T) (*Dispatcher, *fakeComposer) {
	t.Helper()
	db := newServiceDB(t)
	comp := &fakeComposer{}
	d := &Dispatcher{
		DB:       db,
		Dedup:    domain.NewDedupSet(16),
		Composer: comp,
		Texts:    &TextService{DB: db, Scheduler: &fakeScheduler{}},
	}
	return d, comp
}

func seedText(t *testing.T, d *Dispatcher, userID string, birthday bool, profileID *string) *domain.ScheduledText {
	t.Helper()
	st, err := repo.CreateScheduledText(context.Background(), d.DB, userID,
		"+15555550123", "see you soon", time.Now().Add(time.Hour), profileID, birthday)
	if err != nil {
		t.Fatalf("seed text: %v", err)
	}
	return st
}

func TestDispatcher_DefaultActionComposesAndMarksSent(t *testing.T) {
	d, comp := newDispatcher(t)
	st := seedText(t, d, "u1", false, nil)

	disp := d.Dispatch(context.Background(), notify.Response{
		ActionID:  notify.ActionDefault,
		RequestID: "req-1",
		Data:      notify.Data{Category: notify.CategoryScheduledText, TextID: st.ID},
	})
	if disp != DispositionMarkedSent {
		t.Fatalf("disposition = %q", disp)
	}
	if comp.callCount() != 1 {
		t.Fatalf("composer called %d times", comp.callCount())
	}
	got, _ := repo.GetScheduledTextByID(context.Background(), d.DB, st.ID)
	if !got.Sent || got.NotificationID != nil {
		t.Fatalf("record not closed out: sent=%v nid=%v", got.Sent, got.NotificationID)
	}
}

func TestDispatcher_ArmedNotificationCancelledOnSend(t *testing.T) {
	d, comp := newDispatcher(t)
	sched := d.Texts.Scheduler.(*fakeScheduler)

	res, err := d.Texts.Create(context.Background(), "u1", CreateTextInput{
		PhoneNumber:  "+15555550123",
		Message:      "see you soon",
		ScheduledFor: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	nid := *res.Text.NotificationID

	disp := d.Dispatch(context.Background(), notify.Response{
		ActionID:  notify.ActionDefault,
		RequestID: "req-armed",
		Data:      notify.Data{Category: notify.CategoryScheduledText, TextID: res.Text.ID},
	})
	if disp != DispositionMarkedSent {
		t.Fatalf("disposition = %q", disp)
	}
	if comp.callCount() != 1 {
		t.Fatalf("composer called %d times", comp.callCount())
	}
	if sched.cancelCount() != 1 || sched.cancelled[0] != nid {
		t.Fatalf("armed notification not cancelled: %v", sched.cancelled)
	}
	got, _ := repo.GetScheduledTextByID(context.Background(), d.DB, res.Text.ID)
	if !got.Sent || got.NotificationID != nil {
		t.Fatalf("record not closed out: sent=%v nid=%v", got.Sent, got.NotificationID)
	}
}

func TestDispatcher_WebhookBeforeTriggerDisarmsScheduler(t *testing.T) {
	db := newServiceDB(t)
	sched := notify.NewLocalScheduler()
	defer sched.Close()
	comp := &fakeComposer{}
	texts := &TextService{DB: db, Scheduler: sched}
	d := &Dispatcher{DB: db, Dedup: domain.NewDedupSet(16), Composer: comp, Texts: texts}

	res, err := texts.Create(context.Background(), "u1", CreateTextInput{
		PhoneNumber:  "+15555550123",
		Message:      "see you soon",
		ScheduledFor: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	nid := *res.Text.NotificationID
	if !sched.Pending(nid) {
		t.Fatalf("expected armed notification before dispatch")
	}

	// Webhook replay lands before the trigger fires.
	disp := d.Dispatch(context.Background(), notify.Response{
		ActionID:  notify.ActionDefault,
		RequestID: "req-early",
		Data:      notify.Data{Category: notify.CategoryScheduledText, TextID: res.Text.ID},
	})
	if disp != DispositionMarkedSent {
		t.Fatalf("disposition = %q", disp)
	}
	if sched.Pending(nid) {
		t.Fatalf("notification still armed for a sent record")
	}
	got, _ := repo.GetScheduledTextByID(context.Background(), d.DB, res.Text.ID)
	if !got.Sent || got.NotificationID != nil {
		t.Fatalf("record not closed out: sent=%v nid=%v", got.Sent, got.NotificationID)
	}
}

func TestDispatcher_DuplicateResponseDropped(t *testing.T) {
	d, comp := newDispatcher(t)
	st := seedText(t, d, "u1", false, nil)

	resp := notify.Response{
		ActionID:  notify.ActionDefault,
		RequestID: "req-dup",
		Data:      notify.Data{Category: notify.CategoryScheduledText, TextID: st.ID},
	}
	if disp := d.Dispatch(context.Background(), resp); disp != DispositionMarkedSent {
		t.Fatalf("first dispatch: %q", disp)
	}
	if disp := d.Dispatch(context.Background(), resp); disp != DispositionDuplicate {
		t.Fatalf("second dispatch: %q", disp)
	}
	if comp.callCount() != 1 {
		t.Fatalf("composer must run once, ran %d times", comp.callCount())
	}
}

func TestDispatcher_EditActionOpensEditorWithoutComposing(t *testing.T) {
	d, comp := newDispatcher(t)
	st := seedText(t, d, "u1", false, nil)

	disp := d.Dispatch(context.Background(), notify.Response{
		ActionID:  notify.ActionEdit,
		RequestID: "req-edit",
		Data:      notify.Data{Category: notify.CategoryScheduledText, TextID: st.ID},
	})
	if disp != DispositionOpenEditor {
		t.Fatalf("disposition = %q", disp)
	}
	if comp.callCount() != 0 {
		t.Fatalf("edit action must not compose")
	}
	got, _ := repo.GetScheduledTextByID(context.Background(), d.DB, st.ID)
	if got.Sent {
		t.Fatalf("edit action must not mark sent")
	}
}

func TestDispatcher_UnknownActionOpensEditorWithoutSending(t *testing.T) {
	d, comp := newDispatcher(t)
	st := seedText(t, d, "u1", false, nil)

	disp := d.Dispatch(context.Background(), notify.Response{
		ActionID:  "some-future-action",
		RequestID: "req-unknown",
		Data:      notify.Data{Category: notify.CategoryScheduledText, TextID: st.ID},
	})
	if disp != DispositionOpenEditor {
		t.Fatalf("disposition = %q", disp)
	}
	if comp.callCount() != 0 {
		t.Fatalf("unknown action must not compose")
	}
	got, _ := repo.GetScheduledTextByID(context.Background(), d.DB, st.ID)
	if got.Sent {
		t.Fatalf("unknown action must not mutate the record")
	}
}

func TestDispatcher_ForeignCategoryIgnored(t *testing.T) {
	d, comp := newDispatcher(t)

	disp := d.Dispatch(context.Background(), notify.Response{
		ActionID:  notify.ActionDefault,
		RequestID: "req-foreign",
		Data:      notify.Data{Category: "marketing-push", TextID: "whatever"},
	})
	if disp != DispositionIgnored {
		t.Fatalf("disposition = %q", disp)
	}
	if comp.callCount() != 0 {
		t.Fatalf("foreign category must not compose")
	}
	// The id was still consumed: a redelivery of the same foreign event is a
	// duplicate, not a second ignore.
	if disp := d.Dispatch(context.Background(), notify.Response{
		RequestID: "req-foreign",
		Data:      notify.Data{Category: "marketing-push"},
	}); disp != DispositionDuplicate {
		t.Fatalf("redelivery = %q", disp)
	}
}

func TestDispatcher_ComposeFailureFallsBackToEditor(t *testing.T) {
	d, comp := newDispatcher(t)
	comp.err = errSchedulerDown
	st := seedText(t, d, "u1", false, nil)

	disp := d.Dispatch(context.Background(), notify.Response{
		ActionID:  notify.ActionDefault,
		RequestID: "req-fail",
		Data:      notify.Data{Category: notify.CategoryScheduledText, TextID: st.ID},
	})
	if disp != DispositionOpenEditor {
		t.Fatalf("disposition = %q", disp)
	}
	got, _ := repo.GetScheduledTextByID(context.Background(), d.DB, st.ID)
	if got.Sent {
		t.Fatalf("failed compose must not mark sent")
	}
}

func TestDispatcher_MissingTextFallsBackToEditor(t *testing.T) {
	d, _ := newDispatcher(t)

	disp := d.Dispatch(context.Background(), notify.Response{
		ActionID:  notify.ActionDefault,
		RequestID: "req-gone",
		Data:      notify.Data{Category: notify.CategoryScheduledText, TextID: "no-such-id"},
	})
	if disp != DispositionOpenEditor {
		t.Fatalf("disposition = %q", disp)
	}
}

func TestDispatcher_PanicRecoversToEditor(t *testing.T) {
	d, comp := newDispatcher(t)
	comp.panicMsg = "composer exploded"
	st := seedText(t, d, "u1", false, nil)

	disp := d.Dispatch(context.Background(), notify.Response{
		ActionID:  notify.ActionDefault,
		RequestID: "req-panic",
		Data:      notify.Data{Category: notify.CategoryScheduledText, TextID: st.ID},
	})
	if disp != DispositionOpenEditor {
		t.Fatalf("panic must degrade to editor, got %q", disp)
	}
}

func TestDispatcher_BirthdayTextClearsProfileToggle(t *testing.T) {
	d, _ := newDispatcher(t)

	p, err := repo.CreateProfile(context.Background(), d.DB, "u1", "June", "+15555550123", "", nil)
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	st := seedText(t, d, "u1", true, &p.ID)
	if err := repo.UpdateProfileBirthdayTextStatus(context.Background(), d.DB, p.ID, true, &st.ID); err != nil {
		t.Fatalf("arm profile: %v", err)
	}

	disp := d.Dispatch(context.Background(), notify.Response{
		ActionID:  notify.ActionDefault,
		RequestID: "req-bday",
		Data:      notify.Data{Category: notify.CategoryBirthdayText, TextID: st.ID, ProfileID: p.ID, Birthday: true},
	})
	if disp != DispositionMarkedSent {
		t.Fatalf("disposition = %q", disp)
	}

	got, err := repo.GetProfileByID(context.Background(), d.DB, p.ID)
	if err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	if got.BirthdayTextEnabled || got.BirthdayTextID != nil {
		t.Fatalf("profile toggle not cleared: %+v", got)
	}
}

func TestDispatcher_ConcurrentRedeliveryHandledOnce(t *testing.T) {
	d, comp := newDispatcher(t)
	st := seedText(t, d, "u1", false, nil)

	resp := notify.Response{
		ActionID:  notify.ActionDefault,
		RequestID: "req-racy",
		Data:      notify.Data{Category: notify.CategoryScheduledText, TextID: st.ID},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(context.Background(), resp)
		}()
	}
	wg.Wait()

	if comp.callCount() != 1 {
		t.Fatalf("composer ran %d times, want exactly 1", comp.callCount())
	}
}

func TestDispatcher_SubscriptionHandlerIntegration(t *testing.T) {
	d, comp := newDispatcher(t)
	st := seedText(t, d, "u1", false, nil)

	sched := notify.NewLocalScheduler()
	defer sched.Close()

	done := make(chan struct{})
	unsubscribe := sched.Subscribe(func(resp notify.Response) {
		d.HandleResponse(resp)
		close(done)
	})
	defer unsubscribe()

	if _, err := sched.Schedule(context.Background(), notify.Request{
		Title:   "Scheduled text",
		Body:    st.Message,
		Trigger: time.Now().Add(-time.Minute), // past due, fires immediately
		Data:    notify.Data{Category: notify.CategoryScheduledText, TextID: st.ID},
	}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("notification never fired")
	}

	if comp.callCount() != 1 {
		t.Fatalf("composer ran %d times", comp.callCount())
	}
	got, _ := repo.GetScheduledTextByID(context.Background(), d.DB, st.ID)
	if !got.Sent {
		t.Fatalf("fired notification did not mark record sent")
	}
}
