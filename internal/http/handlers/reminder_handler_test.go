package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/armi-app/armi-server/internal/domain"
	"github.com/armi-app/armi-server/internal/services"
)

func createReminderViaAPI(t *testing.T, env *handlerEnv, body string) services.ReminderResult {
	t.Helper()
	w := doJSON(t, env, http.MethodPost, "/reminders", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create reminder -> %d body=%s", w.Code, w.Body.String())
	}
	var out services.ReminderResult
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	return out
}

func TestCreateReminder_DefaultsAndValidation(t *testing.T) {
	env := newHandlerEnv(t)
	due := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	out := createReminderViaAPI(t, env, fmt.Sprintf(`{"title":"call mom","due_at":%q}`, due))
	if out.Reminder.Type != domain.ReminderTypeGeneral || !out.NotificationScheduled {
		t.Fatalf("unexpected reminder: %+v", out)
	}

	if w := doJSON(t, env, http.MethodPost, "/reminders",
		fmt.Sprintf(`{"title":"x","type":"urgent","due_at":%q}`, due), nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad type -> %d", w.Code)
	}
	if w := doJSON(t, env, http.MethodPost, "/reminders",
		`{"title":"x","due_at":"soon"}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad due_at -> %d", w.Code)
	}
}

func TestCompleteReminder_ClearsGiftFlag(t *testing.T) {
	env := newHandlerEnv(t)
	p := createProfileViaAPI(t, env, `{"name":"June"}`)
	if w := doJSON(t, env, http.MethodPut, "/profiles/"+p.ID+"/gift-reminder", `{"enabled":true}`, nil); w.Code != http.StatusNoContent {
		t.Fatalf("arm gift -> %d", w.Code)
	}

	due := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	out := createReminderViaAPI(t, env,
		fmt.Sprintf(`{"title":"buy gift","type":"gift","due_at":%q,"profile_id":%q}`, due, p.ID))

	if w := doJSON(t, env, http.MethodPost, "/reminders/"+out.Reminder.ID+"/complete", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("complete -> %d", w.Code)
	}

	var got domain.Profile
	gw := doJSON(t, env, http.MethodGet, "/profiles/"+p.ID, "", nil)
	_ = json.Unmarshal(gw.Body.Bytes(), &got)
	if got.GiftReminderEnabled {
		t.Fatalf("gift flag not cleared by completion")
	}
	if len(env.sched.cancelled) != 1 {
		t.Fatalf("reminder notification not cancelled: %v", env.sched.cancelled)
	}
}

func TestDeleteReminder(t *testing.T) {
	env := newHandlerEnv(t)
	due := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	out := createReminderViaAPI(t, env, fmt.Sprintf(`{"title":"x","due_at":%q}`, due))

	if w := doJSON(t, env, http.MethodDelete, "/reminders/"+out.Reminder.ID, "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete -> %d", w.Code)
	}
	if w := doJSON(t, env, http.MethodGet, "/reminders/"+out.Reminder.ID, "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete -> %d", w.Code)
	}
}
