// Package services – Dispatcher
//
// This file implements the notification response dispatcher: the single entry
// point for "the user acted on a notification" events. Responses arrive from
// two paths that can overlap (the live scheduler subscription and the webhook
// replay endpoint), so every response is first checked against a bounded
// deduplication set keyed by notification request id.
//
// The dispatcher is deliberately forgiving: any failure or panic while
// handling a response degrades to DispositionOpenEditor, so the user always
// lands somewhere useful instead of losing the tap.
package services

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/armi-app/armi-server/internal/domain"
	"github.com/armi-app/armi-server/internal/notify"
	"github.com/armi-app/armi-server/internal/repo"
	"github.com/armi-app/armi-server/internal/sms"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Disposition names the terminal outcome of dispatching one response.
type Disposition string

const (
	// DispositionOpenEditor routes the user to the text editor. It is both
	// the explicit edit-action outcome and the fallback for every failure.
	DispositionOpenEditor Disposition = "open_editor"

	// DispositionMarkedSent means the message was composed and the record
	// was marked sent.
	DispositionMarkedSent Disposition = "marked_sent"

	// DispositionIgnored means the response carried a category this
	// dispatcher does not own.
	DispositionIgnored Disposition = "ignored"

	// DispositionDuplicate means the response's request id was already
	// handled and the whole event was dropped.
	DispositionDuplicate Disposition = "duplicate"
)

var dispatchResults = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notification_dispatch_total",
		Help: "Notification responses dispatched, by outcome.",
	},
	[]string{"disposition"},
)

func init() {
	prometheus.MustRegister(dispatchResults)
}

// Dispatcher routes notification responses to their lifecycle effects.
type Dispatcher struct {
	DB       *gorm.DB
	Dedup    *domain.DedupSet
	Composer sms.Composer

	// Texts closes out records on the send path. Going through the lifecycle
	// controller keeps the per-record lock and the cancel-before-mutate
	// ordering; the dispatcher never flips sent on its own.
	Texts *TextService
}

// HandleResponse adapts Dispatch to the scheduler's subscription callback.
// Subscription delivery has no caller to report to, so the disposition is
// only logged.
func (d *Dispatcher) HandleResponse(resp notify.Response) {
	disp := d.Dispatch(context.Background(), resp)
	log.Debug().
		Str("request_id", resp.RequestID).
		Str("disposition", string(disp)).
		Msg("notification response handled")
}

// Dispatch processes one notification response end to end and returns its
// disposition. It never returns an error: the failure mode for everything
// past deduplication is DispositionOpenEditor.
func (d *Dispatcher) Dispatch(ctx context.Context, resp notify.Response) (disp Disposition) {
	tr := otel.Tracer("services/Dispatcher")
	ctx, span := tr.Start(ctx, "Dispatch",
		trace.WithAttributes(
			attribute.String("notification.request_id", resp.RequestID),
			attribute.String("notification.action_id", resp.ActionID),
			attribute.String("notification.category", resp.Data.Category),
		),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("request_id", resp.RequestID).
				Msg("panic while dispatching notification response")
			disp = DispositionOpenEditor
		}
		dispatchResults.WithLabelValues(string(disp)).Inc()
		span.SetAttributes(attribute.String("notification.disposition", string(disp)))
	}()

	// Dedup first, before any other inspection: a duplicate drops the whole
	// event regardless of category or action.
	if !d.Dedup.MarkHandled(resp.RequestID) {
		log.Debug().Str("request_id", resp.RequestID).Msg("duplicate notification response dropped")
		return DispositionDuplicate
	}

	switch resp.Data.Category {
	case notify.CategoryScheduledText, notify.CategoryBirthdayText:
	default:
		return DispositionIgnored
	}

	switch resp.ActionID {
	case notify.ActionEdit:
		return DispositionOpenEditor
	case notify.ActionDefault:
		// Only the body tap takes the send path; it falls back to the
		// editor on any failure.
		return d.composeAndMark(ctx, resp)
	default:
		// An action this build does not recognize lands in the editor
		// untouched rather than being dropped or guessed at.
		log.Warn().
			Str("request_id", resp.RequestID).
			Str("action_id", resp.ActionID).
			Msg("unknown notification action, opening editor")
		return DispositionOpenEditor
	}
}

// composeAndMark loads the record, hands the message to the composer, marks
// the record sent, and clears the profile's birthday arming when applicable.
// The first failing step downgrades the outcome to the editor.
func (d *Dispatcher) composeAndMark(ctx context.Context, resp notify.Response) Disposition {
	if resp.Data.TextID == "" {
		log.Warn().Str("request_id", resp.RequestID).Msg("notification response without text id")
		return DispositionOpenEditor
	}

	st, err := repo.GetScheduledTextByID(ctx, d.DB, resp.Data.TextID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Err(err).Str("text_id", resp.Data.TextID).Msg("failed to load scheduled text for dispatch")
		}
		return DispositionOpenEditor
	}
	if st.Sent {
		// The record was already sent through another path; nothing to do.
		return DispositionMarkedSent
	}

	if err := d.Composer.Compose(ctx, st.PhoneNumber, st.Message); err != nil {
		log.Warn().Err(err).Str("text_id", st.ID).Msg("compose failed, falling back to editor")
		return DispositionOpenEditor
	}

	// Close out through the lifecycle controller: it takes the record's lock
	// and cancels any still-armed notification before flipping sent, so a
	// webhook replay arriving ahead of the trigger cannot leave a live
	// notification on a sent record.
	if err := d.Texts.MarkAsSent(ctx, st.UserID, st.ID); err != nil {
		// The message went out but the record could not be flipped. Surface
		// the editor so the user sees the still-pending record and can
		// resolve it by hand.
		log.Error().Err(err).Str("text_id", st.ID).Msg("composed but failed to mark sent")
		return DispositionOpenEditor
	}

	if st.IsBirthdayText && st.ProfileID != nil {
		if err := repo.UpdateProfileBirthdayTextStatus(ctx, d.DB, *st.ProfileID, false, nil); err != nil {
			// The text is sent; a stale birthday toggle is repaired by the
			// cleanup sweep on next startup.
			log.Warn().Err(err).Str("profile_id", *st.ProfileID).Msg("failed to clear birthday text status")
		}
	}

	return DispositionMarkedSent
}
