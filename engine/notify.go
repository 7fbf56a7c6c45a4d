package engine

import (
	"context"

	"github.com/charmbracelet/log"
)

// =============================================================================
// NOTIFICATION - Best-effort outbound messages
// =============================================================================

// TemplateKind identifies an outbound message template. The payload contract
// is enforced by the notification layer: only the fields passed here are
// available to the template, and callers must not pass diagnosis or
// free-text notes.
type TemplateKind string

const (
	TemplateSicknessReported TemplateKind = "sickness_reported"
	TemplateFitNoteExpiring  TemplateKind = "fit_note_expiring"
	TemplateRTWScheduled     TemplateKind = "rtw_scheduled"
	TemplateTriggerBreached  TemplateKind = "trigger_breached"
	TemplateCaseClosed       TemplateKind = "case_closed"
)

// Notifier delivers a templated message to a recipient. Delivery is
// best-effort relative to the operation that requested it: callers catch and
// log errors, they never roll back.
type Notifier interface {
	Notify(ctx context.Context, recipient string, kind TemplateKind, fields map[string]string) error
}

// LogNotifier writes would-be notifications to the structured log. It stands
// in for real email delivery, which is owned by an external layer.
type LogNotifier struct {
	Log *log.Logger
}

func (n *LogNotifier) Notify(_ context.Context, recipient string, kind TemplateKind, fields map[string]string) error {
	n.Log.Info("notify", "recipient", recipient, "template", string(kind), "fields", fields)
	return nil
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, TemplateKind, map[string]string) error {
	return nil
}
