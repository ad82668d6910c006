package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/sehaty-app/backend-sehaty/internal/common"
	"github.com/sehaty-app/backend-sehaty/internal/events"
	"github.com/sehaty-app/backend-sehaty/internal/obs"
)

// TypeEmail is the asynq task type for notification email delivery.
const TypeEmail = "notify:email"

// EmailTask is the payload carried by a TypeEmail task.
type EmailTask struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Topic   string `json:"topic"`
}

// NewEmailTask builds an asynq task for a notification email.
func NewEmailTask(t EmailTask) (*asynq.Task, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmail, payload, asynq.MaxRetry(5)), nil
}

// Directory resolves the email address for a user.
type Directory interface {
	EmailForUser(ctx context.Context, userID uuid.UUID) (string, error)
}

// Email enqueues notification emails for events whose topic is enabled.
// Delivery happens asynchronously in the worker process.
type Email struct {
	Enqueuer *asynq.Client
	Dir      Directory
	Topics   map[string]bool
	Log      zerolog.Logger
}

// Notify implements events.Notifier.
func (e *Email) Notify(ctx context.Context, ev events.Event) error {
	if !e.Topics[ev.Topic] {
		return nil
	}
	tpl, ok := templates[ev.Topic]
	if !ok {
		return nil
	}
	userID, ok := payloadUserID(ev.Payload)
	if !ok {
		return nil
	}
	to, err := e.Dir.EmailForUser(ctx, userID)
	if err != nil {
		e.Log.Error().Str("topic", ev.Topic).Str("user_id", userID.String()).Err(err).Msg("resolve recipient")
		return err
	}

	task, err := NewEmailTask(EmailTask{
		To:      to,
		Subject: tpl.title,
		HTML:    emailBody(tpl.title, fmt.Sprintf(tpl.body, ev.AggregateID)),
		Topic:   ev.Topic,
	})
	if err != nil {
		return err
	}
	if _, err := e.Enqueuer.EnqueueContext(ctx, task); err != nil {
		e.Log.Error().Str("topic", ev.Topic).Err(err).Msg("enqueue notification email")
		return err
	}
	return nil
}

func emailBody(title, body string) string {
	return fmt.Sprintf(
		`<div dir="rtl" style="font-family:sans-serif"><h2>%s</h2><p>%s</p></div>`,
		html.EscapeString(title), html.EscapeString(body))
}

// EmailWorker delivers queued notification emails.
type EmailWorker struct {
	Sender common.EmailSender
	From   string
	Log    zerolog.Logger
}

// HandleEmailTask processes a TypeEmail task.
func (w *EmailWorker) HandleEmailTask(_ context.Context, task *asynq.Task) error {
	var t EmailTask
	if err := json.Unmarshal(task.Payload(), &t); err != nil {
		// A malformed payload will never succeed; drop it.
		return fmt.Errorf("decode email task: %w: %v", asynq.SkipRetry, err)
	}
	if err := w.Sender.Send(t.To, t.Subject, t.HTML); err != nil {
		w.count(t.Topic, "error")
		w.Log.Error().Str("topic", t.Topic).Err(err).Msg("send notification email")
		return err
	}
	w.count(t.Topic, "sent")
	w.Log.Info().Str("topic", t.Topic).Str("from", w.From).Msg("notification email sent")
	return nil
}

func (w *EmailWorker) count(topic, result string) {
	if obs.NotifyEmailTotal != nil {
		obs.NotifyEmailTotal.WithLabelValues(topic, result).Inc()
	}
}
