package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sehaty-app/backend-sehaty/internal/events"
)

// templates maps event topics to the in-app message shown to the user.
// Events without a template, or without a userId in their payload, are
// skipped silently.
var templates = map[string]struct {
	title string
	body  string
}{
	events.TopicBookingCreated: {
		title: "تم استلام حجزك",
		body:  "تم تسجيل حجزك بنجاح وهو الآن قيد المراجعة. رقم الطلب: %s",
	},
	events.TopicBookingConfirmed: {
		title: "تم تأكيد حجزك",
		body:  "تم تأكيد حجزك. رقم الطلب: %s",
	},
	events.TopicBookingCancelled: {
		title: "تم إلغاء حجزك",
		body:  "تم إلغاء حجزك. رقم الطلب: %s",
	},
	events.TopicPaymentPaid: {
		title: "تم الدفع بنجاح",
		body:  "استلمنا دفعتك بنجاح. رقم الطلب: %s",
	},
	events.TopicPaymentFailed: {
		title: "فشلت عملية الدفع",
		body:  "لم تكتمل عملية الدفع، يمكنك المحاولة مرة أخرى. رقم الطلب: %s",
	},
	events.TopicPrescriptionReceived: {
		title: "تم استلام الروشتة",
		body:  "استلمنا طلبك وسيتواصل معك فريقنا قريباً. رقم الطلب: %s",
	},
}

// InApp stores a notification row for the user an event concerns.
type InApp struct {
	Store Store
	Log   zerolog.Logger
}

// Notify implements events.Notifier.
func (n *InApp) Notify(ctx context.Context, ev events.Event) error {
	tpl, ok := templates[ev.Topic]
	if !ok {
		return nil
	}
	userID, ok := payloadUserID(ev.Payload)
	if !ok {
		return nil
	}

	_, err := n.Store.Insert(ctx, Notification{
		ID:     uuid.New(),
		UserID: userID,
		Topic:  ev.Topic,
		Title:  tpl.title,
		Body:   fmt.Sprintf(tpl.body, ev.AggregateID),
	})
	if err != nil {
		n.Log.Error().Str("topic", ev.Topic).Str("user_id", userID.String()).Err(err).Msg("store notification")
		return err
	}
	return nil
}

func payloadUserID(payload []byte) (uuid.UUID, bool) {
	var fields struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil || fields.UserID == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fields.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
