package payment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sehaty-app/backend-sehaty/internal/common"
	"github.com/sehaty-app/backend-sehaty/internal/events"
	"github.com/sehaty-app/backend-sehaty/internal/kashier"
	"github.com/sehaty-app/backend-sehaty/internal/obs"
)

// BookingSettler lets the webhook consumer push a verified payment outcome
// onto the booking that carries the order id.
type BookingSettler interface {
	SettlePayment(ctx context.Context, orderID, status string) error
}

// Webhook handles Kashier gateway callbacks: signature verification, replay
// suppression, idempotent status application, and event emission.
type Webhook struct {
	Kashier   kashier.Config
	Store     Store
	Replay    *redis.Client
	ReplayTTL time.Duration
	Settler   BookingSettler
	Events    *events.Bus
	Log       zerolog.Logger
}

// Handle processes one webhook delivery. Verification is stateless; all
// state changes happen only after the signature matches, and reapplying the
// same delivery is a no-op.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.count("read_error")
		common.JSON(w, http.StatusBadRequest, map[string]any{"ok": false, "reason": "invalid signature"})
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	params, err := h.Kashier.VerifyWebhook(r.URL.Query(), body)
	if err != nil {
		switch {
		case errors.Is(err, kashier.ErrNotConfigured):
			h.Log.Error().Bool("webhook_secret_set", h.Kashier.WebhookSecret != "").Msg("webhook secret not configured")
			h.count("config_error")
			common.JSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "reason": "server misconfigured"})
		case errors.Is(err, kashier.ErrMissingSignature):
			h.Log.Warn().Msg("webhook without signature")
			h.count("missing_signature")
			common.JSON(w, http.StatusBadRequest, map[string]any{"ok": false, "reason": "missing signature"})
		default:
			// The supplied value is safe to log; the secret and the locally
			// computed digest are not.
			h.Log.Warn().Str("supplied_signature", r.URL.Query().Get("signature")).Msg("webhook signature mismatch")
			h.count("invalid_signature")
			common.JSON(w, http.StatusBadRequest, map[string]any{"ok": false, "reason": "invalid signature"})
		}
		return
	}

	ctx := r.Context()
	if h.Replay != nil && h.ReplayTTL > 0 {
		digest := common.Sha256Hex(r.URL.RawQuery + "\n" + string(body))
		key := fmt.Sprintf("wh:kashier:%s", digest)
		fresh, err := h.Replay.SetNX(ctx, key, "1", h.ReplayTTL).Result()
		if err != nil {
			h.Log.Error().Err(err).Msg("webhook replay store")
			h.count("replay_store_error")
			common.JSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "reason": "server misconfigured"})
			return
		}
		if !fresh {
			// Verified duplicate: acknowledge so the gateway stops retrying.
			h.count("duplicate")
			common.JSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	orderID := params.Get("merchantOrderId", "orderId")
	if orderID == "" {
		h.Log.Warn().Msg("verified webhook without order id")
		h.count("no_order")
		common.JSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	status := NormalizeStatus(params.Get("paymentStatus", "status"))
	if status == StatusPending {
		h.count("pending")
		common.JSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if h.Store != nil {
		p, applied, err := h.Store.ApplyStatus(ctx, orderID, status, body)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				h.Log.Warn().Str("order_id", orderID).Msg("webhook for unknown payment")
				h.count("unknown_order")
				common.JSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			}
			h.Log.Error().Str("order_id", orderID).Err(err).Msg("apply payment status")
			h.count("store_error")
			common.JSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "reason": "server misconfigured"})
			return
		}
		if applied {
			h.settle(ctx, p, status)
		}
	}

	h.count("verified")
	common.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h Webhook) settle(ctx context.Context, p Payment, status string) {
	if h.Settler != nil {
		if err := h.Settler.SettlePayment(ctx, p.OrderID, status); err != nil {
			h.Log.Error().Str("order_id", p.OrderID).Err(err).Msg("settle booking")
		}
	}
	if h.Events == nil {
		return
	}
	topic := events.TopicPaymentPaid
	if status == StatusFailed {
		topic = events.TopicPaymentFailed
	}
	payload := map[string]any{
		"orderId":  p.OrderID,
		"amount":   p.Amount,
		"currency": p.Currency,
		"status":   status,
	}
	if p.UserID != uuid.Nil {
		payload["userId"] = p.UserID.String()
	}
	if _, err := h.Events.Emit(ctx, topic, p.OrderID, payload); err != nil {
		h.Log.Error().Str("order_id", p.OrderID).Err(err).Msg("emit payment event")
	}
}

func (h Webhook) count(result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(result).Inc()
	}
}
