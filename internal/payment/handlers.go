package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sehaty-app/backend-sehaty/internal/common"
	"github.com/sehaty-app/backend-sehaty/internal/kashier"
	"github.com/sehaty-app/backend-sehaty/internal/obs"
)

// Handler exposes the checkout signing endpoint and payment status polling.
type Handler struct {
	Kashier kashier.Config
	Store   Store
	Log     zerolog.Logger
}

type createReq struct {
	OrderID          string         `json:"orderId"`
	Amount           any            `json:"amount"`
	Currency         string         `json:"currency"`
	Description      string         `json:"description"`
	MerchantRedirect string         `json:"merchantRedirect"`
	FailureRedirect  string         `json:"failureRedirect"`
	ServerWebhook    string         `json:"serverWebhook"`
	Metadata         map[string]any `json:"metadata"`
}

// Create signs a checkout request and returns the hosted payment URL. The
// response and error bodies never carry credentials or the computed hash
// beyond its place inside the checkout URL itself.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		common.JSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		common.JSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	var req createReq
	if err := decoder.Decode(&req); err != nil {
		h.count("validation_error")
		common.JSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required parameters or configuration"})
		return
	}

	amount, err := kashier.NormalizeAmount(req.Amount)
	if err != nil {
		h.Log.Warn().Str("order_id", req.OrderID).Err(err).Msg("payment create rejected")
		h.count("validation_error")
		common.JSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required parameters or configuration"})
		return
	}

	session, err := h.Kashier.SignCheckout(kashier.CheckoutRequest{
		OrderID:          req.OrderID,
		Amount:           amount,
		Currency:         req.Currency,
		Description:      req.Description,
		MerchantRedirect: req.MerchantRedirect,
		FailureRedirect:  req.FailureRedirect,
		ServerWebhook:    req.ServerWebhook,
		Metadata:         req.Metadata,
	})
	if err != nil {
		if errors.Is(err, kashier.ErrNotConfigured) {
			// Log only which credentials are present, never their values.
			// The client gets the same generic message as a validation
			// failure; the distinction lives in the logs.
			h.Log.Error().
				Bool("merchant_id_set", h.Kashier.MerchantID != "").
				Bool("api_key_set", h.Kashier.APIKey != "").
				Msg("payment gateway not configured")
			h.count("config_error")
			common.JSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required parameters or configuration"})
			return
		}
		h.Log.Warn().Str("order_id", req.OrderID).Err(err).Msg("payment create rejected")
		h.count("validation_error")
		common.JSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required parameters or configuration"})
		return
	}

	if h.Store != nil {
		_, err = h.Store.CreatePending(r.Context(), Payment{
			OrderID:     session.OrderID,
			UserID:      userUUID,
			Amount:      session.Amount,
			Currency:    session.Currency,
			CheckoutURL: session.CheckoutURL,
		})
		if err != nil {
			h.Log.Error().Str("order_id", session.OrderID).Err(err).Msg("persist pending payment")
			h.count("store_error")
			common.JSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			return
		}
	}

	h.count("success")
	common.JSON(w, http.StatusOK, map[string]string{"checkoutUrl": session.CheckoutURL})
}

// Status reports the current payment status for an order the caller owns.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		common.JSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if orderID == "" {
		common.JSON(w, http.StatusBadRequest, map[string]string{"error": "orderId is required"})
		return
	}
	p, err := h.Store.GetByOrderID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSON(w, http.StatusNotFound, map[string]string{"error": "Payment not found"})
			return
		}
		h.Log.Error().Str("order_id", orderID).Err(err).Msg("fetch payment")
		common.JSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}
	if p.UserID.String() != userID {
		common.JSON(w, http.StatusNotFound, map[string]string{"error": "Payment not found"})
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{
		"orderId":  p.OrderID,
		"status":   p.Status,
		"amount":   p.Amount,
		"currency": p.Currency,
	})
}

func (h *Handler) count(result string) {
	if obs.PaymentSignTotal != nil {
		obs.PaymentSignTotal.WithLabelValues(result).Inc()
	}
}
