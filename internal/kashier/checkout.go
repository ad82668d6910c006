package kashier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// CheckoutRequest captures the fields of a payment request. OrderID must
// uniquely identify the booking or order being paid; Amount must already be
// normalized via NormalizeAmount. The optional fields are appended to the
// checkout URL but never enter the signed canonical string.
type CheckoutRequest struct {
	OrderID          string
	Amount           string
	Currency         string
	Description      string
	MerchantRedirect string
	FailureRedirect  string
	ServerWebhook    string
	Metadata         map[string]any
}

// Session is the derived checkout artifact: a provider-hosted URL embedding
// the payment intent and its integrity hash. Created once per attempt and
// never mutated; the caller keeps OrderID around to reconcile on return.
type Session struct {
	CheckoutURL string
	OrderID     string
	Amount      string
	Currency    string
}

// SignCheckout computes the integrity hash for the request and assembles the
// hosted-checkout redirect URL. Amount and currency are immutable once the
// hash is computed: any later change invalidates the hash the gateway will
// verify against.
func (c Config) SignCheckout(req CheckoutRequest) (Session, error) {
	if strings.TrimSpace(c.MerchantID) == "" || strings.TrimSpace(c.APIKey) == "" {
		return Session{}, ErrNotConfigured
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return Session{}, &ValidationError{Field: "orderId", Reason: "is required"}
	}
	amount := strings.TrimSpace(req.Amount)
	if amount == "" {
		return Session{}, &ValidationError{Field: "amount", Reason: "is required"}
	}
	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = c.DefaultCurrency
	}
	if currency == "" {
		currency = "EGP"
	}

	// Hash path per Kashier docs: /?payment=<mid>.<orderId>.<amount>.<currency>.
	// A customerReference would ride as a fifth dot segment; not supported here.
	path := fmt.Sprintf("/?payment=%s.%s.%s.%s", c.MerchantID, orderID, amount, currency)
	hash := hmacHex([]byte(c.APIKey), path)

	mode := strings.TrimSpace(c.Mode)
	if mode == "" {
		mode = "live"
	}

	params := url.Values{}
	params.Set("merchantId", c.MerchantID)
	params.Set("orderId", orderID)
	params.Set("amount", amount)
	params.Set("currency", currency)
	params.Set("hash", hash)
	params.Set("mode", mode)
	if req.MerchantRedirect != "" {
		params.Set("merchantRedirect", req.MerchantRedirect)
	}
	if req.FailureRedirect != "" {
		params.Set("failureRedirect", req.FailureRedirect)
	}
	webhook := req.ServerWebhook
	if webhook == "" {
		webhook = c.WebhookURL
	}
	if webhook != "" {
		params.Set("serverWebhook", webhook)
	}
	if req.Description != "" {
		params.Set("description", req.Description)
	}
	if len(req.Metadata) > 0 {
		encoded, err := json.Marshal(req.Metadata)
		if err != nil {
			return Session{}, fmt.Errorf("kashier: encode metadata: %w", err)
		}
		params.Set("metaData", string(encoded))
	}

	base := strings.TrimRight(strings.TrimSpace(c.CheckoutBaseURL), "/")
	if base == "" {
		base = "https://payments.kashier.io"
	}

	return Session{
		CheckoutURL: base + "/?" + params.Encode(),
		OrderID:     orderID,
		Amount:      amount,
		Currency:    currency,
	}, nil
}

func hmacHex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
