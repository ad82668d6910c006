package kashier

import (
	"bytes"
	"crypto/hmac"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Params is the flat, verified parameter set extracted from a webhook
// delivery. Field names are provider-controlled; consumers should only
// assume an order identifier key exists.
type Params map[string]string

// Get returns the first non-empty value among the given keys.
func (p Params) Get(keys ...string) string {
	for _, key := range keys {
		if v, ok := p[key]; ok && v != "" {
			return v
		}
	}
	return ""
}

// VerifyWebhook authenticates an inbound gateway notification. Parameters
// may arrive in the query string, a JSON body, or both; body values
// supplement and override query values, while a query-string signature wins
// over a body one. Non-JSON bodies are tolerated and treated as empty.
//
// The event is untrusted until this returns nil error; callers must not
// mutate any state on a verification failure.
func (c Config) VerifyWebhook(query url.Values, body []byte) (Params, error) {
	if strings.TrimSpace(c.WebhookSecret) == "" {
		return nil, ErrNotConfigured
	}

	merged := Params{}
	for key := range query {
		merged[key] = query.Get(key)
	}
	for key, value := range parseBodyParams(body) {
		merged[key] = value
	}

	signature := query.Get("signature")
	if signature == "" {
		signature = merged["signature"]
	}
	if signature == "" {
		return nil, ErrMissingSignature
	}

	computed := hmacHex([]byte(c.WebhookSecret), canonicalString(merged))
	if !hmac.Equal([]byte(computed), []byte(signature)) {
		return nil, ErrInvalidSignature
	}
	return merged, nil
}

// canonicalString serializes the parameter set the way the gateway signs it:
// keys sorted lexicographically, `signature` and `mode` excluded, joined as
// key=value pairs with '&'. Sorting makes the construction independent of
// delivery order; the exclusion list mirrors the sender exactly.
func canonicalString(params Params) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == "signature" || key == "mode" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(params[key])
	}
	return b.String()
}

// parseBodyParams decodes a JSON object body into a flat string mapping.
// Anything that is not a JSON object yields an empty mapping rather than an
// error: redirect-style callbacks carry everything in the query string.
func parseBodyParams(body []byte) Params {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil
	}
	params := make(Params, len(raw))
	for key, value := range raw {
		params[key] = stringifyParam(value)
	}
	return params
}

// stringifyParam renders a decoded JSON value as it is expected to appear in
// the signed key=value string. Numbers keep their literal source form, which
// is why the body is decoded with UseNumber.
func stringifyParam(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return "null"
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
