package payment

import (
	"encoding/json"
	"fmt"
	"io"
)

var webhookNamedFields = map[string]bool{
	"TerminalKey": true,
	"OrderId":     true,
	"Success":     true,
	"Status":      true,
	"PaymentId":   true,
	"ErrorCode":   true,
	"Amount":      true,
	"Token":       true,
}

// ParseWebhookPayload decodes a provider callback body. Numbers keep their
// original literal form so the recomputed signature concatenates exactly the
// bytes the provider signed. Nested values (objects, arrays, null) never
// enter the signing domain.
func ParseWebhookPayload(r io.Reader) (WebhookPayload, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return WebhookPayload{}, fmt.Errorf("decode webhook body: %w", err)
	}

	signing := make(map[string]string, len(raw))
	extra := make(map[string]string)
	for name, value := range raw {
		rendered, scalar := renderScalar(value)
		if !scalar {
			continue
		}
		signing[name] = rendered
		if !webhookNamedFields[name] {
			extra[name] = rendered
		}
	}

	payload := WebhookPayload{
		TerminalKey: signing["TerminalKey"],
		OrderID:     signing["OrderId"],
		Success:     truthy(raw["Success"]),
		Status:      signing["Status"],
		PaymentID:   signing["PaymentId"],
		ErrorCode:   signing["ErrorCode"],
		Token:       signing["Token"],
		Extra:       extra,
		signing:     signing,
	}
	if n, ok := raw["Amount"].(json.Number); ok {
		if amount, err := n.Int64(); err == nil {
			payload.Amount = amount
		} else if f, err := n.Float64(); err == nil {
			payload.Amount = int64(f)
		}
	}
	return payload, nil
}

// renderScalar converts a decoded JSON value to its signing representation.
// It reports false for anything non-scalar.
func renderScalar(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		if val {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true"
	case json.Number:
		f, err := val.Float64()
		return err == nil && f != 0
	default:
		return false
	}
}
