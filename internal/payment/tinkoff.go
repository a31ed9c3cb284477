package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/slava9999-dev/arbarea-backend/internal/common"
	"github.com/slava9999-dev/arbarea-backend/internal/obs"
	"github.com/slava9999-dev/arbarea-backend/internal/resilience"
)

// TinkoffConfig carries the acquiring credentials and endpoint.
type TinkoffConfig struct {
	TerminalKey string
	Secret      string
	BaseURL     string
}

// ReceiptItem is a fiscal receipt line. Amounts are in minor units (kopecks).
type ReceiptItem struct {
	Name     string `json:"Name"`
	Price    int64  `json:"Price"`
	Quantity int64  `json:"Quantity"`
	Amount   int64  `json:"Amount"`
	Tax      string `json:"Tax"`
}

// Receipt is the fiscalisation block attached to session initiation. It is a
// nested structure and therefore never part of the signing domain.
type Receipt struct {
	Email    string        `json:"Email,omitempty"`
	Phone    string        `json:"Phone,omitempty"`
	Taxation string        `json:"Taxation"`
	Items    []ReceiptItem `json:"Items"`
}

// InitRequest is the session-initiation call. Amount is in minor units.
type InitRequest struct {
	Amount      int64
	OrderID     string
	Description string
	Receipt     *Receipt
}

type initWireRequest struct {
	TerminalKey string   `json:"TerminalKey"`
	Amount      int64    `json:"Amount"`
	OrderID     string   `json:"OrderId"`
	Description string   `json:"Description,omitempty"`
	PayType     string   `json:"PayType,omitempty"`
	Language    string   `json:"Language,omitempty"`
	Token       string   `json:"Token"`
	Receipt     *Receipt `json:"Receipt,omitempty"`
}

type initWireResponse struct {
	Success    bool        `json:"Success"`
	ErrorCode  string      `json:"ErrorCode"`
	Message    string      `json:"Message"`
	Details    string      `json:"Details"`
	Status     string      `json:"Status"`
	PaymentID  json.Number `json:"PaymentId"`
	PaymentURL string      `json:"PaymentURL"`
}

// Session is a successfully initiated payment session.
type Session struct {
	PaymentID  string
	PaymentURL string
	Status     string
}

// TinkoffClient talks to the acquiring API's Init endpoint with retry and
// circuit breaking on the transport.
type TinkoffClient struct {
	Cfg  TinkoffConfig
	HTTP resilience.HTTPClient
}

// Init creates a payment session and returns the redirect URL. Provider
// rejections and transport failures both surface as PAYMENT_PROVIDER errors;
// only the HTTP status differs so callers can distinguish "declined" from
// "unreachable".
func (c TinkoffClient) Init(ctx context.Context, req InitRequest) (Session, error) {
	wire := initWireRequest{
		TerminalKey: c.Cfg.TerminalKey,
		Amount:      req.Amount,
		OrderID:     req.OrderID,
		Description: req.Description,
		PayType:     "O",
		Language:    "ru",
		Receipt:     req.Receipt,
	}
	wire.Token = Sign(c.signingFields(wire), c.Cfg.Secret)

	body, err := json.Marshal(wire)
	if err != nil {
		return Session{}, fmt.Errorf("marshal init request: %w", err)
	}

	url := strings.TrimRight(c.Cfg.BaseURL, "/") + "/Init"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("build init request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.HTTP.Do(ctx, httpReq)
	if err != nil {
		c.observe("init", "transport_error", start)
		return Session{}, common.NewAppError("PAYMENT_PROVIDER", "payment provider unreachable", http.StatusBadGateway, err)
	}
	defer resp.Body.Close()

	var out initWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.observe("init", "decode_error", start)
		return Session{}, common.NewAppError("PAYMENT_PROVIDER", "invalid provider response", http.StatusBadGateway, err)
	}

	if !out.Success {
		c.observe("init", "rejected", start)
		msg := out.Message
		if msg == "" {
			msg = "payment initiation failed"
		}
		log.Ctx(ctx).Warn().
			Str("order_id", req.OrderID).
			Str("provider_error_code", out.ErrorCode).
			Str("provider_details", out.Details).
			Msg("provider rejected payment init")
		return Session{}, common.ProviderError(msg, nil)
	}

	c.observe("init", "ok", start)
	return Session{
		PaymentID:  out.PaymentID.String(),
		PaymentURL: out.PaymentURL,
		Status:     out.Status,
	}, nil
}

// signingFields flattens the request's root scalars for token computation.
// Empty optional fields are omitted, matching what is serialised on the wire.
func (c TinkoffClient) signingFields(wire initWireRequest) map[string]string {
	fields := map[string]string{
		"TerminalKey": wire.TerminalKey,
		"Amount":      strconv.FormatInt(wire.Amount, 10),
		"OrderId":     wire.OrderID,
	}
	if wire.Description != "" {
		fields["Description"] = wire.Description
	}
	if wire.PayType != "" {
		fields["PayType"] = wire.PayType
	}
	if wire.Language != "" {
		fields["Language"] = wire.Language
	}
	return fields
}

func (c TinkoffClient) observe(operation, result string, start time.Time) {
	if obs.ProviderCallLatency == nil {
		return
	}
	obs.ProviderCallLatency.WithLabelValues(operation, result).Observe(obs.DurationMillis(time.Since(start)))
}
