package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/slava9999-dev/arbarea-backend/internal/common"
	"github.com/slava9999-dev/arbarea-backend/internal/lock"
	"github.com/slava9999-dev/arbarea-backend/internal/obs"
	"github.com/slava9999-dev/arbarea-backend/internal/order"
)

// confirmedStatus is the only provider status that triggers the paid
// notification. AUTHORIZED also maps to paid but represents a hold, not a
// completed charge, so it stays silent.
const confirmedStatus = "CONFIRMED"

// WebhookPayload is the provider callback after decoding. Named fields carry
// the values the handler acts on; Extra holds every other root-level scalar
// so signature verification covers the exact field set that was signed.
type WebhookPayload struct {
	TerminalKey string
	OrderID     string
	Success     bool
	Status      string
	PaymentID   string
	ErrorCode   string
	Amount      int64
	Token       string
	// Extra maps field name to the literal scalar rendering used for signing.
	Extra map[string]string

	// signing is the full scalar field set as received, Token included.
	signing map[string]string
}

// SigningFields returns the scalar fields that participate in signature
// verification, excluding the Token itself (Sign drops it again regardless).
func (p WebhookPayload) SigningFields() map[string]string {
	out := make(map[string]string, len(p.signing))
	for k, v := range p.signing {
		out[k] = v
	}
	return out
}

// WebhookStore is the order persistence needed by webhook processing.
type WebhookStore interface {
	GetByOrderID(ctx context.Context, orderID string) (order.Order, error)
	ApplyStatus(ctx context.Context, u order.StatusUpdate) (order.StatusResult, error)
}

// PaidNotifier fires the best-effort paid notification.
type PaidNotifier interface {
	OrderPaid(ctx context.Context, o order.Order) error
}

// WebhookOutcome tells the HTTP layer what to answer the provider.
type WebhookOutcome int

const (
	// OutcomeOK acknowledges the callback with a plain "OK".
	OutcomeOK WebhookOutcome = iota
	// OutcomeForbidden rejects the callback without touching the order.
	OutcomeForbidden
)

// WebhookProcessor verifies and applies provider payment callbacks.
type WebhookProcessor struct {
	Cfg       TinkoffConfig
	Orders    WebhookStore
	Notifier  PaidNotifier
	Locker    lock.Locker
	LockTTL   time.Duration
	Replay    *redis.Client
	ReplayTTL time.Duration
}

// Process runs the callback pipeline: terminal check, signature check, order
// lookup and the conditional status transition, then the paid notification.
// Any error returned here means the provider should redeliver.
func (p WebhookProcessor) Process(ctx context.Context, payload WebhookPayload) (WebhookOutcome, string, error) {
	logger := log.Ctx(ctx).With().
		Str("order_id", payload.OrderID).
		Str("provider_status", payload.Status).
		Logger()

	if payload.TerminalKey != p.Cfg.TerminalKey {
		logger.Warn().Msg("webhook terminal key mismatch")
		p.count("terminal_mismatch")
		return OutcomeForbidden, "invalid terminal key", nil
	}

	if p.Cfg.Secret != "" {
		if !Verify(payload.SigningFields(), p.Cfg.Secret, payload.Token) {
			logger.Warn().Msg("webhook signature mismatch")
			p.count("token_mismatch")
			return OutcomeForbidden, "invalid token", nil
		}
	}

	if p.seenRecently(ctx, payload) {
		logger.Debug().Msg("webhook replay suppressed")
		p.count("replay")
		return OutcomeOK, "", nil
	}

	if payload.OrderID == "" {
		logger.Warn().Msg("webhook without order id acknowledged")
		p.count("no_order_id")
		return OutcomeOK, "", nil
	}

	err := p.withOrderLock(ctx, payload.OrderID, func(ctx context.Context) error {
		return p.apply(ctx, logger, payload)
	})
	if err != nil {
		return OutcomeOK, "", err
	}
	p.markSeen(ctx, payload)
	return OutcomeOK, "", nil
}

func (p WebhookProcessor) apply(ctx context.Context, logger zerolog.Logger, payload WebhookPayload) error {
	next := MapProviderStatus(payload.Status)
	result, err := p.Orders.ApplyStatus(ctx, order.StatusUpdate{
		OrderID:        payload.OrderID,
		Next:           next,
		ProviderStatus: payload.Status,
		PaymentID:      payload.PaymentID,
		ErrorCode:      payload.ErrorCode,
		Amount:         payload.Amount / 100,
	})
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			// Acknowledge unknown orders so the provider stops retrying.
			logger.Warn().Msg("webhook for unknown order acknowledged")
			p.count("order_not_found")
			return nil
		}
		p.count("error")
		return fmt.Errorf("apply webhook status: %w", err)
	}

	if !result.Applied {
		logger.Info().Msg("duplicate paid confirmation skipped")
		p.count("duplicate")
		return nil
	}

	logger.Info().
		Str("previous_status", string(result.Previous)).
		Str("new_status", string(next)).
		Msg("order status updated from webhook")
	p.count("ok")

	if payload.Status == confirmedStatus && payload.Success && result.Previous != order.StatusPaid {
		p.notifyPaid(ctx, payload.OrderID)
	}
	return nil
}

// notifyPaid is best effort: a failed notification never fails the webhook.
func (p WebhookProcessor) notifyPaid(ctx context.Context, orderID string) {
	if p.Notifier == nil {
		return
	}
	o, err := p.Orders.GetByOrderID(ctx, orderID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Msg("load order for paid notification failed")
		return
	}
	if err := p.Notifier.OrderPaid(ctx, o); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Msg("enqueue paid notification failed")
	}
}

func (p WebhookProcessor) withOrderLock(ctx context.Context, orderID string, fn func(context.Context) error) error {
	if p.Locker.R == nil {
		return fn(ctx)
	}
	return p.Locker.WithLock(ctx, "webhook:order:"+orderID, p.LockTTL, fn)
}

// seenRecently short-circuits byte-identical redeliveries. Only verified
// payloads reach this point, so the token is a safe dedup key.
func (p WebhookProcessor) seenRecently(ctx context.Context, payload WebhookPayload) bool {
	if p.Replay == nil || p.ReplayTTL <= 0 || payload.Token == "" {
		return false
	}
	exists, err := p.Replay.Exists(ctx, p.replayKey(payload)).Result()
	return err == nil && exists > 0
}

func (p WebhookProcessor) markSeen(ctx context.Context, payload WebhookPayload) {
	if p.Replay == nil || p.ReplayTTL <= 0 || payload.Token == "" {
		return
	}
	_ = p.Replay.Set(ctx, p.replayKey(payload), "1", p.ReplayTTL).Err()
}

func (p WebhookProcessor) replayKey(payload WebhookPayload) string {
	return "webhook:replay:" + common.Sha256Hex(payload.OrderID+"|"+payload.Status+"|"+payload.Token+"|"+strconv.FormatInt(payload.Amount, 10))
}

func (p WebhookProcessor) count(result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(result).Inc()
	}
}
