package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/slava9999-dev/arbarea-backend/internal/common"
)

const maxIntakeBody = 1 << 20

// Handlers exposes the payment HTTP surface: client-facing order intake and
// the provider-facing webhook.
type Handlers struct {
	Svc      Service
	Webhook  WebhookProcessor
	Validate *validator.Validate
}

// CreateOrder handles POST /api/v1/payments. The response keeps the shape the
// storefront expects: success flag plus either the redirect data or a message.
func (h Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIntakeBody)
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.intakeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			h.intakeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
			return
		}
	}

	result, err := h.Svc.CreateOrder(r.Context(), req)
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			h.intakeError(w, appErr.HTTPStatus, appErr.Message)
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("order intake failed")
		h.intakeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	common.JSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"paymentUrl": result.PaymentURL,
		"paymentId":  result.PaymentID,
		"orderId":    result.OrderID,
	})
}

func (h Handlers) intakeError(w http.ResponseWriter, status int, message string) {
	common.JSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// ProviderWebhook handles POST /payments/webhook. The provider retries on
// anything but 200, so every path that reached order lookup acknowledges
// with a plain "OK" even when nothing was written.
func (h Handlers) ProviderWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := ParseWebhookPayload(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "malformed webhook body", nil)
		return
	}

	outcome, message, err := h.Webhook.Process(r.Context(), payload)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("order_id", payload.OrderID).Msg("webhook processing failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
		return
	}
	if outcome == OutcomeForbidden {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", message, nil)
		return
	}
	common.PlainText(w, http.StatusOK, "OK")
}
