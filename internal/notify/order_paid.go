package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/slava9999-dev/arbarea-backend/internal/obs"
	"github.com/slava9999-dev/arbarea-backend/internal/order"
	"github.com/slava9999-dev/arbarea-backend/internal/queue"
)

// TaskOrderPaid is the queue kind for paid-order notifications.
const TaskOrderPaid = "order-paid-notification"

// OrderPaidMessage is the queued notification payload.
type OrderPaidMessage struct {
	OrderID         string `json:"orderId"`
	Total           int64  `json:"total"`
	CustomerName    string `json:"customerName"`
	CustomerPhone   string `json:"customerPhone"`
	DeliveryMethod  string `json:"deliveryMethod"`
	DeliveryAddress string `json:"deliveryAddress"`
}

// OrderPaidNotifier enqueues paid-order notifications for the worker.
// Enqueueing is deduplicated per order so a webhook redelivery that slips
// past the status guard still produces only one message.
type OrderPaidNotifier struct {
	Queue queue.Enqueuer
}

// OrderPaid publishes the notification task for a freshly paid order.
func (n OrderPaidNotifier) OrderPaid(ctx context.Context, o order.Order) error {
	payload, err := json.Marshal(OrderPaidMessage{
		OrderID:         o.OrderID,
		Total:           o.Total,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		DeliveryMethod:  o.DeliveryMethod,
		DeliveryAddress: o.DeliveryAddress,
	})
	if err != nil {
		return fmt.Errorf("marshal paid notification: %w", err)
	}
	return n.Queue.Enqueue(ctx, queue.Task{
		Kind:           TaskOrderPaid,
		Payload:        payload,
		IdempotencyKey: "order-paid:" + o.OrderID,
	})
}

// FormatOrderPaidText renders the operator-facing Telegram message.
func FormatOrderPaidText(m OrderPaidMessage) string {
	var b strings.Builder
	b.WriteString("✅ <b>Оплата подтверждена!</b>\n\n")
	fmt.Fprintf(&b, "<b>Заказ:</b> %s\n", m.OrderID)
	fmt.Fprintf(&b, "<b>Сумма:</b> %d ₽\n", m.Total)
	fmt.Fprintf(&b, "<b>Клиент:</b> %s\n", orDefault(m.CustomerName, "Не указано"))
	fmt.Fprintf(&b, "<b>Телефон:</b> %s\n", orDefault(m.CustomerPhone, "Не указано"))
	fmt.Fprintf(&b, "<b>Доставка:</b> %s\n", orDefault(m.DeliveryMethod, "Не выбрана"))
	fmt.Fprintf(&b, "<b>Адрес:</b> %s\n", orDefault(m.DeliveryAddress, "Не указан"))
	b.WriteString("\n🎉 Можно начинать обработку!")
	return b.String()
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

type messageSender interface {
	SendMessage(ctx context.Context, text string) error
}

// Deliverer is the queue worker handler that posts queued notifications to
// Telegram.
type Deliverer struct {
	Telegram messageSender
}

// Handle processes one queued notification task.
func (d Deliverer) Handle(ctx context.Context, task queue.Task) error {
	var msg OrderPaidMessage
	if err := json.Unmarshal(task.Payload, &msg); err != nil {
		// A payload that never parses would retry forever; drop it.
		log.Ctx(ctx).Error().Err(err).Msg("discarding malformed paid notification")
		d.count("malformed")
		return nil
	}
	if err := d.Telegram.SendMessage(ctx, FormatOrderPaidText(msg)); err != nil {
		d.count("error")
		return err
	}
	log.Ctx(ctx).Info().Str("order_id", msg.OrderID).Msg("paid notification delivered")
	d.count("ok")
	return nil
}

func (d Deliverer) count(result string) {
	if obs.NotifyTotal != nil {
		obs.NotifyTotal.WithLabelValues(result).Inc()
	}
}
