// Package notify delivers order notifications to buyers' phones.
package notify

import (
	"context"
	"fmt"

	"kolia/internal/config"
	"kolia/internal/domain"

	"github.com/sirupsen/logrus"
)

// Result reports the outcome of a send. Failures are carried here, never returned.
type Result struct {
	Success bool   `json:"success"`
	IsMock  bool   `json:"is_mock"`
	Error   string `json:"error,omitempty"`
}

// Dispatcher sends a text message to a phone number
type Dispatcher interface {
	Send(ctx context.Context, phone, message string) Result
}

var statusMessages = map[domain.OrderStatus]string{
	domain.StatusConfirmed:        "Votre commande a été confirmée",
	domain.StatusPreparing:        "Votre commande est en préparation",
	domain.StatusReadyForDelivery: "Votre commande est prête pour la livraison",
	domain.StatusOutForDelivery:   "Votre commande est en cours de livraison",
	domain.StatusDelivered:        "Votre commande a été livrée avec succès",
	domain.StatusCancelled:        "Votre commande a été annulée",
}

// StatusMessage returns the canned message for an order entering status.
// ok is false for statuses that do not notify the buyer.
func StatusMessage(orderID uint, status domain.OrderStatus) (string, bool) {
	text, ok := statusMessages[status]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s - Commande #%d", text, orderID), true
}

// OrderCreatedMessage is sent right after checkout
func OrderCreatedMessage(orderID uint, total string) string {
	return fmt.Sprintf("Votre commande #%d a été confirmée. Total: %sFC", orderID, total)
}

// New picks a dispatcher from NOTIFY_DRIVER. Misconfigured drivers fall back to the log dispatcher.
func New(cfg *config.Config) Dispatcher {
	switch cfg.NotifyDriver {
	case "whatsapp":
		if cfg.WhatsAppAPIURL != "" && cfg.WhatsAppAPIToken != "" {
			return NewWhatsAppDispatcher(cfg.WhatsAppAPIURL, cfg.WhatsAppAPIToken)
		}
		logrus.Warn("WhatsApp credentials missing, using log notifications")
	case "amqp":
		d, err := DialAMQP(cfg.RabbitMQURL, cfg.NotifyExchange)
		if err == nil {
			return d
		}
		logrus.WithError(err).Warn("RabbitMQ unavailable, using log notifications")
	}
	return LogDispatcher{}
}

// LogDispatcher only logs messages; used in development
type LogDispatcher struct{}

func (LogDispatcher) Send(_ context.Context, phone, message string) Result {
	logrus.WithFields(logrus.Fields{
		"phone":   phone,
		"message": message,
	}).Info("Mock notification")
	return Result{Success: true, IsMock: true}
}
