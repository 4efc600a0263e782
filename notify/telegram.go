// Package notify pushes dispatch events to shippers over Telegram.
// A nil Notifier is valid and drops every message, so callers never
// need to branch on whether notifications are configured.
package notify

import (
	"fmt"

	"pizza-fulfillment/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier struct {
	api *tgbotapi.BotAPI
}

// New returns nil when token is empty.
func New(token string) (*Notifier, error) {
	if token == "" {
		return nil, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify bot: %w", err)
	}
	return &Notifier{api: api}, nil
}

// RouteAssigned tells the shipper a new route is theirs, stop by stop.
func (n *Notifier) RouteAssigned(chatID int64, d *models.Delivery) error {
	if n == nil || chatID == 0 {
		return nil
	}
	text := fmt.Sprintf("Lộ trình #%d: %d đơn hàng\n", d.ID, len(d.Steps))
	for _, s := range d.Steps {
		text += fmt.Sprintf("\n%d. Đơn #%d (%.1f km)", s.StepNumber, s.OrderID, s.Distance/1000)
		if s.Instruction != "" {
			text += "\n   " + s.Instruction
		}
	}
	_, err := n.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// StepClosed notifies the shipper that a stop was closed out.
func (n *Notifier) StepClosed(chatID int64, deliveryID, orderID int64, status string) error {
	if n == nil || chatID == 0 {
		return nil
	}
	text := fmt.Sprintf("Lộ trình #%d: đơn #%d %s", deliveryID, orderID, status)
	_, err := n.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
