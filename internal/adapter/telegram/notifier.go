package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/betselot/herdstore/internal/core/domain"
)

// Notifier sends post-commit order messages over the Bot API. Both sends
// are best effort; callers log failures and move on.
type Notifier struct {
	client         *Client
	operatorChatID string
}

func NewNotifier(client *Client, operatorChatID string) *Notifier {
	return &Notifier{client: client, operatorChatID: operatorChatID}
}

func (n *Notifier) NotifyBuyer(ctx context.Context, on domain.OrderNotification) error {
	text := fmt.Sprintf(
		"✅ Order saved!\n🆔 Order ID: %d\n📦 %s (%s) x%d\n💰 %d ETB",
		on.OrderID, on.AnimalKind, on.AnimalSize, on.Quantity, on.TotalPrice,
	)
	return n.client.SendMessage(ctx, on.BuyerChatID, text, nil)
}

func (n *Notifier) NotifyOperator(ctx context.Context, on domain.OrderNotification) error {
	if n.operatorChatID == "" {
		return nil
	}
	address := on.DeliveryAddress
	if address == "" {
		address = "—"
	}
	text := fmt.Sprintf(
		"🆕 New Order #%d\n👤 %s (tg:%s)\n📦 %s / %s x%d\n💵 %d ETB\n📍 %s\n💳 %s",
		on.OrderID, on.BuyerName, on.BuyerChatID, on.AnimalKind, on.AnimalSize,
		on.Quantity, on.TotalPrice, address, strings.ToUpper(on.PaymentMethod),
	)
	return n.client.SendMessage(ctx, n.operatorChatID, text, nil)
}
