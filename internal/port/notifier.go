package port

import (
	"context"

	"github.com/betselot/herdstore/internal/core/domain"
)

// Notifier delivers post-commit messages. Both sends are best effort: a
// failure is logged by the caller and never affects the committed order.
type Notifier interface {
	NotifyBuyer(ctx context.Context, n domain.OrderNotification) error
	NotifyOperator(ctx context.Context, n domain.OrderNotification) error
}
