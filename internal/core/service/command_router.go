package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/betselot/herdstore/internal/port"
)

const (
	notAuthorizedText = "⚠️ Not authorized."
	queryFailedText   = "⚠️ Failed to fetch data."
	helpText          = "🐐 Buy sheep & goats using the mini app.\nUse /store anytime to open the shop."
	storeButtonLabel  = "🛒 Open Store | መደብር ይክፈቱ"

	latestOrdersLimit = 5
)

// Reply is an outbound chat message; a non-empty WebAppURL attaches a
// single inline launch button.
type Reply struct {
	Text        string
	WebAppURL   string
	ButtonLabel string
}

// CommandRouter maps inbound text commands to read-only replies. The two
// admin commands query the order ledger; everything else is static.
type CommandRouter struct {
	db          port.DatabaseRepository
	adminChatID string
	storeURL    string
	logger      *zap.Logger
}

func NewCommandRouter(db port.DatabaseRepository, adminChatID, storeURL string, logger *zap.Logger) *CommandRouter {
	return &CommandRouter{
		db:          db,
		adminChatID: adminChatID,
		storeURL:    storeURL,
		logger:      logger,
	}
}

// Route dispatches a text command from the given sender. The second return
// is false when the text is not a recognized command.
func (r *CommandRouter) Route(ctx context.Context, fromID, senderName, text string) (Reply, bool) {
	cmd := strings.Fields(strings.TrimSpace(text))
	if len(cmd) == 0 || !strings.HasPrefix(cmd[0], "/") {
		return Reply{}, false
	}

	c := cmd[0]
	if i := strings.Index(c, "@"); i >= 0 {
		c = c[:i] // strip bot mention, e.g. /start@HerdStoreBot
	}

	switch c {
	case "/start":
		greeting := "🐐 እንኳን ደህና መጡ!"
		if senderName != "" {
			greeting = fmt.Sprintf("🐐 እንኳን ደህና መጡ %s!", senderName)
		}
		return r.storeButton(greeting), true
	case "/store":
		return r.storeButton("Click below to open the store:"), true
	case "/help", "/about":
		return Reply{Text: helpText}, true
	case "/orders":
		return r.latestOrders(ctx, fromID), true
	case "/stats":
		return r.salesStats(ctx, fromID), true
	}
	return Reply{}, false
}

func (r *CommandRouter) storeButton(text string) Reply {
	return Reply{Text: text, WebAppURL: r.storeURL, ButtonLabel: storeButtonLabel}
}

func (r *CommandRouter) authorized(fromID string) bool {
	return r.adminChatID != "" && fromID == r.adminChatID
}

func (r *CommandRouter) latestOrders(ctx context.Context, fromID string) Reply {
	if !r.authorized(fromID) {
		return Reply{Text: notAuthorizedText}
	}

	rows, err := r.db.LatestOrders(ctx, latestOrdersLimit)
	if err != nil {
		r.logger.Error("latest orders query failed", zap.Error(err))
		return Reply{Text: queryFailedText}
	}
	if len(rows) == 0 {
		return Reply{Text: "📭 No orders yet."}
	}

	var b strings.Builder
	b.WriteString("📦 Latest Orders:\n\n")
	for _, o := range rows {
		fmt.Fprintf(&b, "🆔 %d | 👤 %s (tg:%s) | %s (%s) x%d | 💰 %d ETB\n🕒 %s\n\n",
			o.ID, o.BuyerName, o.BuyerTelegramID, o.AnimalKind, o.AnimalSize,
			o.Quantity, o.TotalPrice, o.CreatedAt.Format("2006-01-02 15:04"))
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n")}
}

func (r *CommandRouter) salesStats(ctx context.Context, fromID string) Reply {
	if !r.authorized(fromID) {
		return Reply{Text: notAuthorizedText}
	}

	stats, err := r.db.SalesByKind(ctx)
	if err != nil {
		r.logger.Error("sales stats query failed", zap.Error(err))
		return Reply{Text: queryFailedText}
	}
	if len(stats) == 0 {
		return Reply{Text: "📊 No sales yet."}
	}

	var b strings.Builder
	b.WriteString("📊 Sales Summary:\n\n")
	var grandTotal int64
	for _, s := range stats {
		fmt.Fprintf(&b, "%s → %d sold, %d ETB total\n", s.Kind, s.Count, s.Total)
		grandTotal += s.Total
	}
	fmt.Fprintf(&b, "\n💰 Grand Total: %d ETB", grandTotal)
	return Reply{Text: b.String()}
}
