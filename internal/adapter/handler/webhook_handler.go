package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/betselot/herdstore/internal/adapter/telegram"
	"github.com/betselot/herdstore/internal/core/domain"
	"github.com/betselot/herdstore/internal/core/service"
	"github.com/betselot/herdstore/internal/port"
)

const (
	soldOutText      = "😔 Sorry, that animal has already been sold."
	orderFailedText  = "⚠️ Failed to process your order."
	invalidOrderText = "⚠️ Your order is missing required details."
)

type CommandRouter interface {
	Route(ctx context.Context, fromID, senderName, text string) (service.Reply, bool)
}

type MessageSender interface {
	SendMessage(ctx context.Context, chatID, text string, btn *telegram.WebAppButton) error
}

// WebhookHandler accepts one Telegram update per call: commands go to the
// router, Mini App buy submissions go through the intake pipeline.
type WebhookHandler struct {
	intake IntakeService
	router CommandRouter
	db     port.DatabaseRepository
	sender MessageSender
	logger *zap.Logger
}

// buyPayload is the Mini App submission attached to a message as
// web_app_data. Anything without action "buy" is ignored.
type buyPayload struct {
	Action string `json:"action"`
	Animal struct {
		ID    int64  `json:"id"`
		Type  string `json:"type"`
		Name  string `json:"name"`
		Price int64  `json:"price"`
	} `json:"animal"`
	Quantity        int    `json:"quantity"`
	DeliveryAddress string `json:"delivery_address"`
	PaymentMethod   string `json:"payment_method"`
}

func NewWebhookHandler(intake IntakeService, router CommandRouter, db port.DatabaseRepository, sender MessageSender, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{intake: intake, router: router, db: db, sender: sender, logger: logger}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pipelineTimeout)
	defer cancel()

	if msg.WebAppData != nil {
		if err := h.handleBuy(ctx, update.UpdateID, msg); err != nil {
			h.logger.Error("webhook order failed", zap.Int64("update_id", update.UpdateID), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	if msg.Text != "" {
		h.handleCommand(ctx, msg)
	}
	w.WriteHeader(http.StatusOK)
}

// handleBuy runs a Mini App submission through the pipeline. Expected
// failures (sold out, bad payload) are answered in chat and count as a
// processed update; only store failures surface as 500 so the transport
// retries into the deduplicator.
func (h *WebhookHandler) handleBuy(ctx context.Context, updateID int64, msg *telegram.Message) error {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	var payload buyPayload
	if err := json.Unmarshal([]byte(msg.WebAppData.Data), &payload); err != nil {
		h.reply(ctx, chatID, invalidOrderText)
		return nil
	}
	if payload.Action != "buy" {
		return nil
	}

	// The webhook is the profile collaborator for chat buyers: the sender's
	// own message carries everything the upsert needs. The upsert runs ahead
	// of the dedup check on purpose: first-time buyers must exist before the
	// pipeline resolves them, and a redelivered update repeats only this
	// idempotent profile refresh, never the order.
	telegramID := strconv.FormatInt(msg.From.ID, 10)
	if _, err := h.db.UpsertBuyer(ctx, domain.Buyer{
		TelegramID: telegramID,
		Name:       msg.From.DisplayName(),
		Language:   msg.From.LanguageCode,
	}); err != nil {
		return err
	}

	_, err := h.intake.PlaceOrder(ctx, service.PlaceOrderInput{
		EventID:         "tg:" + strconv.FormatInt(updateID, 10),
		BuyerTelegramID: telegramID,
		AnimalID:        payload.Animal.ID,
		Quantity:        payload.Quantity,
		DeliveryAddress: payload.DeliveryAddress,
		PaymentMethod:   payload.PaymentMethod,
	})
	switch {
	case err == nil, errors.Is(err, service.ErrDuplicateRequest):
		return nil
	case errors.Is(err, service.ErrSoldOut):
		h.reply(ctx, chatID, soldOutText)
		return nil
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrUnknownBuyer):
		h.reply(ctx, chatID, invalidOrderText)
		return nil
	default:
		h.reply(ctx, chatID, orderFailedText)
		return err
	}
}

func (h *WebhookHandler) handleCommand(ctx context.Context, msg *telegram.Message) {
	fromID := strconv.FormatInt(msg.From.ID, 10)
	reply, ok := h.router.Route(ctx, fromID, msg.From.DisplayName(), msg.Text)
	if !ok {
		return
	}

	var btn *telegram.WebAppButton
	if reply.WebAppURL != "" {
		btn = &telegram.WebAppButton{Text: reply.ButtonLabel, URL: reply.WebAppURL}
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	if err := h.sender.SendMessage(ctx, chatID, reply.Text, btn); err != nil {
		h.logger.Warn("command reply failed", zap.String("chat_id", chatID), zap.Error(err))
	}
}

func (h *WebhookHandler) reply(ctx context.Context, chatID, text string) {
	if err := h.sender.SendMessage(ctx, chatID, text, nil); err != nil {
		h.logger.Warn("chat reply failed", zap.String("chat_id", chatID), zap.Error(err))
	}
}
