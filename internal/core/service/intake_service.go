package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/betselot/herdstore/internal/core/domain"
	"github.com/betselot/herdstore/internal/metrics"
	"github.com/betselot/herdstore/internal/port"
)

var (
	ErrValidation       = errors.New("invalid order request")
	ErrUnknownBuyer     = errors.New("unknown buyer")
	ErrSoldOut          = errors.New("animal unavailable")
	ErrDuplicateRequest = errors.New("duplicate request")
)

// eventKeyNamespace anchors the UUIDv5 idempotency keys derived when the
// transport delivers no stable event identifier.
var eventKeyNamespace = uuid.MustParse("8f1c2b44-6a0e-4d7b-9b35-c41c6a1f0d27")

// dedupWindow bounds how long two identical submissions without a transport
// event id count as one event.
const dedupWindow = 30 * time.Second

const defaultPaymentMethod = "cod"

type PlaceOrderInput struct {
	EventID         string
	BuyerTelegramID string
	AnimalID        int64
	Quantity        int
	DeliveryAddress string
	PaymentMethod   string
}

type IntakeService struct {
	db          port.DatabaseRepository
	cache       port.CacheRepository
	logger      *zap.Logger
	notifyQueue chan domain.OrderNotification
}

func NewIntakeService(db port.DatabaseRepository, cache port.CacheRepository, logger *zap.Logger, queueSize int) *IntakeService {
	return &IntakeService{
		db:          db,
		cache:       cache,
		logger:      logger,
		notifyQueue: make(chan domain.OrderNotification, queueSize),
	}
}

// PlaceOrder turns an inbound purchase event into a committed order.
// Exactly one of K concurrent calls for a single-unit animal commits; the
// rest get ErrSoldOut. A redelivered event replays its original
// confirmation without side effects.
func (s *IntakeService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (domain.OrderConfirmation, error) {
	start := time.Now()
	defer func() { metrics.PlaceOrderDuration.Observe(time.Since(start).Seconds()) }()

	if in.BuyerTelegramID == "" || in.AnimalID <= 0 || in.Quantity < 0 {
		return domain.OrderConfirmation{}, ErrValidation
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = defaultPaymentMethod
	}
	eventID := in.EventID
	if eventID == "" {
		eventID = fallbackEventID(in.BuyerTelegramID, in.AnimalID, time.Now())
	}

	// Fast path: the cache has seen this event before. A cache outage falls
	// through; the dedup ledger inside the transaction is the durable check.
	// The marker is provisional until an order commits: every failed attempt
	// releases it, so only committed events stay suppressed.
	idemKey := "intake:" + eventID
	admitted := false
	fresh, err := s.cache.SetIdempotency(ctx, idemKey)
	if err != nil {
		s.logger.Warn("idempotency fast path unavailable",
			zap.String("event_id", eventID), zap.Error(err))
	} else if !fresh {
		metrics.DuplicatesSuppressed.Inc()
		if conf, err := s.cache.GetConfirmation(ctx, eventID); err == nil && conf != nil {
			return *conf, nil
		}
		return domain.OrderConfirmation{}, ErrDuplicateRequest
	} else {
		admitted = true
	}

	buyer, err := s.db.GetBuyerByTelegramID(ctx, in.BuyerTelegramID)
	if err != nil {
		s.releaseAdmission(ctx, idemKey, admitted)
		return domain.OrderConfirmation{}, fmt.Errorf("resolve buyer: %w", err)
	}
	if buyer == nil {
		s.releaseAdmission(ctx, idemKey, admitted)
		return domain.OrderConfirmation{}, ErrUnknownBuyer
	}

	// Cache gate: reject obvious losers before taking a row lock. Seeded
	// from the store at boot; the store stays authoritative below.
	gated := false
	ok, err := s.cache.ReserveAnimal(ctx, in.AnimalID)
	if err != nil {
		s.logger.Warn("availability gate unavailable",
			zap.Int64("animal_id", in.AnimalID), zap.Error(err))
	} else if !ok {
		metrics.SoldOutRejections.Inc()
		s.releaseAdmission(ctx, idemKey, admitted)
		return domain.OrderConfirmation{}, ErrSoldOut
	} else {
		gated = true
	}

	draft := domain.Order{
		BuyerID:         buyer.ID,
		AnimalID:        in.AnimalID,
		Quantity:        in.Quantity,
		DeliveryAddress: in.DeliveryAddress,
		PaymentMethod:   in.PaymentMethod,
		Status:          domain.OrderStatusPending,
	}

	placed, err := s.db.PlaceOrder(ctx, eventID, draft)
	if err != nil {
		switch {
		case errors.Is(err, port.ErrAnimalUnavailable):
			metrics.SoldOutRejections.Inc()
			s.releaseAdmission(ctx, idemKey, admitted)
			return domain.OrderConfirmation{}, ErrSoldOut
		case errors.Is(err, port.ErrDuplicateEvent):
			metrics.DuplicatesSuppressed.Inc()
			return domain.OrderConfirmation{}, ErrDuplicateRequest
		}
		if gated {
			if rbErr := s.cache.ReleaseAnimal(ctx, in.AnimalID); rbErr != nil {
				s.logger.Error("gate rollback failed",
					zap.Int64("animal_id", in.AnimalID), zap.Error(rbErr))
			}
		}
		s.releaseAdmission(ctx, idemKey, admitted)
		return domain.OrderConfirmation{}, fmt.Errorf("place order: %w", err)
	}

	conf := placed.Confirmation
	if placed.Replayed {
		metrics.DuplicatesSuppressed.Inc()
		return conf, nil
	}

	if err := s.cache.CacheConfirmation(ctx, eventID, conf); err != nil {
		s.logger.Warn("confirmation cache write failed",
			zap.String("event_id", eventID), zap.Error(err))
	}

	metrics.OrdersPlaced.Inc()
	s.logger.Info("order placed",
		zap.Int64("order_id", conf.OrderID),
		zap.String("event_id", eventID),
		zap.Int64("animal_id", in.AnimalID),
		zap.Int64("total_price", conf.TotalPrice))

	s.enqueueNotification(domain.OrderNotification{
		OrderID:         conf.OrderID,
		BuyerChatID:     buyer.TelegramID,
		BuyerName:       buyer.Name,
		AnimalKind:      placed.Animal.Kind,
		AnimalSize:      placed.Animal.Size,
		Quantity:        in.Quantity,
		TotalPrice:      conf.TotalPrice,
		DeliveryAddress: in.DeliveryAddress,
		PaymentMethod:   in.PaymentMethod,
	})

	return conf, nil
}

// releaseAdmission clears the provisional idempotency marker after a failed
// attempt. The dedup row rolled back with the transaction, so the marker
// must not outlive it; otherwise a retry of the event would be suppressed
// with nothing committed behind it.
func (s *IntakeService) releaseAdmission(ctx context.Context, key string, admitted bool) {
	if !admitted {
		return
	}
	if err := s.cache.ReleaseIdempotency(ctx, key); err != nil {
		s.logger.Warn("idempotency rollback failed",
			zap.String("key", key), zap.Error(err))
	}
}

// enqueueNotification never blocks the commit path: a full queue drops the
// notification, which is an acceptable loss.
func (s *IntakeService) enqueueNotification(n domain.OrderNotification) {
	select {
	case s.notifyQueue <- n:
	default:
		metrics.NotificationsDropped.Inc()
		s.logger.Warn("notification queue full, dropping",
			zap.Int64("order_id", n.OrderID))
	}
}

func (s *IntakeService) Notifications() <-chan domain.OrderNotification {
	return s.notifyQueue
}

func (s *IntakeService) Close() {
	close(s.notifyQueue)
}

// fallbackEventID derives a deterministic idempotency key for transports
// that carry no event identifier: identical submissions inside one window
// map to one key.
func fallbackEventID(telegramID string, animalID int64, at time.Time) string {
	window := at.UTC().Truncate(dedupWindow)
	seed := fmt.Sprintf("%s|%d|%s", telegramID, animalID, window.Format(time.RFC3339))
	return uuid.NewSHA1(eventKeyNamespace, []byte(seed)).String()
}
