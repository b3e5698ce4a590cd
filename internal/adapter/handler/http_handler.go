package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/betselot/herdstore/internal/core/domain"
	"github.com/betselot/herdstore/internal/core/service"
	"github.com/betselot/herdstore/internal/port"
)

// pipelineTimeout bounds a single intake call so a stuck store connection
// cannot pin the handler forever.
const pipelineTimeout = 5 * time.Second

type IntakeService interface {
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (domain.OrderConfirmation, error)
}

type HTTPHandler struct {
	intake IntakeService
	db     port.DatabaseRepository
	logger *zap.Logger
}

type OrderRequest struct {
	TelegramID      json.Number `json:"telegram_id"`
	AnimalID        int64       `json:"animal_id"`
	Quantity        int         `json:"quantity"`
	DeliveryAddress string      `json:"delivery_address"`
	PaymentMethod   string      `json:"payment_method"`
	EventID         string      `json:"event_id"`
}

type UpsertUserRequest struct {
	TelegramID json.Number `json:"telegram_id"`
	Name       string      `json:"name"`
	Phone      string      `json:"phone"`
	Language   string      `json:"language"`
}

type UserResponse struct {
	ID         int64  `json:"id"`
	TelegramID string `json:"telegram_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Language   string `json:"language"`
}

type AnimalRequest struct {
	Kind        string `json:"type"`
	Size        string `json:"size"`
	WeightRange string `json:"weight_range"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"image_url"`
	Available   *bool  `json:"available"`
}

type AnimalResponse struct {
	ID          int64  `json:"id"`
	Kind        string `json:"type"`
	Size        string `json:"size"`
	WeightRange string `json:"weight_range,omitempty"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"image_url,omitempty"`
	Available   bool   `json:"available"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(intake IntakeService, db port.DatabaseRepository, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{intake: intake, db: db, logger: logger}
}

// PlaceOrder is the direct REST variant of the intake pipeline.
func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pipelineTimeout)
	defer cancel()

	conf, err := h.intake.PlaceOrder(ctx, service.PlaceOrderInput{
		EventID:         req.EventID,
		BuyerTelegramID: req.TelegramID.String(),
		AnimalID:        req.AnimalID,
		Quantity:        req.Quantity,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"

		switch {
		case errors.Is(err, service.ErrValidation):
			status = http.StatusBadRequest
			message = "telegram_id and animal_id required"
		case errors.Is(err, service.ErrUnknownBuyer):
			status = http.StatusBadRequest
			message = "user not found, upsert first"
		case errors.Is(err, service.ErrSoldOut):
			status = http.StatusBadRequest
			message = "animal not available"
		case errors.Is(err, service.ErrDuplicateRequest):
			status = http.StatusConflict
			message = "duplicate request"
		default:
			h.logger.Error("place order failed", zap.Error(err))
		}

		writeJSON(w, status, errorResponse{Error: message})
		return
	}

	writeJSON(w, http.StatusCreated, conf)
}

// UpsertUser idempotently creates or refreshes a buyer profile.
func (h *HTTPHandler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req UpsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TelegramID.String() == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "telegram_id required"})
		return
	}

	buyer, err := h.db.UpsertBuyer(r.Context(), domain.Buyer{
		TelegramID: req.TelegramID.String(),
		Name:       req.Name,
		Phone:      req.Phone,
		Language:   req.Language,
	})
	if err != nil {
		h.logger.Error("upsert buyer failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{
		ID:         buyer.ID,
		TelegramID: buyer.TelegramID,
		Name:       buyer.Name,
		Phone:      buyer.Phone,
		Language:   buyer.Language,
	})
}

// Animals lists the open catalog on GET and seeds a row on POST.
func (h *HTTPHandler) Animals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		animals, err := h.db.ListAvailableAnimals(r.Context())
		if err != nil {
			h.logger.Error("list animals failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}
		out := make([]AnimalResponse, 0, len(animals))
		for _, a := range animals {
			out = append(out, AnimalResponse{
				ID:          a.ID,
				Kind:        a.Kind,
				Size:        a.Size,
				WeightRange: a.WeightRange,
				Price:       a.Price,
				ImageURL:    a.ImageURL,
				Available:   a.Available,
			})
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req AnimalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Kind == "" || req.Price <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "type and price required"})
			return
		}
		available := true
		if req.Available != nil {
			available = *req.Available
		}
		id, err := h.db.CreateAnimal(r.Context(), domain.Animal{
			Kind:        req.Kind,
			Size:        req.Size,
			WeightRange: req.WeightRange,
			Price:       req.Price,
			ImageURL:    req.ImageURL,
			Available:   available,
		})
		if err != nil {
			h.logger.Error("create animal failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
