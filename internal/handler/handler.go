// Package handler содержит HTTP-обработчики API магазина растений.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/plantshop/internal/middleware"
	"github.com/mmeshcher/plantshop/internal/model"
	"github.com/mmeshcher/plantshop/internal/repository"
	"github.com/mmeshcher/plantshop/internal/service"
	"github.com/mmeshcher/plantshop/internal/validation"
	"github.com/mmeshcher/plantshop/internal/workflow"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, email, name, password string) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)

	CreateOrder(ctx context.Context, buyerID uuid.UUID, req service.CreateOrderRequest) (*model.Order, error)
	GetOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]model.Order, error)
	GetAllOrders(ctx context.Context) ([]model.Order, error)
	GetOrderHistory(ctx context.Context, orderID uuid.UUID, viewer *model.User) ([]model.StatusEntry, error)
	Transition(ctx context.Context, t workflow.Transition, orderID, actorID uuid.UUID) (*model.Order, error)

	CreatePlant(ctx context.Context, name, description string) (*model.Plant, error)
	CreateSupply(ctx context.Context, req service.CreateSupplyRequest) (*model.Supply, error)
	GetSupply(ctx context.Context, id uuid.UUID) (*model.Supply, error)
	GetSupplyInSale(ctx context.Context, id uuid.UUID) (*model.Supply, error)
	GetSuppliesInSale(ctx context.Context) ([]model.Supply, error)
	GetAllSupplies(ctx context.Context) ([]model.Supply, error)
	GetStockStatistics(ctx context.Context) ([]model.StockStat, error)
	QuoteCart(ctx context.Context, lines []service.LineRequest) (*model.Cart, error)
	PutInSale(ctx context.Context, id uuid.UUID) (*model.Supply, error)
	RemoveFromSale(ctx context.Context, id uuid.UUID) (*model.Supply, error)
	UpdateSupplyPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*model.Supply, error)
	UpdateSupplier(ctx context.Context, id uuid.UUID, sup model.Supplier) (*model.Supply, error)
	UpdateSupplyExpiration(ctx context.Context, id uuid.UUID, date time.Time) (*model.Supply, error)
}

// Handler реализует HTTP-обработчики API магазина растений.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", zap.Error(err))
	}
}

// writeError переводит ошибку бизнес-логики в HTTP-статус. Непредвиденные ошибки
// пишутся в лог, клиент видит только текст статуса.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, validation.ErrInvalid),
		errors.Is(err, workflow.ErrInvalidTransition):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrSupplyNotFound),
		errors.Is(err, repository.ErrPlantNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrInsufficientStock),
		errors.Is(err, repository.ErrConflictingSaleState),
		errors.Is(err, repository.ErrUserExists):
		status = http.StatusConflict
	case errors.Is(err, repository.ErrTemporary):
		w.Header().Set("Retry-After", "1")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	default:
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Error(w, err.Error(), status)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return validation.Errorf("malformed request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, validation.Errorf("malformed id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

// currentUser возвращает пользователя, загруженного middleware.RequireRole.
func currentUser(r *http.Request) (*model.User, bool) {
	return middleware.UserFromContext(r.Context())
}
