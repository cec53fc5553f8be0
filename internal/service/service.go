// Package service реализует бизнес-логику магазина растений: оформление заказов,
// переходы статусов заказа и учёт складских остатков.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/plantshop/internal/metrics"
	"github.com/mmeshcher/plantshop/internal/model"
	"github.com/mmeshcher/plantshop/internal/receipt"
	"github.com/mmeshcher/plantshop/internal/repository"
)

var (
	// ErrNoSuppliesFound возвращается, если не найдена ни одна из запрошенных поставок.
	ErrNoSuppliesFound = fmt.Errorf("%w: none of the requested supplies exist", repository.ErrSupplyNotFound)
	// ErrUnknownSupply возвращается, если часть запрошенных поставок не найдена.
	ErrUnknownSupply = fmt.Errorf("%w: unknown supply in order", repository.ErrSupplyNotFound)
	// ErrInvalidCredentials возвращается при неверной паре почта/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error

	CreateUser(ctx context.Context, u *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)

	CreatePlant(ctx context.Context, p *model.Plant) error
	GetPlant(ctx context.Context, id uuid.UUID) (*model.Plant, error)

	CreateSupply(ctx context.Context, s *model.Supply) error
	GetSupply(ctx context.Context, id uuid.UUID) (*model.Supply, error)
	GetSuppliesByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Supply, error)
	GetSupplyInSale(ctx context.Context, id uuid.UUID) (*model.Supply, error)
	GetSuppliesInSale(ctx context.Context) ([]model.Supply, error)
	GetAllSupplies(ctx context.Context) ([]model.Supply, error)
	GetStockStatistics(ctx context.Context) ([]model.StockStat, error)
	UpdateSupplyPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*model.Supply, error)
	UpdateSupplier(ctx context.Context, id uuid.UUID, sup model.Supplier) (*model.Supply, error)
	UpdateSupplyExpiration(ctx context.Context, id uuid.UUID, date time.Time) (*model.Supply, error)
	SetSupplyInSale(ctx context.Context, id uuid.UUID, enabled bool) (*model.Supply, error)

	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	GetAllOrders(ctx context.Context) ([]model.Order, error)
	GetOrderHistory(ctx context.Context, orderID uuid.UUID, ownerID *uuid.UUID) ([]model.StatusEntry, error)

	GetPendingReceipts(ctx context.Context, limit int) ([]model.Receipt, error)
	MarkReceiptSent(ctx context.Context, id int64) error
	MarkReceiptFailed(ctx context.Context, id int64, maxAttempts int) error
}

// ReceiptSender отправляет чек во внешний сервис документов.
type ReceiptSender interface {
	Send(ctx context.Context, r receipt.Request) error
}

// Options содержит необязательные зависимости сервиса.
type Options struct {
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	AdminEmails []string
}

// Service содержит бизнес-логику магазина.
type Service struct {
	repo     Repository
	receipts ReceiptSender
	logger   *zap.Logger
	metrics  *metrics.Metrics
	admins   map[string]struct{}
	now      func() time.Time
}

// NewService создаёт новый сервис. receipts может быть nil, тогда чеки копятся в очереди.
func NewService(repo Repository, receipts ReceiptSender, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	admins := make(map[string]struct{}, len(opts.AdminEmails))
	for _, email := range opts.AdminEmails {
		if email = normalizeEmail(email); email != "" {
			admins[email] = struct{}{}
		}
	}

	return &Service{
		repo:     repo,
		receipts: receipts,
		logger:   logger,
		metrics:  opts.Metrics,
		admins:   admins,
		now:      time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
