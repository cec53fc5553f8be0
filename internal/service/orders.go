package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/plantshop/internal/model"
	"github.com/mmeshcher/plantshop/internal/repository"
	"github.com/mmeshcher/plantshop/internal/validation"
)

// LineRequest описывает запрошенную позицию заказа.
type LineRequest struct {
	SupplyID uuid.UUID
	Quantity int
}

// CreateOrderRequest содержит данные для оформления заказа.
type CreateOrderRequest struct {
	DeliveryAddress string
	PaymentType     model.PaymentType
	Items           []LineRequest
}

// validateLines проверяет количество в позициях и отсутствие повторов поставок.
func validateLines(lines []LineRequest) error {
	if len(lines) == 0 {
		return validation.Errorf("order must contain at least one item")
	}

	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, line := range lines {
		if err := validation.Quantity(line.Quantity); err != nil {
			return err
		}
		if _, dup := seen[line.SupplyID]; dup {
			return validation.Errorf("supply %s is listed more than once", line.SupplyID)
		}
		seen[line.SupplyID] = struct{}{}
	}
	return nil
}

func validateOrderRequest(req CreateOrderRequest) error {
	if validation.IsBlank(req.DeliveryAddress) {
		return validation.Errorf("delivery address is required")
	}
	if !req.PaymentType.Valid() {
		return validation.Errorf("unknown payment type %q", req.PaymentType)
	}
	return validateLines(req.Items)
}

// suppliesFor загружает поставки позиций одним запросом.
func (s *Service) suppliesFor(ctx context.Context, lines []LineRequest) (map[uuid.UUID]*model.Supply, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.SupplyID)
	}

	supplies, err := s.repo.GetSuppliesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	res := make(map[uuid.UUID]*model.Supply, len(supplies))
	for i := range supplies {
		res[supplies[i].ID] = &supplies[i]
	}
	return res, nil
}

func subtotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// CreateOrder оформляет заказ покупателя. Цены берутся из поставок на момент
// оформления и дальше не пересчитываются. Заказ, его позиции и первая запись
// журнала (CREATED) сохраняются одной транзакцией.
func (s *Service) CreateOrder(ctx context.Context, buyerID uuid.UUID, req CreateOrderRequest) (*model.Order, error) {
	if err := validateOrderRequest(req); err != nil {
		return nil, err
	}

	bySupply, err := s.suppliesFor(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if len(bySupply) == 0 {
		return nil, ErrNoSuppliesFound
	}

	order := &model.Order{
		ID:              uuid.New(),
		UserID:          buyerID,
		DeliveryAddress: req.DeliveryAddress,
		PaymentType:     req.PaymentType,
		CurrentStatus:   model.OrderStatusCreated,
		TotalPrice:      decimal.Zero,
		Items:           make([]model.OrderItem, 0, len(req.Items)),
	}

	for _, line := range req.Items {
		supply, ok := bySupply[line.SupplyID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSupply, line.SupplyID)
		}

		sub := subtotal(supply.Price, line.Quantity)
		order.Items = append(order.Items, model.OrderItem{
			ID:       uuid.New(),
			SupplyID: supply.ID,
			Supply:   supply,
			Quantity: line.Quantity,
			Subtotal: sub,
		})
		order.TotalPrice = order.TotalPrice.Add(sub)
	}

	err = s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		entry, err := tx.AppendStatus(ctx, order.ID, model.OrderStatusCreated)
		if err != nil {
			return err
		}
		order.History = []model.StatusEntry{entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.Stringer("orderID", order.ID),
		zap.Stringer("buyerID", buyerID),
		zap.Stringer("total", order.TotalPrice),
	)
	return order, nil
}

// GetOrdersByBuyer возвращает заказы покупателя с позициями и историей.
func (s *Service) GetOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, buyerID)
}

// GetAllOrders возвращает все заказы с позициями и историей.
func (s *Service) GetAllOrders(ctx context.Context) ([]model.Order, error) {
	return s.repo.GetAllOrders(ctx)
}

// GetOrderHistory возвращает журнал статусов заказа. Покупатель видит только свои
// заказы, чужой заказ для него не существует.
func (s *Service) GetOrderHistory(ctx context.Context, orderID uuid.UUID, viewer *model.User) ([]model.StatusEntry, error) {
	var owner *uuid.UUID
	if viewer.Role != model.RoleAdmin {
		owner = &viewer.ID
	}
	return s.repo.GetOrderHistory(ctx, orderID, owner)
}
