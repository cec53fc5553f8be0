package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/plantshop/internal/model"
	"github.com/mmeshcher/plantshop/internal/validation"
)

// CreateSupplyRequest содержит данные новой поставки.
type CreateSupplyRequest struct {
	PlantID        uuid.UUID
	Count          int
	Price          decimal.Decimal
	Supplier       model.Supplier
	ExpirationDate time.Time
}

func validateSupplyRequest(req CreateSupplyRequest) error {
	if err := validation.SupplyCount(req.Count); err != nil {
		return err
	}
	if err := validation.Price(req.Price); err != nil {
		return err
	}
	if validation.IsBlank(req.Supplier.Name) || validation.IsBlank(req.Supplier.Address) {
		return validation.Errorf("supplier name and address are required")
	}
	if !validation.IsValidPhone(req.Supplier.Phone) {
		return validation.Errorf("invalid supplier phone")
	}
	if !validation.IsValidEmail(req.Supplier.Email) {
		return validation.Errorf("invalid supplier email")
	}
	if req.ExpirationDate.IsZero() {
		return validation.Errorf("expiration date is required")
	}
	return nil
}

// CreatePlant добавляет растение в каталог.
func (s *Service) CreatePlant(ctx context.Context, name, description string) (*model.Plant, error) {
	if validation.IsBlank(name) {
		return nil, validation.Errorf("plant name is required")
	}

	p := &model.Plant{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
	}
	if err := s.repo.CreatePlant(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateSupply оприходует новую поставку. Растение должно существовать в каталоге.
// Поставка создаётся снятой с продажи.
func (s *Service) CreateSupply(ctx context.Context, req CreateSupplyRequest) (*model.Supply, error) {
	if err := validateSupplyRequest(req); err != nil {
		return nil, err
	}

	plant, err := s.repo.GetPlant(ctx, req.PlantID)
	if err != nil {
		return nil, err
	}

	supply := &model.Supply{
		ID:             uuid.New(),
		PlantID:        plant.ID,
		Plant:          plant,
		TotalCount:     req.Count,
		CurrentCount:   req.Count,
		Price:          req.Price,
		Supplier:       req.Supplier,
		ExpirationDate: req.ExpirationDate,
	}
	if err := s.repo.CreateSupply(ctx, supply); err != nil {
		return nil, err
	}
	return supply, nil
}

// GetSupply возвращает поставку независимо от признака продажи.
func (s *Service) GetSupply(ctx context.Context, id uuid.UUID) (*model.Supply, error) {
	return s.repo.GetSupply(ctx, id)
}

// GetSupplyInSale возвращает поставку, доступную для покупки.
func (s *Service) GetSupplyInSale(ctx context.Context, id uuid.UUID) (*model.Supply, error) {
	return s.repo.GetSupplyInSale(ctx, id)
}

// GetAllSupplies возвращает все поставки склада.
func (s *Service) GetAllSupplies(ctx context.Context) ([]model.Supply, error) {
	return s.repo.GetAllSupplies(ctx)
}

// GetStockStatistics возвращает остатки на складе по растениям.
func (s *Service) GetStockStatistics(ctx context.Context) ([]model.StockStat, error) {
	return s.repo.GetStockStatistics(ctx)
}

// QuoteCart оценивает корзину по текущим ценам. Поставки, которых нет в продаже,
// в оценку не попадают. Остатки не резервируются.
func (s *Service) QuoteCart(ctx context.Context, lines []LineRequest) (*model.Cart, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	bySupply, err := s.suppliesFor(ctx, lines)
	if err != nil {
		return nil, err
	}

	cart := &model.Cart{
		Lines: make([]model.CartLine, 0, len(lines)),
		Total: decimal.Zero,
	}
	for _, line := range lines {
		supply, ok := bySupply[line.SupplyID]
		if !ok || !supply.InSale {
			continue
		}

		sub := subtotal(supply.Price, line.Quantity)
		cart.Lines = append(cart.Lines, model.CartLine{
			Supply:   supply,
			Quantity: line.Quantity,
			Subtotal: sub,
		})
		cart.Total = cart.Total.Add(sub)
	}
	return cart, nil
}

// GetSuppliesInSale возвращает поставки, доступные для покупки.
func (s *Service) GetSuppliesInSale(ctx context.Context) ([]model.Supply, error) {
	return s.repo.GetSuppliesInSale(ctx)
}

// PutInSale выставляет поставку в продажу.
func (s *Service) PutInSale(ctx context.Context, id uuid.UUID) (*model.Supply, error) {
	return s.repo.SetSupplyInSale(ctx, id, true)
}

// RemoveFromSale снимает поставку с продажи.
func (s *Service) RemoveFromSale(ctx context.Context, id uuid.UUID) (*model.Supply, error) {
	return s.repo.SetSupplyInSale(ctx, id, false)
}

// UpdateSupplyPrice меняет цену поставки. Суммы оформленных заказов не меняются.
func (s *Service) UpdateSupplyPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*model.Supply, error) {
	if err := validation.Price(price); err != nil {
		return nil, err
	}
	return s.repo.UpdateSupplyPrice(ctx, id, price)
}

// UpdateSupplier меняет контакты поставщика. Незаполненные поля не меняются.
func (s *Service) UpdateSupplier(ctx context.Context, id uuid.UUID, sup model.Supplier) (*model.Supply, error) {
	if sup == (model.Supplier{}) {
		return nil, validation.Errorf("nothing to update")
	}
	if sup.Phone != "" && !validation.IsValidPhone(sup.Phone) {
		return nil, validation.Errorf("invalid supplier phone")
	}
	if sup.Email != "" && !validation.IsValidEmail(sup.Email) {
		return nil, validation.Errorf("invalid supplier email")
	}
	return s.repo.UpdateSupplier(ctx, id, sup)
}

// UpdateSupplyExpiration меняет срок годности поставки.
func (s *Service) UpdateSupplyExpiration(ctx context.Context, id uuid.UUID, date time.Time) (*model.Supply, error) {
	if date.IsZero() {
		return nil, validation.Errorf("expiration date is required")
	}
	return s.repo.UpdateSupplyExpiration(ctx, id, date)
}
