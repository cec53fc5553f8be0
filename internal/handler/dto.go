package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/plantshop/internal/model"
)

// Денежные суммы отдаются строкой с двумя знаками после запятой.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

type userResponse struct {
	ID    uuid.UUID  `json:"id"`
	Email string     `json:"email"`
	Name  string     `json:"name"`
	Role  model.Role `json:"role"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// supplyResponse описывает поставку. Контакты поставщика заполняются только
// в ответах администратору.
type supplyResponse struct {
	ID           uuid.UUID    `json:"id"`
	Plant        *model.Plant `json:"plant,omitempty"`
	TotalCount   int          `json:"totalCount"`
	CurrentCount int          `json:"currentCount"`
	Price        string       `json:"price"`
	InSale       bool         `json:"inSale"`
	*model.Supplier
	ExpirationDate string `json:"expirationDate"`
	DeliveredAt    string `json:"deliveredAt"`
}

func newCatalogSupplyResponse(s *model.Supply) supplyResponse {
	return supplyResponse{
		ID:             s.ID,
		Plant:          s.Plant,
		TotalCount:     s.TotalCount,
		CurrentCount:   s.CurrentCount,
		Price:          money(s.Price),
		InSale:         s.InSale,
		ExpirationDate: s.ExpirationDate.Format(time.DateOnly),
		DeliveredAt:    formatTime(s.DeliveredAt),
	}
}

func newSupplyResponse(s *model.Supply) supplyResponse {
	resp := newCatalogSupplyResponse(s)
	supplier := s.Supplier
	resp.Supplier = &supplier
	return resp
}

func newSupplyResponses(supplies []model.Supply, view func(*model.Supply) supplyResponse) []supplyResponse {
	resp := make([]supplyResponse, 0, len(supplies))
	for i := range supplies {
		resp = append(resp, view(&supplies[i]))
	}
	return resp
}

type cartLineResponse struct {
	Supply   supplyResponse `json:"supply"`
	Count    int            `json:"count"`
	Subtotal string         `json:"subtotal"`
}

type cartResponse struct {
	Cart  []cartLineResponse `json:"cart"`
	Total string             `json:"total"`
}

func newCartResponse(c *model.Cart) cartResponse {
	resp := cartResponse{
		Cart:  make([]cartLineResponse, 0, len(c.Lines)),
		Total: money(c.Total),
	}
	for _, line := range c.Lines {
		resp.Cart = append(resp.Cart, cartLineResponse{
			Supply:   newCatalogSupplyResponse(line.Supply),
			Count:    line.Quantity,
			Subtotal: money(line.Subtotal),
		})
	}
	return resp
}

type stockStatResponse struct {
	PlantID   uuid.UUID `json:"plantId"`
	PlantName string    `json:"plantName"`
	Count     int       `json:"count"`
}

type orderItemResponse struct {
	ID       uuid.UUID       `json:"id"`
	Supply   *supplyResponse `json:"supply,omitempty"`
	SupplyID uuid.UUID       `json:"supplyId"`
	Quantity int             `json:"quantity"`
	Subtotal string          `json:"subtotal"`
}

type statusResponse struct {
	ID        uuid.UUID         `json:"id"`
	Status    model.OrderStatus `json:"status"`
	CreatedAt string            `json:"createdAt"`
}

func newStatusResponses(entries []model.StatusEntry) []statusResponse {
	resp := make([]statusResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, statusResponse{ID: e.ID, Status: e.Status, CreatedAt: formatTime(e.CreatedAt)})
	}
	return resp
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"userId"`
	DeliveryAddress string              `json:"deliveryAddress"`
	PaymentType     model.PaymentType   `json:"paymentType"`
	TotalPrice      string              `json:"totalPrice"`
	CurrentStatus   model.OrderStatus   `json:"currentStatus"`
	CreatedAt       string              `json:"createdAt"`
	CompletedAt     *string             `json:"completedAt,omitempty"`
	OrderItems      []orderItemResponse `json:"orderItems"`
	OrderStatuses   []statusResponse    `json:"orderStatuses"`
}

func newOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		DeliveryAddress: o.DeliveryAddress,
		PaymentType:     o.PaymentType,
		TotalPrice:      money(o.TotalPrice),
		CurrentStatus:   o.CurrentStatus,
		CreatedAt:       formatTime(o.CreatedAt),
		OrderItems:      make([]orderItemResponse, 0, len(o.Items)),
		OrderStatuses:   newStatusResponses(o.History),
	}
	if o.CompletedAt != nil {
		completed := formatTime(*o.CompletedAt)
		resp.CompletedAt = &completed
	}

	for _, item := range o.Items {
		ir := orderItemResponse{
			ID:       item.ID,
			SupplyID: item.SupplyID,
			Quantity: item.Quantity,
			Subtotal: money(item.Subtotal),
		}
		if item.Supply != nil {
			s := newCatalogSupplyResponse(item.Supply)
			ir.Supply = &s
		}
		resp.OrderItems = append(resp.OrderItems, ir)
	}
	return resp
}

func newOrderResponses(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, newOrderResponse(&orders[i]))
	}
	return resp
}
