// Package model содержит доменные сущности магазина растений.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role описывает роль пользователя.
type Role string

const (
	RoleBuyer Role = "BUYER"
	RoleAdmin Role = "ADMIN"
)

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// Plant описывает позицию каталога, на которую ссылаются поставки.
type Plant struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Supplier содержит контактные данные поставщика.
type Supplier struct {
	Name    string `json:"supplierName"`
	Phone   string `json:"supplierPhone"`
	Email   string `json:"supplierEmail"`
	Address string `json:"supplierAddress"`
}

// Supply описывает складскую поставку растения: остаток, цену и признак продажи.
// CurrentCount всегда находится в пределах [0, TotalCount].
type Supply struct {
	ID             uuid.UUID
	PlantID        uuid.UUID
	Plant          *Plant
	TotalCount     int
	CurrentCount   int
	Price          decimal.Decimal
	InSale         bool
	Supplier       Supplier
	ExpirationDate time.Time
	DeliveredAt    time.Time
}

// StockStat содержит суммарный остаток поставок одного растения.
type StockStat struct {
	PlantID   uuid.UUID
	PlantName string
	Count     int
}

// CartLine описывает позицию корзины, оценённую по текущей цене поставки.
type CartLine struct {
	Supply   *Supply
	Quantity int
	Subtotal decimal.Decimal
}

// Cart содержит оценку корзины. В неё попадают только поставки в продаже.
type Cart struct {
	Lines []CartLine
	Total decimal.Decimal
}

// PaymentType задаёт способ оплаты. Оплата не проводится, только фиксируется.
type PaymentType string

const (
	PaymentCash PaymentType = "CASH"
	PaymentCard PaymentType = "CARD"
)

// Valid сообщает, известен ли способ оплаты.
func (p PaymentType) Valid() bool {
	return p == PaymentCash || p == PaymentCard
}

// OrderItem описывает позицию заказа. Subtotal фиксируется при создании заказа.
type OrderItem struct {
	ID       uuid.UUID
	SupplyID uuid.UUID
	Supply   *Supply
	Quantity int
	Subtotal decimal.Decimal
}

// StatusEntry описывает запись журнала статусов заказа. Записи только добавляются.
type StatusEntry struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Status    OrderStatus
	CreatedAt time.Time
}

// Order описывает заказ покупателя вместе с позициями и историей статусов.
type Order struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	DeliveryAddress string
	PaymentType     PaymentType
	TotalPrice      decimal.Decimal
	CurrentStatus   OrderStatus
	CreatedAt       time.Time
	CompletedAt     *time.Time
	Items           []OrderItem
	History         []StatusEntry
}

// LastStatus возвращает статус последней записи истории.
func (o *Order) LastStatus() (OrderStatus, bool) {
	if len(o.History) == 0 {
		return "", false
	}
	return o.History[len(o.History)-1].Status, true
}

// ReceiptStatus описывает состояние доставки чека.
type ReceiptStatus string

const (
	ReceiptPending ReceiptStatus = "PENDING"
	ReceiptSent    ReceiptStatus = "SENT"
	ReceiptFailed  ReceiptStatus = "FAILED"
)

// Receipt описывает запись исходящей очереди чеков об оплате.
type Receipt struct {
	ID        int64
	OrderID   uuid.UUID
	UserID    uuid.UUID
	Status    ReceiptStatus
	Attempts  int
	CreatedAt time.Time
}
