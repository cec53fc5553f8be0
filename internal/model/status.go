package model

// OrderStatus описывает статус заказа в процессе выполнения.
type OrderStatus string

const (
	OrderStatusCreated    OrderStatus = "CREATED"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusPacked     OrderStatus = "PACKED"
	OrderStatusInDelivery OrderStatus = "IN_DELIVERY"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCanceled   OrderStatus = "CANCELED"
)

// Valid сообщает, является ли значение известным статусом.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusInProgress, OrderStatusPacked,
		OrderStatusInDelivery, OrderStatusDelivered, OrderStatusPaid,
		OrderStatusCompleted, OrderStatusCanceled:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}
