package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/plantshop/internal/model"
)

// Tx описывает операции, выполняемые внутри одной транзакции хранилища.
type Tx interface {
	// CreateOrder сохраняет заказ и его позиции.
	CreateOrder(ctx context.Context, order *model.Order) error
	// LockOrder блокирует строку заказа до конца транзакции. Если ownerID задан,
	// заказ другого пользователя неотличим от отсутствующего.
	LockOrder(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, completedAt *time.Time) error
	AppendStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus) (model.StatusEntry, error)
	DebitSupply(ctx context.Context, supplyID uuid.UUID, quantity int) (*model.Supply, error)
	EnqueueReceipt(ctx context.Context, orderID, userID uuid.UUID) error
}

type pgTx struct {
	tx pgx.Tx
}

const orderColumns = `o.id, o.user_id, o.delivery_address, o.payment_type, o.total_cents,
	o.current_status, o.created_at, o.completed_at`

func scanOrder(row scanner) (*model.Order, error) {
	var (
		o           model.Order
		paymentType string
		status      string
		totalCents  int64
	)
	err := row.Scan(&o.ID, &o.UserID, &o.DeliveryAddress, &paymentType, &totalCents,
		&status, &o.CreatedAt, &o.CompletedAt)
	if err != nil {
		return nil, err
	}
	o.PaymentType = model.PaymentType(paymentType)
	o.CurrentStatus = model.OrderStatus(status)
	o.TotalPrice = fromCents(totalCents)
	return &o, nil
}

// CreateOrder сохраняет заказ и его позиции в текущей транзакции.
func (t *pgTx) CreateOrder(ctx context.Context, o *model.Order) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO orders (id, user_id, delivery_address, payment_type, total_cents, current_status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		o.ID, o.UserID, o.DeliveryAddress, string(o.PaymentType), toCents(o.TotalPrice), string(o.CurrentStatus),
	).Scan(&o.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("%w: %s", ErrUserNotFound, o.UserID)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range o.Items {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, supply_id, position, quantity, subtotal_cents)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			item.ID, o.ID, item.SupplyID, i, item.Quantity, toCents(item.Subtotal),
		)
		if err != nil {
			if pgErrorCode(err) == pgerrcode.ForeignKeyViolation {
				return fmt.Errorf("%w: %s", ErrSupplyNotFound, item.SupplyID)
			}
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

// LockOrder читает заказ с позициями и историей, блокируя его строку.
func (t *pgTx) LockOrder(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) (*model.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o
		 WHERE o.id = $1 AND ($2::uuid IS NULL OR o.user_id = $2)
		 FOR UPDATE`,
		id, ownerID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	orders := []model.Order{*o}
	if err := loadOrderDetails(ctx, t.tx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// UpdateOrderStatus меняет текущий статус заказа. completedAt записывается, только если задан.
func (t *pgTx) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, completedAt *time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE orders SET current_status = $2, completed_at = COALESCE($3, completed_at) WHERE id = $1`,
		id, string(status), completedAt,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return nil
}

// AppendStatus добавляет запись в журнал статусов заказа.
func (t *pgTx) AppendStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus) (model.StatusEntry, error) {
	entry := model.StatusEntry{
		ID:      uuid.New(),
		OrderID: orderID,
		Status:  status,
	}
	err := t.tx.QueryRow(ctx,
		`INSERT INTO order_statuses (id, order_id, status) VALUES ($1, $2, $3) RETURNING created_at`,
		entry.ID, orderID, string(status),
	).Scan(&entry.CreatedAt)
	if err != nil {
		return model.StatusEntry{}, fmt.Errorf("append order status: %w", err)
	}
	return entry, nil
}

// EnqueueReceipt ставит чек об оплате в исходящую очередь.
func (t *pgTx) EnqueueReceipt(ctx context.Context, orderID, userID uuid.UUID) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO receipt_outbox (order_id, user_id, status) VALUES ($1, $2, $3)`,
		orderID, userID, string(model.ReceiptPending),
	)
	if err != nil {
		return fmt.Errorf("enqueue receipt: %w", err)
	}
	return nil
}

// GetOrder возвращает заказ с позициями и историей.
func (r *PostgresRepository) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var res *model.Order
	err := r.withRetry(ctx, func(ctx context.Context) error {
		o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
			}
			return fmt.Errorf("get order: %w", err)
		}

		orders := []model.Order{*o}
		if err := loadOrderDetails(ctx, r.pool, orders); err != nil {
			return err
		}
		res = &orders[0]
		return nil
	})
	return res, err
}

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	return r.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.user_id = $1 ORDER BY o.created_at DESC`,
		userID,
	)
}

// GetAllOrders возвращает все заказы, новые первыми.
func (r *PostgresRepository) GetAllOrders(ctx context.Context) ([]model.Order, error) {
	return r.listOrders(ctx, `SELECT `+orderColumns+` FROM orders o ORDER BY o.created_at DESC`)
}

func (r *PostgresRepository) listOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	var res []model.Order
	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("select orders: %w", err)
		}
		defer rows.Close()

		var orders []model.Order
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return fmt.Errorf("scan order: %w", err)
			}
			orders = append(orders, *o)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		rows.Close()

		if err := loadOrderDetails(ctx, r.pool, orders); err != nil {
			return err
		}
		res = orders
		return nil
	})
	return res, err
}

// GetOrderHistory возвращает журнал статусов заказа по возрастанию времени.
// Если ownerID задан, чужой заказ считается отсутствующим.
func (r *PostgresRepository) GetOrderHistory(ctx context.Context, orderID uuid.UUID, ownerID *uuid.UUID) ([]model.StatusEntry, error) {
	var res []model.StatusEntry
	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx,
			`SELECT st.id, st.order_id, st.status, st.created_at
			 FROM order_statuses st
			 JOIN orders o ON o.id = st.order_id
			 WHERE o.id = $1 AND ($2::uuid IS NULL OR o.user_id = $2)
			 ORDER BY st.seq`,
			orderID, ownerID,
		)
		if err != nil {
			return fmt.Errorf("select order history: %w", err)
		}

		entries, err := collectStatusEntries(rows)
		if err != nil {
			return err
		}
		// У существующего заказа всегда есть запись CREATED.
		if len(entries) == 0 {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		res = entries
		return nil
	})
	return res, err
}

func collectStatusEntries(rows pgx.Rows) ([]model.StatusEntry, error) {
	defer rows.Close()

	var res []model.StatusEntry
	for rows.Next() {
		var (
			e      model.StatusEntry
			status string
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order status: %w", err)
		}
		e.Status = model.OrderStatus(status)
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// loadOrderDetails дополняет заказы позициями (с поставкой и растением) и историей статусов.
func loadOrderDetails(ctx context.Context, q querier, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID)
		index[o.ID] = i
	}

	rows, err := q.Query(ctx,
		`SELECT `+supplyColumns+`, oi.order_id, oi.id, oi.quantity, oi.subtotal_cents
		 FROM order_items oi
		 JOIN supplies s ON s.id = oi.supply_id
		 JOIN plants p ON p.id = s.plant_id
		 WHERE oi.order_id = ANY($1)
		 ORDER BY oi.order_id, oi.position`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID       uuid.UUID
			item          model.OrderItem
			subtotalCents int64
		)
		supply, err := scanSupply(rows, &orderID, &item.ID, &item.Quantity, &subtotalCents)
		if err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		item.SupplyID = supply.ID
		item.Supply = supply
		item.Subtotal = fromCents(subtotalCents)

		o := &orders[index[orderID]]
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	statusRows, err := q.Query(ctx,
		`SELECT id, order_id, status, created_at FROM order_statuses WHERE order_id = ANY($1) ORDER BY seq`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("select order statuses: %w", err)
	}

	entries, err := collectStatusEntries(statusRows)
	if err != nil {
		return err
	}
	for _, e := range entries {
		o := &orders[index[e.OrderID]]
		o.History = append(o.History, e)
	}

	return nil
}
