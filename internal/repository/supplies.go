package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/plantshop/internal/model"
)

const supplyColumns = `s.id, s.plant_id, s.total_count, s.current_count, s.price_cents, s.in_sale,
	s.supplier_name, s.supplier_phone, s.supplier_email, s.supplier_address,
	s.expiration_date, s.delivered_at,
	p.id, p.name, p.description, p.created_at`

const supplyFrom = `FROM supplies s JOIN plants p ON p.id = s.plant_id`

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func scanSupply(row scanner, extra ...any) (*model.Supply, error) {
	var (
		s     model.Supply
		p     model.Plant
		cents int64
	)
	dest := append([]any{
		&s.ID, &s.PlantID, &s.TotalCount, &s.CurrentCount, &cents, &s.InSale,
		&s.Supplier.Name, &s.Supplier.Phone, &s.Supplier.Email, &s.Supplier.Address,
		&s.ExpirationDate, &s.DeliveredAt,
		&p.ID, &p.Name, &p.Description, &p.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	s.Price = fromCents(cents)
	s.Plant = &p
	return &s, nil
}

func collectSupplies(rows pgx.Rows) ([]model.Supply, error) {
	defer rows.Close()

	var res []model.Supply
	for rows.Next() {
		s, err := scanSupply(rows)
		if err != nil {
			return nil, fmt.Errorf("scan supply: %w", err)
		}
		res = append(res, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// CreateSupply сохраняет новую поставку. Остаток равен полученному количеству.
func (r *PostgresRepository) CreateSupply(ctx context.Context, s *model.Supply) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		err := r.pool.QueryRow(ctx,
			`INSERT INTO supplies (id, plant_id, total_count, current_count, price_cents, in_sale,
				supplier_name, supplier_phone, supplier_email, supplier_address, expiration_date)
			 VALUES ($1, $2, $3, $3, $4, FALSE, $5, $6, $7, $8, $9)
			 RETURNING delivered_at`,
			s.ID, s.PlantID, s.TotalCount, toCents(s.Price),
			s.Supplier.Name, s.Supplier.Phone, s.Supplier.Email, s.Supplier.Address, s.ExpirationDate,
		).Scan(&s.DeliveredAt)
		if err != nil {
			if pgErrorCode(err) == pgerrcode.ForeignKeyViolation {
				return fmt.Errorf("%w: %s", ErrPlantNotFound, s.PlantID)
			}
			return fmt.Errorf("create supply: %w", err)
		}
		s.CurrentCount = s.TotalCount
		s.InSale = false
		return nil
	})
}

// GetSupply возвращает поставку вместе с растением.
func (r *PostgresRepository) GetSupply(ctx context.Context, id uuid.UUID) (*model.Supply, error) {
	var res *model.Supply
	err := r.withRetry(ctx, func(ctx context.Context) error {
		s, err := scanSupply(r.pool.QueryRow(ctx, `SELECT `+supplyColumns+` `+supplyFrom+` WHERE s.id = $1`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrSupplyNotFound
			}
			return fmt.Errorf("get supply: %w", err)
		}
		res = s
		return nil
	})
	return res, err
}

// GetSuppliesByIDs возвращает найденные поставки. Неизвестные идентификаторы пропускаются,
// проверка полноты результата остаётся за вызывающим.
func (r *PostgresRepository) GetSuppliesByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Supply, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var res []model.Supply
	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+supplyColumns+` `+supplyFrom+` WHERE s.id = ANY($1)`,
			ids,
		)
		if err != nil {
			return fmt.Errorf("select supplies: %w", err)
		}
		res, err = collectSupplies(rows)
		return err
	})
	return res, err
}

// GetSuppliesInSale возвращает поставки, выставленные в продажу.
func (r *PostgresRepository) GetSuppliesInSale(ctx context.Context) ([]model.Supply, error) {
	var res []model.Supply
	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+supplyColumns+` `+supplyFrom+` WHERE s.in_sale ORDER BY p.name, s.delivered_at`,
		)
		if err != nil {
			return fmt.Errorf("select supplies in sale: %w", err)
		}
		res, err = collectSupplies(rows)
		return err
	})
	return res, err
}

// GetSupplyInSale возвращает поставку, только если она выставлена в продажу.
// Снятая с продажи поставка неотличима от отсутствующей.
func (r *PostgresRepository) GetSupplyInSale(ctx context.Context, id uuid.UUID) (*model.Supply, error) {
	var res *model.Supply
	err := r.withRetry(ctx, func(ctx context.Context) error {
		s, err := scanSupply(r.pool.QueryRow(ctx, `SELECT `+supplyColumns+` `+supplyFrom+` WHERE s.id = $1 AND s.in_sale`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrSupplyNotFound
			}
			return fmt.Errorf("get supply in sale: %w", err)
		}
		res = s
		return nil
	})
	return res, err
}

// GetAllSupplies возвращает все поставки, в том числе снятые с продажи.
func (r *PostgresRepository) GetAllSupplies(ctx context.Context) ([]model.Supply, error) {
	var res []model.Supply
	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+supplyColumns+` `+supplyFrom+` ORDER BY s.delivered_at DESC`,
		)
		if err != nil {
			return fmt.Errorf("select supplies: %w", err)
		}
		res, err = collectSupplies(rows)
		return err
	})
	return res, err
}

// GetStockStatistics суммирует текущие остатки поставок по растениям.
func (r *PostgresRepository) GetStockStatistics(ctx context.Context) ([]model.StockStat, error) {
	var res []model.StockStat
	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx,
			`SELECT p.id, p.name, COALESCE(SUM(s.current_count), 0)
			 `+supplyFrom+`
			 GROUP BY p.id, p.name
			 ORDER BY p.name`,
		)
		if err != nil {
			return fmt.Errorf("select stock statistics: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			var st model.StockStat
			if err := rows.Scan(&st.PlantID, &st.PlantName, &st.Count); err != nil {
				return fmt.Errorf("scan stock statistics: %w", err)
			}
			res = append(res, st)
		}
		return rows.Err()
	})
	return res, err
}

// updateSupply выполняет UPDATE одной поставки и возвращает её новое состояние.
func (r *PostgresRepository) updateSupply(ctx context.Context, op, query string, args ...any) (*model.Supply, error) {
	err := r.withRetry(ctx, func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrSupplyNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetSupply(ctx, args[0].(uuid.UUID))
}

// UpdateSupplyPrice меняет цену поставки. Уже созданные заказы не пересчитываются.
func (r *PostgresRepository) UpdateSupplyPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*model.Supply, error) {
	return r.updateSupply(ctx, "update supply price",
		`UPDATE supplies SET price_cents = $2 WHERE id = $1`,
		id, toCents(price),
	)
}

// UpdateSupplier меняет контакты поставщика. Пустые поля оставляют прежние значения.
func (r *PostgresRepository) UpdateSupplier(ctx context.Context, id uuid.UUID, sup model.Supplier) (*model.Supply, error) {
	return r.updateSupply(ctx, "update supplier",
		`UPDATE supplies SET
			supplier_name = COALESCE(NULLIF($2, ''), supplier_name),
			supplier_phone = COALESCE(NULLIF($3, ''), supplier_phone),
			supplier_email = COALESCE(NULLIF($4, ''), supplier_email),
			supplier_address = COALESCE(NULLIF($5, ''), supplier_address)
		 WHERE id = $1`,
		id, sup.Name, sup.Phone, sup.Email, sup.Address,
	)
}

// UpdateSupplyExpiration меняет срок годности поставки.
func (r *PostgresRepository) UpdateSupplyExpiration(ctx context.Context, id uuid.UUID, date time.Time) (*model.Supply, error) {
	return r.updateSupply(ctx, "update supply expiration date",
		`UPDATE supplies SET expiration_date = $2 WHERE id = $1`,
		id, date,
	)
}

// SetSupplyInSale включает или выключает продажу поставки. Включение запрещено, если
// в продаже уже есть другая поставка того же растения. Выключение безусловно.
func (r *PostgresRepository) SetSupplyInSale(ctx context.Context, id uuid.UUID, enabled bool) (*model.Supply, error) {
	err := r.inPgTx(ctx, func(ctx context.Context, q pgx.Tx) error {
		var plantID uuid.UUID
		err := q.QueryRow(ctx, `SELECT plant_id FROM supplies WHERE id = $1 FOR UPDATE`, id).Scan(&plantID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrSupplyNotFound
			}
			return fmt.Errorf("lock supply: %w", err)
		}

		if enabled {
			var other bool
			err = q.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM supplies WHERE plant_id = $1 AND in_sale AND id <> $2)`,
				plantID, id,
			).Scan(&other)
			if err != nil {
				return fmt.Errorf("check supplies in sale: %w", err)
			}
			if other {
				return ErrConflictingSaleState
			}
		}

		if _, err := q.Exec(ctx, `UPDATE supplies SET in_sale = $2 WHERE id = $1`, id, enabled); err != nil {
			// Параллельное включение другой поставки ловит частичный уникальный индекс.
			if pgErrorCode(err) == pgerrcode.UniqueViolation {
				return ErrConflictingSaleState
			}
			return fmt.Errorf("update supply sale state: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetSupply(ctx, id)
}

// DebitSupply атомарно уменьшает остаток поставки на quantity. Остаток не может
// стать отрицательным: условие проверяется в том же UPDATE.
func (t *pgTx) DebitSupply(ctx context.Context, supplyID uuid.UUID, quantity int) (*model.Supply, error) {
	var current int
	err := t.tx.QueryRow(ctx,
		`UPDATE supplies SET current_count = current_count - $2
		 WHERE id = $1 AND current_count >= $2
		 RETURNING current_count`,
		supplyID, quantity,
	).Scan(&current)
	if err == nil {
		return t.getSupply(ctx, supplyID)
	}

	if pgErrorCode(err) == pgerrcode.CheckViolation {
		return nil, fmt.Errorf("%w: supply %s", ErrInsufficientStock, supplyID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("debit supply: %w", err)
	}

	err = t.tx.QueryRow(ctx, `SELECT current_count FROM supplies WHERE id = $1`, supplyID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSupplyNotFound, supplyID)
		}
		return nil, fmt.Errorf("read supply: %w", err)
	}
	return nil, fmt.Errorf("%w: supply %s has %d, requested %d", ErrInsufficientStock, supplyID, current, quantity)
}

func (t *pgTx) getSupply(ctx context.Context, id uuid.UUID) (*model.Supply, error) {
	s, err := scanSupply(t.tx.QueryRow(ctx, `SELECT `+supplyColumns+` `+supplyFrom+` WHERE s.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSupplyNotFound
		}
		return nil, fmt.Errorf("get supply: %w", err)
	}
	return s, nil
}
