package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/plantshop/internal/model"
)

// GetPendingReceipts возвращает чеки, ожидающие отправки, в порядке постановки в очередь.
func (r *PostgresRepository) GetPendingReceipts(ctx context.Context, limit int) ([]model.Receipt, error) {
	var res []model.Receipt
	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, order_id, user_id, status, attempts, created_at
			 FROM receipt_outbox
			 WHERE status = $1
			 ORDER BY id
			 LIMIT $2`,
			string(model.ReceiptPending), limit,
		)
		if err != nil {
			return fmt.Errorf("select pending receipts: %w", err)
		}
		defer rows.Close()

		var receipts []model.Receipt
		for rows.Next() {
			var (
				rc     model.Receipt
				status string
			)
			if err := rows.Scan(&rc.ID, &rc.OrderID, &rc.UserID, &status, &rc.Attempts, &rc.CreatedAt); err != nil {
				return fmt.Errorf("scan receipt: %w", err)
			}
			rc.Status = model.ReceiptStatus(status)
			receipts = append(receipts, rc)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		res = receipts
		return nil
	})
	return res, err
}

// MarkReceiptSent отмечает чек как отправленный.
func (r *PostgresRepository) MarkReceiptSent(ctx context.Context, id int64) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx,
			`UPDATE receipt_outbox SET status = $2, attempts = attempts + 1, sent_at = now() WHERE id = $1`,
			id, string(model.ReceiptSent),
		)
		if err != nil {
			return fmt.Errorf("mark receipt sent: %w", err)
		}
		return nil
	})
}

// MarkReceiptFailed учитывает неудачную попытку. После maxAttempts попыток чек больше не отправляется.
func (r *PostgresRepository) MarkReceiptFailed(ctx context.Context, id int64, maxAttempts int) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx,
			`UPDATE receipt_outbox
			 SET attempts = attempts + 1,
			     status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE status END
			 WHERE id = $1`,
			id, maxAttempts, string(model.ReceiptFailed),
		)
		if err != nil {
			return fmt.Errorf("mark receipt failed: %w", err)
		}
		return nil
	})
}
