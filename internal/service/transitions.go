package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/plantshop/internal/model"
	"github.com/mmeshcher/plantshop/internal/repository"
	"github.com/mmeshcher/plantshop/internal/workflow"
)

// Transition выполняет переход t над заказом orderID от имени actorID.
//
// Роль вызывающего проверяется до вызова. Для переходов покупателя (оплата, отмена)
// чужой заказ неотличим от отсутствующего: владелец входит в условие выборки.
// Чтение заказа под блокировкой, проверка статуса, списание остатков, смена
// статуса и записи журнала выполняются одной транзакцией; при любой ошибке
// состояние не меняется.
func (s *Service) Transition(ctx context.Context, t workflow.Transition, orderID, actorID uuid.UUID) (*model.Order, error) {
	rule, err := workflow.RuleFor(t)
	if err != nil {
		return nil, err
	}

	var owner *uuid.UUID
	if rule.Actor == workflow.ActorOwner {
		owner = &actorID
	}

	var result *model.Order
	err = s.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		order, err := tx.LockOrder(ctx, orderID, owner)
		if err != nil {
			return err
		}

		if err := rule.Check(order.CurrentStatus); err != nil {
			return err
		}

		if rule.DebitsStock {
			debited := make(map[uuid.UUID]*model.Supply, len(order.Items))
			for _, d := range stockDebits(order.Items) {
				supply, err := tx.DebitSupply(ctx, d.SupplyID, d.Quantity)
				if err != nil {
					return fmt.Errorf("pack order %s: %w", order.ID, err)
				}
				debited[d.SupplyID] = supply
			}
			// Позиции должны показывать остаток после списания.
			for i := range order.Items {
				order.Items[i].Supply = debited[order.Items[i].SupplyID]
			}
		}

		var completedAt *time.Time
		if rule.Completes {
			now := s.now().UTC()
			completedAt = &now
			order.CompletedAt = completedAt
		}

		target := rule.Target()
		if err := tx.UpdateOrderStatus(ctx, order.ID, target, completedAt); err != nil {
			return err
		}
		order.CurrentStatus = target

		for _, status := range rule.Appends {
			entry, err := tx.AppendStatus(ctx, order.ID, status)
			if err != nil {
				return err
			}
			order.History = append(order.History, entry)
		}

		if rule.Completes {
			if err := tx.EnqueueReceipt(ctx, order.ID, order.UserID); err != nil {
				return err
			}
		}

		result = order
		return nil
	})

	s.metrics.ObserveTransition(t, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order transition",
		zap.String("transition", string(t)),
		zap.Stringer("orderID", orderID),
		zap.Stringer("actorID", actorID),
		zap.String("status", string(result.CurrentStatus)),
	)
	return result, nil
}

type stockDebit struct {
	SupplyID uuid.UUID
	Quantity int
}

// stockDebits суммирует количество по каждой поставке и упорядочивает поставки
// по идентификатору, чтобы параллельные упаковки блокировали строки в одном порядке.
func stockDebits(items []model.OrderItem) []stockDebit {
	totals := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		totals[item.SupplyID] += item.Quantity
	}

	res := make([]stockDebit, 0, len(totals))
	for id, qty := range totals {
		res = append(res, stockDebit{SupplyID: id, Quantity: qty})
	}
	sort.Slice(res, func(i, j int) bool {
		return bytes.Compare(res[i].SupplyID[:], res[j].SupplyID[:]) < 0
	})
	return res
}
