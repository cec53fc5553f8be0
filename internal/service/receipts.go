package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/plantshop/internal/model"
	"github.com/mmeshcher/plantshop/internal/receipt"
)

const (
	receiptBatchSize   = 100
	receiptMaxAttempts = 5
	receiptPollPeriod  = time.Second
)

// RunReceiptDelivery отправляет чеки из исходящей очереди, пока не отменён ctx.
// Ошибки доставки не влияют на оплату: запись остаётся в очереди до исчерпания попыток.
func (s *Service) RunReceiptDelivery(ctx context.Context) {
	if s.receipts == nil {
		return
	}

	ticker := time.NewTicker(receiptPollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processReceiptBatch(ctx)
		}
	}
}

func (s *Service) processReceiptBatch(ctx context.Context) {
	pending, err := s.repo.GetPendingReceipts(ctx, receiptBatchSize)
	if err != nil {
		s.logger.Warn("load pending receipts", zap.Error(err))
		return
	}

	for _, rc := range pending {
		err := s.deliverReceipt(ctx, rc)
		s.metrics.ObserveReceipt(err)

		var rateErr *receipt.RateLimitError
		if errors.As(err, &rateErr) {
			if rateErr.RetryAfter > 0 {
				timer := time.NewTimer(rateErr.RetryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
				case <-timer.C:
				}
			}
			return
		}

		if err != nil {
			s.logger.Warn("deliver receipt",
				zap.Error(err),
				zap.Int64("receiptID", rc.ID),
				zap.Stringer("orderID", rc.OrderID),
				zap.Int("attempt", rc.Attempts+1),
			)
			if markErr := s.repo.MarkReceiptFailed(ctx, rc.ID, receiptMaxAttempts); markErr != nil {
				s.logger.Warn("mark receipt failed", zap.Error(markErr), zap.Int64("receiptID", rc.ID))
			}
			continue
		}

		if err := s.repo.MarkReceiptSent(ctx, rc.ID); err != nil {
			s.logger.Warn("mark receipt sent", zap.Error(err), zap.Int64("receiptID", rc.ID))
		}
	}
}

func (s *Service) deliverReceipt(ctx context.Context, rc model.Receipt) error {
	order, err := s.repo.GetOrder(ctx, rc.OrderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}

	buyer, err := s.repo.GetUserByID(ctx, rc.UserID)
	if err != nil {
		return fmt.Errorf("load buyer: %w", err)
	}

	return s.receipts.Send(ctx, receipt.NewRequest(order, buyer.Email))
}
