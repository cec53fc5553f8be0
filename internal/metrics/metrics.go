// Package metrics содержит счётчики Prometheus сервиса.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmeshcher/plantshop/internal/repository"
	"github.com/mmeshcher/plantshop/internal/workflow"
)

// Metrics собирает счётчики переходов заказов и доставки чеков.
// Методы безопасно вызывать у nil.
type Metrics struct {
	transitions *prometheus.CounterVec
	receipts    *prometheus.CounterVec
}

// New регистрирует счётчики в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantshop",
			Name:      "order_transitions_total",
			Help:      "Order status transitions by outcome.",
		}, []string{"transition", "result"}),
		receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantshop",
			Name:      "receipts_total",
			Help:      "Receipt delivery attempts by outcome.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.transitions, m.receipts)
	return m
}

// ObserveTransition учитывает результат перехода.
func (m *Metrics) ObserveTransition(t workflow.Transition, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(t), transitionResult(err)).Inc()
}

// ObserveReceipt учитывает попытку доставки чека.
func (m *Metrics) ObserveReceipt(err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.receipts.WithLabelValues(result).Inc()
}

func transitionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, workflow.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, repository.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, repository.ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrTemporary):
		return "temporary"
	default:
		return "error"
	}
}
