// Package workflow описывает конечный автомат статусов заказа.
package workflow

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/plantshop/internal/model"
)

var (
	// ErrInvalidTransition возвращается, если текущий статус заказа не совпадает с требуемым.
	ErrInvalidTransition = errors.New("invalid order transition")
	// ErrUnknownTransition возвращается для перехода, отсутствующего в таблице.
	ErrUnknownTransition = errors.New("unknown order transition")
)

// Transition задаёт действие над заказом.
type Transition string

const (
	StartProgress Transition = "in-progress"
	Pack          Transition = "packed"
	Ship          Transition = "in-delivery"
	Deliver       Transition = "delivered"
	Pay           Transition = "paid"
	Cancel        Transition = "cancel"
	AdminCancel   Transition = "cancel-as-admin"
)

// Actor определяет, кто вправе выполнить переход.
type Actor string

const (
	// ActorAdmin: любой администратор.
	ActorAdmin Actor = "admin"
	// ActorOwner: покупатель, которому принадлежит заказ.
	ActorOwner Actor = "owner"
)

// Rule описывает строку таблицы переходов.
type Rule struct {
	Transition Transition
	// From задаёт требуемый текущий статус. Не учитывается при AnyState.
	From     model.OrderStatus
	AnyState bool
	Actor    Actor
	// Appends перечисляет статусы, добавляемые в журнал по порядку. Последний становится текущим.
	Appends []model.OrderStatus
	// DebitsStock: переход списывает остатки поставок по позициям заказа.
	DebitsStock bool
	// Completes: переход проставляет время завершения заказа и ставит чек в очередь.
	Completes bool
}

// Target возвращает статус заказа после перехода.
func (r Rule) Target() model.OrderStatus {
	return r.Appends[len(r.Appends)-1]
}

// Check проверяет, допустим ли переход из статуса current.
func (r Rule) Check(current model.OrderStatus) error {
	if r.AnyState || current == r.From {
		return nil
	}
	return &InvalidTransitionError{
		Transition: r.Transition,
		Required:   r.From,
		Actual:     current,
	}
}

// InvalidTransitionError сообщает требуемый и фактический статус заказа.
type InvalidTransitionError struct {
	Transition Transition
	Required   model.OrderStatus
	Actual     model.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: order must be in %s status, got %s", e.Transition, e.Required, e.Actual)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// RuleFor возвращает правило для перехода t.
func RuleFor(t Transition) (Rule, error) {
	switch t {
	case StartProgress:
		return Rule{
			Transition: t,
			From:       model.OrderStatusCreated,
			Actor:      ActorAdmin,
			Appends:    []model.OrderStatus{model.OrderStatusInProgress},
		}, nil
	case Pack:
		return Rule{
			Transition:  t,
			From:        model.OrderStatusInProgress,
			Actor:       ActorAdmin,
			Appends:     []model.OrderStatus{model.OrderStatusPacked},
			DebitsStock: true,
		}, nil
	case Ship:
		return Rule{
			Transition: t,
			From:       model.OrderStatusPacked,
			Actor:      ActorAdmin,
			Appends:    []model.OrderStatus{model.OrderStatusInDelivery},
		}, nil
	case Deliver:
		return Rule{
			Transition: t,
			From:       model.OrderStatusInDelivery,
			Actor:      ActorAdmin,
			Appends:    []model.OrderStatus{model.OrderStatusDelivered},
		}, nil
	case Pay:
		// PAID не бывает текущим статусом: заказ сразу становится COMPLETED.
		return Rule{
			Transition: t,
			From:       model.OrderStatusDelivered,
			Actor:      ActorOwner,
			Appends:    []model.OrderStatus{model.OrderStatusPaid, model.OrderStatusCompleted},
			Completes:  true,
		}, nil
	case Cancel:
		return Rule{
			Transition: t,
			From:       model.OrderStatusCreated,
			Actor:      ActorOwner,
			Appends:    []model.OrderStatus{model.OrderStatusCanceled},
		}, nil
	case AdminCancel:
		return Rule{
			Transition: t,
			AnyState:   true,
			Actor:      ActorAdmin,
			Appends:    []model.OrderStatus{model.OrderStatusCanceled},
		}, nil
	}
	return Rule{}, fmt.Errorf("%w: %q", ErrUnknownTransition, t)
}

// Transitions перечисляет все переходы таблицы.
func Transitions() []Transition {
	return []Transition{StartProgress, Pack, Ship, Deliver, Pay, Cancel, AdminCancel}
}
