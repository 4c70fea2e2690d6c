package models

import (
	"fmt"
	"strings"
)

type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCompleted      OrderStatus = "completed"
	StatusCancelled      OrderStatus = "cancelled"
)

// AllStatuses is ordered by lifecycle progress.
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCompleted,
	StatusCancelled,
}

var statusLabels = map[OrderStatus]string{
	StatusPending:        "Pendente",
	StatusConfirmed:      "Confirmado",
	StatusPreparing:      "Em preparo",
	StatusOutForDelivery: "Saiu para entrega",
	StatusDelivered:      "Entregue",
	StatusCompleted:      "Concluído",
	StatusCancelled:      "Cancelado",
}

// transitions maps status -> order type -> allowed next statuses.
// Pickup orders never reach out_for_delivery or delivered.
var transitions = map[OrderStatus]map[OrderType][]OrderStatus{
	StatusPending: {
		OrderTypeDelivery: {StatusConfirmed, StatusCancelled},
		OrderTypePickup:   {StatusConfirmed, StatusCancelled},
	},
	StatusConfirmed: {
		OrderTypeDelivery: {StatusPreparing, StatusCancelled},
		OrderTypePickup:   {StatusPreparing, StatusCancelled},
	},
	StatusPreparing: {
		OrderTypeDelivery: {StatusOutForDelivery, StatusCancelled},
		OrderTypePickup:   {StatusCompleted, StatusCancelled},
	},
	StatusOutForDelivery: {
		OrderTypeDelivery: {StatusDelivered, StatusCancelled},
	},
	StatusDelivered: {
		OrderTypeDelivery: {StatusCompleted},
	},
	StatusCompleted: {
		OrderTypeDelivery: {},
		OrderTypePickup:   {},
	},
	StatusCancelled: {
		OrderTypeDelivery: {},
		OrderTypePickup:   {},
	},
}

// AllowedTransitions returns the statuses an order may move to next. Pairs with no entry
// (e.g. pickup + out_for_delivery) return an empty, non-nil slice.
func AllowedTransitions(current OrderStatus, orderType OrderType) []OrderStatus {
	next := transitions[current][orderType]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to OrderStatus, orderType OrderType) bool {
	for _, s := range transitions[from][orderType] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a validation error when from -> to is not in the table.
func ValidateTransition(orderID string, from, to OrderStatus, orderType OrderType) error {
	if CanTransition(from, to, orderType) {
		return nil
	}
	return &OrderError{
		Kind:    ErrValidation,
		Op:      "validate transition",
		OrderID: orderID,
		Err:     fmt.Errorf("cannot move %s order from %s to %s", orderType, from, to),
	}
}

// IsTerminal reports whether no transition leaves the status.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label is the operator-facing name of the status.
func (s OrderStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// StatusPriority ranks statuses for the "all statuses" board: least progressed first.
func StatusPriority(s OrderStatus) int {
	for i, status := range AllStatuses {
		if status == s {
			return i
		}
	}
	return len(AllStatuses)
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", &OrderError{Kind: ErrValidation, Op: "parse status", Err: fmt.Errorf("unknown status %q", raw)}
	}
	return s, nil
}

func ParseOrderType(raw string) (OrderType, error) {
	switch t := OrderType(strings.ToLower(strings.TrimSpace(raw))); t {
	case OrderTypeDelivery, OrderTypePickup:
		return t, nil
	default:
		return "", &OrderError{Kind: ErrValidation, Op: "parse order type", Err: fmt.Errorf("unknown order type %q", raw)}
	}
}
