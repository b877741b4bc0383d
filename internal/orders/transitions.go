package orders

import "github.com/shoplane/shoplane-backend/pkg/enums"

// orderTransitions is the single source of truth for the order lifecycle.
// delivered orders can only move to cancelled through a full refund.
var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusAwaitingPayment: {enums.OrderStatusPaid, enums.OrderStatusCancelled},
	enums.OrderStatusPaid:            {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing:      {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:         {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:       {enums.OrderStatusCancelled},
	enums.OrderStatusCancelled:       {},
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
