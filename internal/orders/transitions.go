package orders

import (
	"github.com/phamdt/aurora-backend/pkg/enums"
	pkgerrors "github.com/phamdt/aurora-backend/pkg/errors"
)

// transitionKey identifies one edge of the fulfillment graph.
type transitionKey struct {
	From enums.OrderStatus
	To   enums.OrderStatus
}

// transitionTable is the single source of truth for legal fulfillment
// moves and who may trigger them. Every mutation path, customer-facing
// and staff-facing, consults this table; status checks are never done
// with ad hoc comparisons elsewhere.
var transitionTable = map[transitionKey][]enums.ActorRole{
	{From: enums.OrderStatusPending, To: enums.OrderStatusProcessing}: {
		enums.ActorRoleStaff, enums.ActorRoleSystem,
	},
	{From: enums.OrderStatusPending, To: enums.OrderStatusCancelled}: {
		enums.ActorRoleCustomer, enums.ActorRoleStaff,
	},
	{From: enums.OrderStatusProcessing, To: enums.OrderStatusShipping}: {
		enums.ActorRoleStaff,
	},
	{From: enums.OrderStatusProcessing, To: enums.OrderStatusCancelled}: {
		enums.ActorRoleStaff,
	},
	{From: enums.OrderStatusShipping, To: enums.OrderStatusDelivered}: {
		enums.ActorRoleStaff, enums.ActorRoleCustomer,
	},
	{From: enums.OrderStatusShipping, To: enums.OrderStatusCancelled}: {
		enums.ActorRoleStaff,
	},
	// delivered to returned only happens through an approved return
	// request, never as a direct staff status edit.
	{From: enums.OrderStatusDelivered, To: enums.OrderStatusReturned}: {
		enums.ActorRoleSystem,
	},
}

// Authorize validates one transition attempt against the table. The error
// carries the attempted pair so callers can surface it unchanged.
func Authorize(from, to enums.OrderStatus, actor enums.ActorRole) error {
	roles, ok := transitionTable[transitionKey{From: from, To: to}]
	if !ok {
		return invalidTransition(from, to, actor)
	}
	for _, role := range roles {
		if role == actor {
			return nil
		}
	}
	return invalidTransition(from, to, actor)
}

func invalidTransition(from, to enums.OrderStatus, actor enums.ActorRole) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid order transition").
		WithDetails(map[string]any{
			"from":  from.String(),
			"to":    to.String(),
			"actor": actor.String(),
		})
}
