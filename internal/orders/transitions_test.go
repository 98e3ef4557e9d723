package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamdt/aurora-backend/pkg/enums"
	pkgerrors "github.com/phamdt/aurora-backend/pkg/errors"
)

var allStatuses = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusProcessing,
	enums.OrderStatusShipping,
	enums.OrderStatusDelivered,
	enums.OrderStatusCancelled,
	enums.OrderStatusReturned,
}

var allRoles = []enums.ActorRole{
	enums.ActorRoleCustomer,
	enums.ActorRoleStaff,
	enums.ActorRoleSystem,
}

func TestAuthorizeAllowsTabledTransitions(t *testing.T) {
	cases := []struct {
		from  enums.OrderStatus
		to    enums.OrderStatus
		actor enums.ActorRole
	}{
		{enums.OrderStatusPending, enums.OrderStatusProcessing, enums.ActorRoleStaff},
		{enums.OrderStatusPending, enums.OrderStatusProcessing, enums.ActorRoleSystem},
		{enums.OrderStatusPending, enums.OrderStatusCancelled, enums.ActorRoleCustomer},
		{enums.OrderStatusPending, enums.OrderStatusCancelled, enums.ActorRoleStaff},
		{enums.OrderStatusProcessing, enums.OrderStatusShipping, enums.ActorRoleStaff},
		{enums.OrderStatusProcessing, enums.OrderStatusCancelled, enums.ActorRoleStaff},
		{enums.OrderStatusShipping, enums.OrderStatusDelivered, enums.ActorRoleStaff},
		{enums.OrderStatusShipping, enums.OrderStatusDelivered, enums.ActorRoleCustomer},
		{enums.OrderStatusShipping, enums.OrderStatusCancelled, enums.ActorRoleStaff},
		{enums.OrderStatusDelivered, enums.OrderStatusReturned, enums.ActorRoleSystem},
	}
	for _, tc := range cases {
		assert.NoError(t, Authorize(tc.from, tc.to, tc.actor),
			"%s -> %s by %s", tc.from, tc.to, tc.actor)
	}
}

func TestAuthorizeRejectsEverythingOutsideTable(t *testing.T) {
	allowed := map[[3]string]bool{}
	for key, roles := range transitionTable {
		for _, role := range roles {
			allowed[[3]string{key.From.String(), key.To.String(), role.String()}] = true
		}
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			for _, actor := range allRoles {
				if allowed[[3]string{from.String(), to.String(), actor.String()}] {
					continue
				}
				err := Authorize(from, to, actor)
				typed := pkgerrors.As(err)
				require.NotNil(t, typed, "%s -> %s by %s must be rejected", from, to, actor)
				assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

				details, ok := typed.Details().(map[string]any)
				require.True(t, ok)
				assert.Equal(t, from.String(), details["from"])
				assert.Equal(t, to.String(), details["to"])
			}
		}
	}
}

func TestCustomerCannotCancelShippingOrderButStaffCan(t *testing.T) {
	err := Authorize(enums.OrderStatusShipping, enums.OrderStatusCancelled, enums.ActorRoleCustomer)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	assert.NoError(t, Authorize(enums.OrderStatusShipping, enums.OrderStatusCancelled, enums.ActorRoleStaff))
}

func TestTerminalStatesHaveNoOutgoingStaffEdits(t *testing.T) {
	for _, from := range []enums.OrderStatus{enums.OrderStatusCancelled, enums.OrderStatusReturned} {
		for _, to := range allStatuses {
			for _, actor := range allRoles {
				assert.Error(t, Authorize(from, to, actor))
			}
		}
	}
}
