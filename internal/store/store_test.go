package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-service/internal/models"
)

func TestUserRowDecodesPermissions(t *testing.T) {
	row := userRow{
		User:           models.User{ID: "u1", Role: models.RoleStaff},
		RawPermissions: []byte(`{"can_view_orders":true,"can_update_stock":true}`),
	}

	user, err := row.toUser()
	require.NoError(t, err)
	assert.True(t, user.Permissions.CanViewOrders)
	assert.True(t, user.Permissions.CanUpdateStock)
	assert.False(t, user.Permissions.CanManageInventory)
}

func TestUserRowEmptyPermissions(t *testing.T) {
	row := userRow{User: models.User{ID: "u1", Role: models.RoleClient}}

	user, err := row.toUser()
	require.NoError(t, err)
	assert.Equal(t, models.StaffPermissions{}, user.Permissions)
}

func TestUserRowBadPermissions(t *testing.T) {
	row := userRow{RawPermissions: []byte("{broken")}
	_, err := row.toUser()
	assert.Error(t, err)
}

func TestOrderRoundTrip(t *testing.T) {
	t.Skip("Requires a Postgres instance")
}
