package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-service/internal/models"
)

func sampleItems() []models.OrderItem {
	return []models.OrderItem{
		{ProductID: "p1", Name: "Paracetamol", Price: 10.50, Unit: "pack", StockAtAdd: 40, Quantity: 3},
		{ProductID: "p2", Name: "Vitamin C", Price: 21.00, Unit: "bottle", StockAtAdd: 15, Quantity: 1},
	}
}

func TestPlaceOrder(t *testing.T) {
	orders := newFakeOrderStore()
	pub := &fakePublisher{}
	engine := newTestEngine(orders, newFakeUserDirectory(), pub)

	order, err := engine.PlaceOrder(context.Background(), clientSession(), sampleItems())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, 52.50, order.Total)
	assert.Equal(t, 0.0, order.DeliveryFee)
	assert.Equal(t, "client-1", order.UserID)
	assert.Len(t, pub.placed, 1)
	assert.Equal(t, order.ID, pub.placed[0].OrderID)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	engine := newTestEngine(newFakeOrderStore(), newFakeUserDirectory(), &fakePublisher{})

	_, err := engine.PlaceOrder(context.Background(), clientSession(), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGuardedWalkToCompletion(t *testing.T) {
	orders := newFakeOrderStore()
	pub := &fakePublisher{}
	admins := newFakeUserDirectory(
		&models.User{ID: "admin-1", Email: "admin@pharmacy.test", Role: models.RoleAdmin})
	engine := newTestEngine(orders, admins, pub)

	order, err := engine.PlaceOrder(context.Background(), clientSession(), sampleItems())
	require.NoError(t, err)

	ctx := context.Background()
	admin := adminSession()
	client := clientSession()

	order, err = engine.AdvanceStatus(ctx, admin, order.ID, models.StatusCheckingStock)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckingStock, order.Status)

	order, err = engine.AdvanceStatus(ctx, admin, order.ID, models.StatusPharmacyConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPharmacyConfirmed, order.Status)

	order, err = engine.ConfirmOrder(ctx, client, order.ID, ConfirmRequest{
		DeliveryOption: models.DeliveryPickup,
		PaymentMethod:  models.PaymentCash,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCustomerConfirmed, order.Status)

	order, err = engine.ApproveConfirmation(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, order.Status)

	order, err = engine.AdvanceStatus(ctx, admin, order.ID, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, order.Status)

	// One status-changed event per hop.
	assert.Len(t, pub.statusChanged, 5)
	for _, ev := range pub.statusChanged {
		assert.False(t, ev.Override)
	}
}

func TestAdvanceStatusRejectsSkips(t *testing.T) {
	orders := newFakeOrderStore()
	orders.put(testOrder("o1", "client-1", models.StatusPending, sampleItems()...))
	engine := newTestEngine(orders, newFakeUserDirectory(), &fakePublisher{})

	// Skipping straight to completed is not in the table.
	_, err := engine.AdvanceStatus(context.Background(), adminSession(), "o1", models.StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Clients cannot drive pharmacy-side transitions.
	_, err = engine.AdvanceStatus(context.Background(), clientSession(), "o1", models.StatusCheckingStock)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, _ := orders.GetOrderByID(context.Background(), "o1")
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestAdvanceToPharmacyConfirmedNotifiesCustomer(t *testing.T) {
	orders := newFakeOrderStore()
	orders.put(testOrder("o1", "client-1", models.StatusCheckingStock, sampleItems()...))
	engine := newTestEngine(orders, newFakeUserDirectory(), &fakePublisher{})

	_, err := engine.AdvanceStatus(context.Background(), adminSession(), "o1", models.StatusPharmacyConfirmed)
	require.NoError(t, err)

	require.Len(t, orders.outbox, 1)
	entry := orders.outbox[0]
	assert.Equal(t, "client-1", entry.UserID)
	assert.Equal(t, models.NotificationOrderUpdate, entry.Type)
	assert.Equal(t, "Order Ready for Verification", entry.Title)
	assert.Contains(t, entry.Message, "3x Paracetamol")
	assert.Contains(t, entry.Message, "1x Vitamin C")
}

func TestConfirmOrderDeliveryFeeAndFanOut(t *testing.T) {
	orders := newFakeOrderStore()
	orders.put(testOrder("o1", "client-1", models.StatusPharmacyConfirmed, sampleItems()...))
	users := newFakeUserDirectory(
		&models.User{ID: "admin-1", Email: "a1@pharmacy.test", Role: models.RoleAdmin},
		&models.User{ID: "admin-2", Email: "a2@pharmacy.test", Role: models.RoleAdmin},
		&models.User{ID: "staff-1", Email: "s1@pharmacy.test", Role: models.RoleStaff},
	)
	pub := &fakePublisher{}
	engine := newTestEngine(orders, users, pub)

	order, err := engine.ConfirmOrder(context.Background(), clientSession(), "o1", ConfirmRequest{
		DeliveryOption:  models.DeliveryHome,
		DeliveryAddress: "12 Ring Road, Accra",
		PaymentMethod:   models.PaymentMomo,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCustomerConfirmed, order.Status)
	assert.Equal(t, 52.50, order.Total)
	assert.Equal(t, 50.0, order.DeliveryFee)
	assert.Equal(t, 102.50, order.GrandTotal())

	// One confirmation notification per admin, none for staff.
	require.Len(t, orders.outbox, 2)
	recipients := map[string]bool{}
	for _, entry := range orders.outbox {
		recipients[entry.UserID] = true
		assert.Equal(t, "o1", entry.OrderID)
		assert.Equal(t, models.NotificationOrderConfirmation, entry.Type)
		assert.Equal(t, "Customer Order Confirmation", entry.Title)
		assert.Contains(t, entry.Message, "Mobile Money (Momo)")
		assert.Contains(t, entry.Message, "Delivery to: 12 Ring Road, Accra")
	}
	assert.True(t, recipients["admin-1"])
	assert.True(t, recipients["admin-2"])

	require.Len(t, pub.confirmed, 1)
	assert.Equal(t, 102.50, pub.confirmed[0].GrandTotal)
}

func TestConfirmOrderPickupHasNoFee(t *testing.T) {
	orders := newFakeOrderStore()
	orders.put(testOrder("o1", "client-1", models.StatusPharmacyConfirmed, sampleItems()...))
	engine := newTestEngine(orders, newFakeUserDirectory(), &fakePublisher{})

	order, err := engine.ConfirmOrder(context.Background(), clientSession(), "o1", ConfirmRequest{
		DeliveryOption: models.DeliveryPickup,
		PaymentMethod:  models.PaymentCash,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, order.DeliveryFee)
	assert.Empty(t, order.DeliveryAddress)
	assert.Equal(t, 52.50, order.GrandTotal())
}

func TestConfirmOrderRequiresAddressForDelivery(t *testing.T) {
	orders := newFakeOrderStore()
	orders.put(testOrder("o1", "client-1", models.StatusPharmacyConfirmed, sampleItems()...))
	engine := newTestEngine(orders, newFakeUserDirectory(), &fakePublisher{})

	_, err := engine.ConfirmOrder(context.Background(), clientSession(), "o1", ConfirmRequest{
		DeliveryOption:  models.DeliveryHome,
		DeliveryAddress: "   ",
		PaymentMethod:   models.PaymentCash,
	})
	assert.ErrorIs(t, err, ErrValidation)

	// Nothing was written.
	stored, _ := orders.GetOrderByID(context.Background(), "o1")
	assert.Equal(t, models.StatusPharmacyConfirmed, stored.Status)
	assert.Empty(t, stored.PaymentMethod)
	assert.Empty(t, orders.outbox)
}

func TestConfirmOrderOnlyOwner(t *testing.T) {
	orders := newFakeOrderStore()
	orders.put(testOrder("o1", "client-1", models.StatusPharmacyConfirmed, sampleItems()...))
	engine := newTestEngine(orders, newFakeUserDirectory(), &fakePublisher{})

	other := Session{UserID: "client-2", Role: models.RoleClient}
	_, err := engine.ConfirmOrder(context.Background(), other, "o1", ConfirmRequest{
		DeliveryOption: models.DeliveryPickup,
		PaymentMethod:  models.PaymentCash,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestApproveConfirmationNotifiesCustomer(t *testing.T) {
	orders := newFakeOrderStore()
	order := testOrder("o1", "client-1", models.StatusCustomerConfirmed, sampleItems()...)
	order.DeliveryOption = models.DeliveryPickup
	order.PaymentMethod = models.PaymentCash
	orders.put(order)
	engine := newTestEngine(orders, newFakeUserDirectory(), &fakePublisher{})

	updated, err := engine.ApproveConfirmation(context.Background(), adminSession(), "o1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusProcessing, updated.Status)
	require.Len(t, orders.outbox, 1)
	assert.Equal(t, "Order Approved", orders.outbox[0].Title)
	assert.Contains(t, orders.outbox[0].Message, "approved and confirmed by the pharmacy")
}

func TestOverrideStatus(t *testing.T) {
	orders := newFakeOrderStore()
	orders.put(testOrder("o1", "client-1", models.StatusPending, sampleItems()...))
	pub := &fakePublisher{}
	engine := newTestEngine(orders, newFakeUserDirectory(), pub)

	// Any non-terminal order can jump to any status, skipping the walk.
	order, err := engine.OverrideStatus(context.Background(), adminSession(), "o1", models.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, order.Status)

	// Overrides have no notification side effects.
	assert.Empty(t, orders.outbox)
	require.Len(t, pub.statusChanged, 1)
	assert.True(t, pub.statusChanged[0].Override)

	// Cancel is reachable only through the override path.
	order, err = engine.OverrideStatus(context.Background(), adminSession(), "o1", models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, order.Status)

	// Terminal states absorb.
	_, err = engine.OverrideStatus(context.Background(), adminSession(), "o1", models.StatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOverrideStatusRequiresAdmin(t *testing.T) {
	orders := newFakeOrderStore()
	orders.put(testOrder("o1", "client-1", models.StatusPending, sampleItems()...))
	engine := newTestEngine(orders, newFakeUserDirectory(), &fakePublisher{})

	_, err := engine.OverrideStatus(context.Background(), clientSession(), "o1", models.StatusCompleted)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	staff := staffSession(models.StaffPermissions{CanViewOrders: true})
	_, err = engine.OverrideStatus(context.Background(), staff, "o1", models.StatusCompleted)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestEditItemsRecomputesTotal(t *testing.T) {
	orders := newFakeOrderStore()
	orders.put(testOrder("o1", "client-1", models.StatusPending, sampleItems()...))
	pub := &fakePublisher{}
	engine := newTestEngine(orders, newFakeUserDirectory(), pub)

	order, err := engine.EditItems(context.Background(), adminSession(), "o1", []ItemEdit{
		{ProductID: "p1", Quantity: 1}, // 3 -> 1
		{ProductID: "p2", Quantity: 0}, // removed
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.Equal(t, "p1", order.Items[0].ProductID)
	assert.Equal(t, 1, order.Items[0].Quantity)
	assert.Equal(t, 10.50, order.Total)

	require.Len(t, pub.itemsEdited, 1)
	assert.Equal(t, 10.50, pub.itemsEdited[0].NewTotal)
}

func TestEditItemsCanEmptyOrder(t *testing.T) {
	orders := newFakeOrderStore()
	orders.put(testOrder("o1", "client-1", models.StatusCheckingStock, sampleItems()...))
	engine := newTestEngine(orders, newFakeUserDirectory(), &fakePublisher{})

	// Removing every line leaves a valid zero-total order.
	order, err := engine.EditItems(context.Background(), adminSession(), "o1", []ItemEdit{
		{ProductID: "p1", Quantity: 0},
		{ProductID: "p2", Quantity: 0},
	})
	require.NoError(t, err)
	assert.Empty(t, order.Items)
	assert.Equal(t, 0.0, order.Total)
}

func TestEditItemsFrozenAfterVerificationStarts(t *testing.T) {
	orders := newFakeOrderStore()
	orders.put(testOrder("o1", "client-1", models.StatusPharmacyConfirmed, sampleItems()...))
	engine := newTestEngine(orders, newFakeUserDirectory(), &fakePublisher{})

	_, err := engine.EditItems(context.Background(), adminSession(), "o1", []ItemEdit{
		{ProductID: "p1", Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEditItemsRequiresAdmin(t *testing.T) {
	orders := newFakeOrderStore()
	orders.put(testOrder("o1", "client-1", models.StatusPending, sampleItems()...))
	engine := newTestEngine(orders, newFakeUserDirectory(), &fakePublisher{})

	_, err := engine.EditItems(context.Background(), clientSession(), "o1", []ItemEdit{
		{ProductID: "p1", Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestGetOrderVisibility(t *testing.T) {
	orders := newFakeOrderStore()
	orders.put(testOrder("o1", "client-1", models.StatusPending, sampleItems()...))
	engine := newTestEngine(orders, newFakeUserDirectory(), &fakePublisher{})

	_, err := engine.GetOrder(context.Background(), clientSession(), "o1")
	assert.NoError(t, err)

	other := Session{UserID: "client-2", Role: models.RoleClient}
	_, err = engine.GetOrder(context.Background(), other, "o1")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = engine.GetOrder(context.Background(), adminSession(), "o1")
	assert.NoError(t, err)

	staff := staffSession(models.StaffPermissions{CanViewOrders: true})
	_, err = engine.GetOrder(context.Background(), staff, "o1")
	assert.NoError(t, err)
}

func TestListOrders(t *testing.T) {
	orders := newFakeOrderStore()
	orders.put(testOrder("aaaa1111", "client-1", models.StatusPending, sampleItems()...))
	other := testOrder("bbbb2222", "client-2", models.StatusCompleted, sampleItems()...)
	other.UserName = "Abena Osei"
	other.UserEmail = "abena@example.test"
	orders.put(other)
	engine := newTestEngine(orders, newFakeUserDirectory(), &fakePublisher{})

	ctx := context.Background()

	// Clients see only their own orders, whatever filters they pass.
	mine, err := engine.ListOrders(ctx, clientSession(), "", "abena")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "client-1", mine[0].UserID)

	all, err := engine.ListOrders(ctx, adminSession(), "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	completed, err := engine.ListOrders(ctx, adminSession(), models.StatusCompleted, "")
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "bbbb2222", completed[0].ID)

	found, err := engine.ListOrders(ctx, adminSession(), "", "abena@")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "client-2", found[0].UserID)

	_, err = engine.ListOrders(ctx, adminSession(), "shipped", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInvoiceAmounts(t *testing.T) {
	orders := newFakeOrderStore()
	order := testOrder("o1", "client-1", models.StatusCustomerConfirmed, sampleItems()...)
	order.DeliveryOption = models.DeliveryHome
	order.DeliveryFee = 50
	orders.put(order)
	engine := newTestEngine(orders, newFakeUserDirectory(), &fakePublisher{})

	invoice, err := engine.Invoice(context.Background(), clientSession(), "o1")
	require.NoError(t, err)

	assert.Equal(t, 52.50, invoice.Subtotal)
	assert.Equal(t, 50.0, invoice.DeliveryFee)
	assert.Equal(t, 102.50, invoice.GrandTotal)
	require.Len(t, invoice.Lines, 2)
	assert.Equal(t, 31.50, invoice.Lines[0].LineTotal)

	// Staff need the invoice permission for other users' orders.
	_, err = engine.Invoice(context.Background(), staffSession(models.StaffPermissions{}), "o1")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = engine.Invoice(context.Background(),
		staffSession(models.StaffPermissions{CanGenerateInvoices: true}), "o1")
	assert.NoError(t, err)
}
