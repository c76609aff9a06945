package service

import (
	"context"
	"fmt"
	"time"

	"pharmacy-service/internal/models"
)

// In-memory fakes for the store, cache and broker collaborators.

type fakeOrderStore struct {
	orders map[string]*models.Order
	outbox []models.OutboxNotification
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*models.Order)}
}

func (f *fakeOrderStore) put(order *models.Order) {
	cp := *order
	cp.Items = append([]models.OrderItem(nil), order.Items...)
	f.orders[order.ID] = &cp
}

func (f *fakeOrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	f.put(order)
	return nil
}

func (f *fakeOrderStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order not found: %s", id)
	}
	cp := *order
	cp.Items = append([]models.OrderItem(nil), order.Items...)
	return &cp, nil
}

func (f *fakeOrderStore) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) ListOrders(ctx context.Context, status string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) UpdateOrderWithOutbox(ctx context.Context, order *models.Order, entries []models.OutboxNotification) error {
	if _, ok := f.orders[order.ID]; !ok {
		return fmt.Errorf("order not found: %s", order.ID)
	}
	f.put(order)
	f.outbox = append(f.outbox, entries...)
	return nil
}

func (f *fakeOrderStore) ReplaceOrderItems(ctx context.Context, order *models.Order) error {
	if _, ok := f.orders[order.ID]; !ok {
		return fmt.Errorf("order not found: %s", order.ID)
	}
	f.put(order)
	return nil
}

type fakeUserDirectory struct {
	users map[string]*models.User
}

func newFakeUserDirectory(users ...*models.User) *fakeUserDirectory {
	f := &fakeUserDirectory{users: make(map[string]*models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found: %s", id)
	}
	return u, nil
}

func (f *fakeUserDirectory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %s", email)
}

func (f *fakeUserDirectory) ListAdmins(ctx context.Context) ([]models.User, error) {
	var admins []models.User
	for _, u := range f.users {
		if u.Role == models.RoleAdmin {
			admins = append(admins, *u)
		}
	}
	return admins, nil
}

func (f *fakeUserDirectory) UpsertUser(ctx context.Context, u *models.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserDirectory) UpdateUserRole(ctx context.Context, id, role string) error {
	u, ok := f.users[id]
	if !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	u.Role = role
	return nil
}

type fakeNotificationStore struct {
	notifications map[string]*models.Notification
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{notifications: make(map[string]*models.Notification)}
}

func (f *fakeNotificationStore) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	n, ok := f.notifications[id]
	if !ok {
		return nil, fmt.Errorf("notification not found: %s", id)
	}
	return n, nil
}

func (f *fakeNotificationStore) ListNotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeNotificationStore) MarkNotificationRead(ctx context.Context, id string) error {
	if n, ok := f.notifications[id]; ok {
		n.Read = true
	}
	return nil
}

func (f *fakeNotificationStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	for _, n := range f.notifications {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}

func (f *fakeNotificationStore) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, n := range f.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

type fakeUnreadCache struct {
	counts       map[string]int
	invalidated  []string
	missesServed int
}

func newFakeUnreadCache() *fakeUnreadCache {
	return &fakeUnreadCache{counts: make(map[string]int)}
}

func (f *fakeUnreadCache) GetCachedUnreadCount(ctx context.Context, userID string) (int, bool, error) {
	count, ok := f.counts[userID]
	if !ok {
		f.missesServed++
	}
	return count, ok, nil
}

func (f *fakeUnreadCache) SetCachedUnreadCount(ctx context.Context, userID string, count int, ttl time.Duration) error {
	f.counts[userID] = count
	return nil
}

func (f *fakeUnreadCache) InvalidateUnreadCount(ctx context.Context, userID string) error {
	delete(f.counts, userID)
	f.invalidated = append(f.invalidated, userID)
	return nil
}

type fakePublisher struct {
	placed        []*models.OrderPlacedEvent
	statusChanged []*models.OrderStatusChangedEvent
	confirmed     []*models.OrderConfirmedEvent
	itemsEdited   []*models.OrderItemsEditedEvent
}

func (f *fakePublisher) PublishOrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error {
	f.placed = append(f.placed, e)
	return nil
}

func (f *fakePublisher) PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	f.statusChanged = append(f.statusChanged, e)
	return nil
}

func (f *fakePublisher) PublishOrderConfirmed(ctx context.Context, e *models.OrderConfirmedEvent) error {
	f.confirmed = append(f.confirmed, e)
	return nil
}

func (f *fakePublisher) PublishOrderItemsEdited(ctx context.Context, e *models.OrderItemsEditedEvent) error {
	f.itemsEdited = append(f.itemsEdited, e)
	return nil
}

type fakeProductStore struct {
	products map[string]*models.Product
}

func newFakeProductStore(products ...*models.Product) *fakeProductStore {
	f := &fakeProductStore{products: make(map[string]*models.Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProductStore) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product not found: %s", id)
	}
	return p, nil
}

func (f *fakeProductStore) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProductStore) ListProducts(ctx context.Context, includeHidden bool) ([]models.Product, error) {
	var out []models.Product
	for _, p := range f.products {
		if p.IsHidden && !includeHidden {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProductStore) CreateProduct(ctx context.Context, p *models.Product) error {
	f.products[p.ID] = p
	return nil
}

func (f *fakeProductStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	f.products[p.ID] = p
	return nil
}

func (f *fakeProductStore) UpdateProductStock(ctx context.Context, id string, stock int) error {
	p, ok := f.products[id]
	if !ok {
		return fmt.Errorf("product not found: %s", id)
	}
	p.Stock = stock
	return nil
}

func (f *fakeProductStore) DeleteProduct(ctx context.Context, id string) error {
	delete(f.products, id)
	return nil
}

type fakeCartBackend struct {
	carts map[string]map[string]int
}

func newFakeCartBackend() *fakeCartBackend {
	return &fakeCartBackend{carts: make(map[string]map[string]int)}
}

func (f *fakeCartBackend) cart(userID string) map[string]int {
	if f.carts[userID] == nil {
		f.carts[userID] = make(map[string]int)
	}
	return f.carts[userID]
}

func (f *fakeCartBackend) GetCart(ctx context.Context, userID string) (map[string]int, error) {
	out := make(map[string]int)
	for k, v := range f.cart(userID) {
		out[k] = v
	}
	return out, nil
}

func (f *fakeCartBackend) AddCartItem(ctx context.Context, userID, productID string, delta int) (int, error) {
	c := f.cart(userID)
	c[productID] += delta
	return c[productID], nil
}

func (f *fakeCartBackend) SetCartQuantity(ctx context.Context, userID, productID string, quantity int) error {
	f.cart(userID)[productID] = quantity
	return nil
}

func (f *fakeCartBackend) RemoveCartItem(ctx context.Context, userID, productID string) error {
	delete(f.cart(userID), productID)
	return nil
}

func (f *fakeCartBackend) ClearCart(ctx context.Context, userID string) error {
	delete(f.carts, userID)
	return nil
}

// Common sessions and builders.

func adminSession() Session {
	return Session{UserID: "admin-1", Email: "admin@pharmacy.test", Name: "Ama Admin", Role: models.RoleAdmin}
}

func clientSession() Session {
	return Session{UserID: "client-1", Email: "kofi@example.test", Name: "Kofi Mensah", Role: models.RoleClient}
}

func staffSession(perms models.StaffPermissions) Session {
	return Session{UserID: "staff-1", Email: "staff@pharmacy.test", Name: "Efua Staff", Role: models.RoleStaff, Permissions: perms}
}

func testOrder(id, userID, status string, items ...models.OrderItem) *models.Order {
	now := time.Now()
	return &models.Order{
		ID:        id,
		UserID:    userID,
		UserName:  "Kofi Mensah",
		UserEmail: "kofi@example.test",
		Status:    status,
		Total:     models.Subtotal(items),
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTestEngine(orders *fakeOrderStore, users *fakeUserDirectory, pub *fakePublisher) *Engine {
	notifier := NewNotifier(users, newFakeNotificationStore(), newFakeUnreadCache())
	return NewEngine(orders, notifier, pub, 50)
}
