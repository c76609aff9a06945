package service

import (
	"context"
	"fmt"
	"time"

	"pharmacy-service/internal/util"
)

// InvoiceLine is one priced row on an invoice.
type InvoiceLine struct {
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// Invoice is a rendered billing view of an order. Amounts are exact;
// formatting to two decimals happens at display time.
type Invoice struct {
	OrderID        string        `json:"order_id"`
	Reference      string        `json:"reference"`
	IssuedAt       time.Time     `json:"issued_at"`
	CustomerName   string        `json:"customer_name"`
	CustomerEmail  string        `json:"customer_email"`
	Status         string        `json:"status"`
	DeliveryOption string        `json:"delivery_option,omitempty"`
	PaymentMethod  string        `json:"payment_method,omitempty"`
	Lines          []InvoiceLine `json:"lines"`
	Subtotal       float64       `json:"subtotal"`
	DeliveryFee    float64       `json:"delivery_fee"`
	GrandTotal     float64       `json:"grand_total"`
}

// Invoice renders a billing view of an order. The customer can invoice
// their own orders; staff need the invoice permission for others'.
func (e *Engine) Invoice(ctx context.Context, sess Session, orderID string) (*Invoice, error) {
	ctx, span := util.StartSpan(ctx, "Engine.Invoice")
	defer span.End()

	order, err := e.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if order.UserID != sess.UserID && !sess.CanGenerateInvoices() {
		return nil, fmt.Errorf("%w: invoice access denied", ErrPermissionDenied)
	}

	lines := make([]InvoiceLine, 0, len(order.Items))
	for _, it := range order.Items {
		lines = append(lines, InvoiceLine{
			Name:      it.Name,
			Unit:      it.Unit,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			LineTotal: it.Price * float64(it.Quantity),
		})
	}

	return &Invoice{
		OrderID:        order.ID,
		Reference:      fmt.Sprintf("INV-%s", order.ShortID()),
		IssuedAt:       time.Now(),
		CustomerName:   order.UserName,
		CustomerEmail:  order.UserEmail,
		Status:         order.Status,
		DeliveryOption: order.DeliveryOption,
		PaymentMethod:  order.PaymentMethod,
		Lines:          lines,
		Subtotal:       order.Total,
		DeliveryFee:    order.DeliveryFee,
		GrandTotal:     order.GrandTotal(),
	}, nil
}
