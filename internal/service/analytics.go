package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pharmacy-service/internal/models"
	"pharmacy-service/internal/util"
)

const sellerListSize = 10

// ProductSales aggregates sold quantity and revenue for one product.
type ProductSales struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Revenue   float64 `json:"revenue"`
}

// ExpiryBuckets partitions products by how soon they expire, relative
// to a reference time.
type ExpiryBuckets struct {
	WithinOneMonth   []models.Product `json:"within_one_month"`
	OneToThreeMonths []models.Product `json:"one_to_three_months"`
	ThreeToSixMonths []models.Product `json:"three_to_six_months"`
}

// Revenue sums the payable amount of every order whose status is in
// the sold set.
func Revenue(orders []models.Order, sold []string) float64 {
	var total float64
	for i := range orders {
		if statusIn(orders[i].Status, sold) {
			total += orders[i].GrandTotal()
		}
	}
	return total
}

// SalesByProduct aggregates per-product quantity and revenue over the
// line items of every sold order. Items match by product id; snapshot
// prices count, not current catalog prices.
func SalesByProduct(orders []models.Order, sold []string) []ProductSales {
	byProduct := make(map[string]*ProductSales)
	for i := range orders {
		if !statusIn(orders[i].Status, sold) {
			continue
		}
		for _, it := range orders[i].Items {
			sales, ok := byProduct[it.ProductID]
			if !ok {
				sales = &ProductSales{ProductID: it.ProductID, Name: it.Name}
				byProduct[it.ProductID] = sales
			}
			sales.Quantity += it.Quantity
			sales.Revenue += it.Price * float64(it.Quantity)
		}
	}

	out := make([]ProductSales, 0, len(byProduct))
	for _, sales := range byProduct {
		out = append(out, *sales)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// TopSellers returns the n best-selling products by quantity.
func TopSellers(sales []ProductSales, n int) []ProductSales {
	ranked := make([]ProductSales, len(sales))
	copy(ranked, sales)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Quantity > ranked[j].Quantity })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// SlowSellers returns the n worst-selling products by quantity.
func SlowSellers(sales []ProductSales, n int) []ProductSales {
	ranked := make([]ProductSales, len(sales))
	copy(ranked, sales)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Quantity < ranked[j].Quantity })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// BucketByExpiry partitions products into expiry windows relative to
// now. Products without an expiry date, or expiring beyond six months,
// are left out. Already-expired stock lands in the nearest bucket.
func BucketByExpiry(products []models.Product, now time.Time) ExpiryBuckets {
	oneMonth := now.AddDate(0, 1, 0)
	threeMonths := now.AddDate(0, 3, 0)
	sixMonths := now.AddDate(0, 6, 0)

	var buckets ExpiryBuckets
	for _, p := range products {
		if p.ExpiryDate == nil {
			continue
		}
		switch expiry := *p.ExpiryDate; {
		case !expiry.After(oneMonth):
			buckets.WithinOneMonth = append(buckets.WithinOneMonth, p)
		case !expiry.After(threeMonths):
			buckets.OneToThreeMonths = append(buckets.OneToThreeMonths, p)
		case !expiry.After(sixMonths):
			buckets.ThreeToSixMonths = append(buckets.ThreeToSixMonths, p)
		}
	}
	return buckets
}

// CountLowStock counts products at or below the threshold.
func CountLowStock(products []models.Product, threshold int) int {
	count := 0
	for _, p := range products {
		if p.Stock <= threshold {
			count++
		}
	}
	return count
}

func statusIn(status string, set []string) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// AnalyticsService computes the pharmacy dashboard from orders and the
// catalog. All derivations share one sold set so revenue and product
// rankings never disagree about which orders count.
type AnalyticsService struct {
	orders            OrderStore
	products          ProductStore
	soldStatuses      []string
	lowStockThreshold int
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(orders OrderStore, products ProductStore, soldStatuses []string, lowStockThreshold int) *AnalyticsService {
	return &AnalyticsService{
		orders:            orders,
		products:          products,
		soldStatuses:      soldStatuses,
		lowStockThreshold: lowStockThreshold,
	}
}

// DashboardSummary is the computed dashboard payload.
type DashboardSummary struct {
	TotalRevenue  float64        `json:"total_revenue"`
	TotalOrders   int            `json:"total_orders"`
	OpenOrders    int            `json:"open_orders"`
	TotalProducts int            `json:"total_products"`
	LowStockCount int            `json:"low_stock_count"`
	TopSellers    []ProductSales `json:"top_sellers"`
	SlowSellers   []ProductSales `json:"slow_sellers"`
	ExpiringStock ExpiryBuckets  `json:"expiring_stock"`
	SoldStatuses  []string       `json:"sold_statuses"`
	LowStockBelow int            `json:"low_stock_threshold"`
}

// Summary computes the dashboard for an analytics-capable caller.
func (a *AnalyticsService) Summary(ctx context.Context, sess Session) (*DashboardSummary, error) {
	ctx, span := util.StartSpan(ctx, "AnalyticsService.Summary")
	defer span.End()

	if !sess.CanViewAnalytics() {
		return nil, fmt.Errorf("%w: analytics access required", ErrPermissionDenied)
	}

	orders, err := a.orders.ListOrders(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	products, err := a.products.ListProducts(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	open := 0
	for i := range orders {
		if !models.IsTerminalStatus(orders[i].Status) {
			open++
		}
	}

	sales := SalesByProduct(orders, a.soldStatuses)
	return &DashboardSummary{
		TotalRevenue:  Revenue(orders, a.soldStatuses),
		TotalOrders:   len(orders),
		OpenOrders:    open,
		TotalProducts: len(products),
		LowStockCount: CountLowStock(products, a.lowStockThreshold),
		TopSellers:    TopSellers(sales, sellerListSize),
		SlowSellers:   SlowSellers(sales, sellerListSize),
		ExpiringStock: BucketByExpiry(products, time.Now()),
		SoldStatuses:  a.soldStatuses,
		LowStockBelow: a.lowStockThreshold,
	}, nil
}
