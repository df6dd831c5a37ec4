// Package domain holds the reporting figures computed over orders and stock.
package domain

import (
	"math"
	"time"

	"github.com/yoozak/yoozak-backend/pkg/money"
)

// Range is a half-open reporting window [From, To) over order creation time
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ConfirmedOrLater lists the statuses an order reaches once confirmed
var ConfirmedOrLater = []string{"confirmed", "preparing", "prepared", "shipped", "delivered", "returned"}

// Daily metric names
const (
	MetricOrdersCreated      = "orders_created"
	MetricOrdersCreatedValue = "orders_created_value"
	MetricRevenueDelivered   = "revenue_delivered"
)

// StatusMetric names the daily counter of orders reaching a status
func StatusMetric(status string) string {
	return "orders_" + status
}

// TopArticle ranks an article by delivered quantity
type TopArticle struct {
	ArticleID string      `db:"article_id" json:"article_id"`
	Reference string      `db:"reference" json:"reference"`
	Name      string      `db:"name" json:"name"`
	Quantity  int64       `db:"quantity" json:"quantity"`
	Revenue   money.Money `db:"revenue" json:"revenue"`
}

// StatusCount is the number of orders in a status
type StatusCount struct {
	Status string `db:"status"`
	Count  int64  `db:"count"`
}

// Revenue sums delivered orders
type Revenue struct {
	Orders int64       `db:"orders"`
	Total  money.Money `db:"total"`
}

// StockSummary describes the stock at the time of the request
type StockSummary struct {
	LowStockVariants int64       `db:"low_stock_variants" json:"low_stock_variants"`
	Pieces           int64       `db:"pieces" json:"pieces"`
	Valuation        money.Money `db:"valuation" json:"valuation"`
}

// Dashboard gathers the headline figures for a range
type Dashboard struct {
	Range            Range            `json:"range"`
	OrdersByStatus   map[string]int64 `json:"orders_by_status"`
	TotalOrders      int64            `json:"total_orders"`
	ConfirmationRate float64          `json:"confirmation_rate"`
	DeliveryRate     float64          `json:"delivery_rate"`
	DeliveredRevenue money.Money      `json:"delivered_revenue"`
	AverageBasket    money.Money      `json:"average_basket"`
	TopArticles      []TopArticle     `json:"top_articles"`
	Stock            StockSummary     `json:"stock"`
}

// ApplyStatusCounts fills the order figures derived from per-status counts
func (d *Dashboard) ApplyStatusCounts(counts []StatusCount) {
	d.OrdersByStatus = make(map[string]int64, len(counts))
	d.TotalOrders = 0
	for _, c := range counts {
		d.OrdersByStatus[c.Status] = c.Count
		d.TotalOrders += c.Count
	}

	var confirmed int64
	for _, s := range ConfirmedOrLater {
		confirmed += d.OrdersByStatus[s]
	}
	d.ConfirmationRate = Rate(confirmed, confirmed+d.OrdersByStatus["cancelled"])

	delivered := d.OrdersByStatus["delivered"]
	d.DeliveryRate = Rate(delivered, delivered+d.OrdersByStatus["returned"])
}

// ApplyRevenue sets delivered revenue and the average basket
func (d *Dashboard) ApplyRevenue(r Revenue) {
	d.DeliveredRevenue = r.Total
	if r.Orders > 0 {
		d.AverageBasket = money.Money(int64(math.Round(float64(r.Total) / float64(r.Orders))))
	} else {
		d.AverageBasket = 0
	}
}

// OperatorPerformance summarizes a confirmation operator's work
type OperatorPerformance struct {
	OperatorID       string  `db:"operator_id" json:"operator_id"`
	Name             string  `db:"name" json:"name"`
	Assigned         int64   `db:"assigned" json:"assigned"`
	Confirmed        int64   `db:"confirmed" json:"confirmed"`
	Cancelled        int64   `db:"cancelled" json:"cancelled"`
	Pending          int64   `db:"pending" json:"pending"`
	ConfirmationRate float64 `db:"-" json:"confirmation_rate"`
}

// DailyMetric is one counter of one day
type DailyMetric struct {
	Day    time.Time `db:"day" json:"day"`
	Metric string    `db:"metric" json:"metric"`
	Value  int64     `db:"value" json:"value"`
}

// Rate returns num/den rounded to four decimals, 0 when den is 0
func Rate(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return math.Round(float64(num)/float64(den)*10000) / 10000
}
