package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yoozak/yoozak-backend/pkg/money"
)

func TestRate(t *testing.T) {
	assert.Equal(t, 0.0, Rate(3, 0))
	assert.Equal(t, 0.6667, Rate(2, 3))
	assert.Equal(t, 1.0, Rate(4, 4))
}

func TestApplyStatusCounts(t *testing.T) {
	var d Dashboard
	d.ApplyStatusCounts([]StatusCount{
		{Status: "unassigned", Count: 5},
		{Status: "confirmed", Count: 2},
		{Status: "shipped", Count: 1},
		{Status: "delivered", Count: 3},
		{Status: "returned", Count: 1},
		{Status: "cancelled", Count: 3},
	})

	assert.Equal(t, int64(15), d.TotalOrders)
	assert.Equal(t, int64(3), d.OrdersByStatus["delivered"])
	// 7 confirmed or later against 3 cancelled
	assert.Equal(t, 0.7, d.ConfirmationRate)
	assert.Equal(t, 0.75, d.DeliveryRate)
}

func TestApplyRevenue(t *testing.T) {
	var d Dashboard
	d.ApplyRevenue(Revenue{Orders: 3, Total: 100000})
	assert.Equal(t, money.Money(100000), d.DeliveredRevenue)
	assert.Equal(t, money.Money(33333), d.AverageBasket)

	d.ApplyRevenue(Revenue{})
	assert.Equal(t, money.Money(0), d.AverageBasket)
}
