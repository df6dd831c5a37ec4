// Package domain holds the catalog types and the pricing rules shared by
// the catalog, stock and order services.
package domain

import (
	"time"

	"github.com/yoozak/yoozak-backend/pkg/money"
)

// Phase is the commercial lifecycle stage of an article
type Phase string

const (
	PhaseActive      Phase = "active"
	PhaseLiquidation Phase = "liquidation"
	PhaseTest        Phase = "test"
)

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	switch p {
	case PhaseActive, PhaseLiquidation, PhaseTest:
		return true
	}
	return false
}

// Article is a catalog product. Stock is held on its variants;
// TotalStock is the denormalized sum kept in sync by stock movements.
type Article struct {
	ID                string       `db:"id" json:"id"`
	Reference         string       `db:"reference" json:"reference"`
	Name              string       `db:"name" json:"name"`
	Description       string       `db:"description" json:"description"`
	Category          string       `db:"category" json:"category"`
	Gender            string       `db:"gender" json:"gender"`
	Color             string       `db:"color" json:"color"`
	Phase             Phase        `db:"phase" json:"phase"`
	BasePrice         money.Money  `db:"base_price" json:"base_price"`
	PurchasePrice     money.Money  `db:"purchase_price" json:"purchase_price"`
	CurrentPrice      money.Money  `db:"current_price" json:"current_price"`
	IsUpsell          bool         `db:"is_upsell" json:"is_upsell"`
	UpsellPrice2      *money.Money `db:"upsell_price_2" json:"upsell_price_2,omitempty"`
	UpsellPrice3      *money.Money `db:"upsell_price_3" json:"upsell_price_3,omitempty"`
	UpsellPrice4      *money.Money `db:"upsell_price_4" json:"upsell_price_4,omitempty"`
	UpsellPrice5      *money.Money `db:"upsell_price_5" json:"upsell_price_5,omitempty"`
	TotalStock        int          `db:"total_stock" json:"total_stock"`
	LowStockThreshold int          `db:"low_stock_threshold" json:"low_stock_threshold"`
	IsActive          bool         `db:"is_active" json:"is_active"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`

	Variants []Variant `db:"-" json:"variants,omitempty"`
}

// UnitPrice returns the per-unit price for an order line of qty pieces.
// Upsell articles use the tier price for 2..5 pieces (5+ share the 5 tier)
// when that tier is set; otherwise the current price applies.
func (a *Article) UnitPrice(qty int) money.Money {
	if !a.IsUpsell || qty < 2 {
		return a.CurrentPrice
	}

	var tier *money.Money
	switch {
	case qty == 2:
		tier = a.UpsellPrice2
	case qty == 3:
		tier = a.UpsellPrice3
	case qty == 4:
		tier = a.UpsellPrice4
	default:
		tier = a.UpsellPrice5
	}

	if tier == nil || *tier <= 0 {
		return a.CurrentPrice
	}
	return *tier
}

// Variant is a size/color combination of an article carrying stock
type Variant struct {
	ID        string    `db:"id" json:"id"`
	ArticleID string    `db:"article_id" json:"article_id"`
	Size      string    `db:"size" json:"size"`
	Color     string    `db:"color" json:"color"`
	Barcode   *string   `db:"barcode" json:"barcode,omitempty"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ArticleFilter narrows article listings
type ArticleFilter struct {
	Search          string
	Category        string
	Phase           Phase
	LowStockOnly    bool
	IncludeInactive bool
	Limit           int
	Offset          int
}
