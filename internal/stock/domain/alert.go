package domain

import (
	"fmt"
	"time"
)

// Alert types and severities
const (
	AlertLowStock   = "low_stock"
	AlertOutOfStock = "out_of_stock"

	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is raised when an article's total stock falls to or under its threshold
type Alert struct {
	ID             string     `db:"id" json:"id"`
	ArticleID      string     `db:"article_id" json:"article_id"`
	Reference      string     `db:"reference" json:"reference"`
	ArticleName    string     `db:"article_name" json:"article_name"`
	AlertType      string     `db:"alert_type" json:"alert_type"`
	Severity       string     `db:"severity" json:"severity"`
	Message        string     `db:"message" json:"message"`
	CurrentStock   int        `db:"current_stock" json:"current_stock"`
	Threshold      int        `db:"threshold" json:"threshold"`
	IsAcknowledged bool       `db:"is_acknowledged" json:"is_acknowledged"`
	AcknowledgedBy *string    `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// AlertFilter narrows alert listings
type AlertFilter struct {
	Acknowledged *bool
	AlertType    string
	ArticleID    string
	Limit        int
	Offset       int
}

// ArticleStock is an article's total stock before and after a movement
type ArticleStock struct {
	ArticleID   string `db:"id"`
	Reference   string `db:"reference"`
	Name        string `db:"name"`
	Threshold   int    `db:"low_stock_threshold"`
	TotalBefore int    `db:"total_before"`
	TotalAfter  int    `db:"total_after"`
}

// CrossedThreshold returns the alert to raise when the movement took the
// article from above its threshold to at or under it, or emptied it.
func (s ArticleStock) CrossedThreshold() (*Alert, bool) {
	if s.TotalAfter >= s.TotalBefore {
		return nil, false
	}

	var alertType, severity string
	switch {
	case s.TotalAfter == 0:
		alertType, severity = AlertOutOfStock, SeverityCritical
	case s.TotalBefore > s.Threshold && s.TotalAfter <= s.Threshold:
		alertType, severity = AlertLowStock, SeverityWarning
		if s.TotalAfter <= s.Threshold/2 {
			severity = SeverityCritical
		}
	default:
		return nil, false
	}

	return &Alert{
		ArticleID:    s.ArticleID,
		Reference:    s.Reference,
		ArticleName:  s.Name,
		AlertType:    alertType,
		Severity:     severity,
		Message:      fmt.Sprintf("%s (%s) is %s (%d/%d)", s.Name, s.Reference, alertType, s.TotalAfter, s.Threshold),
		CurrentStock: s.TotalAfter,
		Threshold:    s.Threshold,
	}, true
}

// VariantLevel is one line of the stock level report
type VariantLevel struct {
	VariantID string  `db:"variant_id" json:"variant_id"`
	Size      string  `db:"size" json:"size"`
	Color     string  `db:"color" json:"color"`
	Barcode   *string `db:"barcode" json:"barcode,omitempty"`
	Quantity  int     `db:"quantity" json:"quantity"`
}

// ArticleLevel groups variant levels under their article
type ArticleLevel struct {
	ArticleID  string         `db:"article_id" json:"article_id"`
	Reference  string         `db:"reference" json:"reference"`
	Name       string         `db:"name" json:"name"`
	Category   string         `db:"category" json:"category"`
	TotalStock int            `db:"total_stock" json:"total_stock"`
	Threshold  int            `db:"low_stock_threshold" json:"low_stock_threshold"`
	LowStock   bool           `db:"low_stock" json:"low_stock"`
	Variants   []VariantLevel `db:"-" json:"variants"`
}

// LevelFilter narrows stock level reports
type LevelFilter struct {
	Search       string
	Category     string
	LowStockOnly bool
	Limit        int
	Offset       int
}
