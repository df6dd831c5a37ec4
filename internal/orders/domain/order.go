package domain

import (
	"time"

	"github.com/yoozak/yoozak-backend/pkg/money"
)

// Source tells how an order entered the system
type Source string

const (
	SourceManual Source = "manual"
	SourceImport Source = "import"
)

// Order is a customer order moving through confirmation, preparation and delivery
type Order struct {
	ID                     string      `db:"id" json:"id"`
	Number                 string      `db:"number" json:"number"`
	ExternalRef            *string     `db:"external_ref" json:"external_ref,omitempty"`
	Source                 Source      `db:"source" json:"source"`
	CustomerName           string      `db:"customer_name" json:"customer_name"`
	Phone                  string      `db:"phone" json:"phone"`
	City                   string      `db:"city" json:"city"`
	Address                string      `db:"address" json:"address"`
	Status                 Status      `db:"status" json:"status"`
	ShippingFee            money.Money `db:"shipping_fee" json:"shipping_fee"`
	Total                  money.Money `db:"total" json:"total"`
	ConfirmationOperatorID *string     `db:"confirmation_operator_id" json:"confirmation_operator_id,omitempty"`
	PreparationOperatorID  *string     `db:"preparation_operator_id" json:"preparation_operator_id,omitempty"`
	Carrier                *string     `db:"carrier" json:"carrier,omitempty"`
	TrackingNumber         *string     `db:"tracking_number" json:"tracking_number,omitempty"`
	Notes                  string      `db:"notes" json:"notes"`
	CreatedAt              time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time   `db:"updated_at" json:"updated_at"`

	Lines []Line `db:"-" json:"lines,omitempty"`

	// AllowedTransitions lists the next statuses the requesting operator may set
	AllowedTransitions []Status `db:"-" json:"allowed_transitions,omitempty"`
}

// ItemCount is the number of pieces in the order
func (o *Order) ItemCount() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// Line is one variant of an order, priced when the order was created
type Line struct {
	ID        string      `db:"id" json:"id"`
	OrderID   string      `db:"order_id" json:"order_id"`
	ArticleID string      `db:"article_id" json:"article_id"`
	VariantID string      `db:"variant_id" json:"variant_id"`
	Quantity  int         `db:"quantity" json:"quantity"`
	UnitPrice money.Money `db:"unit_price" json:"unit_price"`
	LineTotal money.Money `db:"line_total" json:"line_total"`

	// Joined for display
	Reference string `db:"reference" json:"reference,omitempty"`
	Name      string `db:"name" json:"name,omitempty"`
	Size      string `db:"size" json:"size,omitempty"`
	Color     string `db:"color" json:"color,omitempty"`
}

// StatusChange is one entry of an order's status history
type StatusChange struct {
	ID           string    `db:"id" json:"id"`
	OrderID      string    `db:"order_id" json:"order_id"`
	From         Status    `db:"from_status" json:"from"`
	To           Status    `db:"to_status" json:"to"`
	OperatorID   string    `db:"operator_id" json:"operator_id"`
	OperatorName string    `db:"operator_name" json:"operator_name"`
	Comment      string    `db:"comment" json:"comment"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Filter narrows order listings
type Filter struct {
	Status     Status
	OperatorID string
	City       string
	Search     string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
