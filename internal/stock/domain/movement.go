package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yoozak/yoozak-backend/pkg/errors"
)

// MovementType classifies a stock movement
type MovementType string

const (
	MovementIn             MovementType = "in"
	MovementOut            MovementType = "out"
	MovementAdjustUp       MovementType = "adjust_up"
	MovementAdjustDown     MovementType = "adjust_down"
	MovementCustomerReturn MovementType = "customer_return"
	MovementInventoryCount MovementType = "inventory_count"
)

// MovementTypes lists every movement type in display order
var MovementTypes = []MovementType{
	MovementIn, MovementOut, MovementAdjustUp, MovementAdjustDown,
	MovementCustomerReturn, MovementInventoryCount,
}

// Valid reports whether t is a known movement type
func (t MovementType) Valid() bool {
	for _, known := range MovementTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsAbsolute reports whether the quantity replaces the stock instead of
// being added to or removed from it.
func (t MovementType) IsAbsolute() bool {
	return t == MovementInventoryCount
}

// Apply returns the quantity after moving qty pieces from before.
func (t MovementType) Apply(before, qty int) int {
	switch t {
	case MovementIn, MovementAdjustUp, MovementCustomerReturn:
		return before + qty
	case MovementOut, MovementAdjustDown:
		return before - qty
	case MovementInventoryCount:
		return qty
	}
	return before
}

// MovementLine moves Quantity pieces of a single variant
type MovementLine struct {
	VariantID string `json:"variant_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

// MovementRequest is one atomic multi-variant stock movement
type MovementRequest struct {
	Type    MovementType   `json:"type" validate:"required"`
	Lines   []MovementLine `json:"lines" validate:"required,min=1,dive"`
	Reason  string         `json:"reason" validate:"max=500"`
	OrderID *string        `json:"order_id,omitempty" validate:"omitempty,uuid"`
}

// Validate checks the request shape before any row is locked
func (r *MovementRequest) Validate() error {
	details := map[string]string{}

	if !r.Type.Valid() {
		details["type"] = fmt.Sprintf("unknown movement type %q", r.Type)
	}
	if len(r.Lines) == 0 {
		details["lines"] = "at least one line is required"
	}

	seen := make(map[string]struct{}, len(r.Lines))
	for i, l := range r.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if strings.TrimSpace(l.VariantID) == "" {
			details[field+".variant_id"] = "is required"
			continue
		}
		if _, dup := seen[l.VariantID]; dup {
			details[field+".variant_id"] = "duplicate variant in request"
		}
		seen[l.VariantID] = struct{}{}

		switch {
		case l.Quantity < 0:
			details[field+".quantity"] = "must not be negative"
		case l.Quantity == 0 && !r.Type.IsAbsolute():
			details[field+".quantity"] = "must be greater than 0"
		}
	}

	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}

// VariantIDs returns the request's variant IDs in ascending order, the
// order in which their rows must be locked.
func (r *MovementRequest) VariantIDs() []string {
	ids := make([]string, 0, len(r.Lines))
	for _, l := range r.Lines {
		ids = append(ids, l.VariantID)
	}
	sort.Strings(ids)
	return ids
}

// LockedVariant is the state of a variant row held under FOR UPDATE
type LockedVariant struct {
	ID        string `db:"id"`
	ArticleID string `db:"article_id"`
	Quantity  int    `db:"quantity"`
}

// Movement is an append-only record of one variant's stock change
type Movement struct {
	ID             string       `db:"id" json:"id"`
	ArticleID      string       `db:"article_id" json:"article_id"`
	VariantID      string       `db:"variant_id" json:"variant_id"`
	Type           MovementType `db:"movement_type" json:"type"`
	Quantity       int          `db:"quantity" json:"quantity"`
	QuantityBefore int          `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  int          `db:"quantity_after" json:"quantity_after"`
	Reason         string       `db:"reason" json:"reason"`
	OrderID        *string      `db:"order_id" json:"order_id,omitempty"`
	OperatorID     string       `db:"operator_id" json:"operator_id"`
	OperatorName   string       `db:"operator_name" json:"operator_name"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`

	// Joined for listings
	Reference string `db:"reference" json:"reference,omitempty"`
	Size      string `db:"size" json:"size,omitempty"`
	Color     string `db:"color" json:"color,omitempty"`
}

// Delta is the signed change the movement applied
func (m *Movement) Delta() int {
	return m.QuantityAfter - m.QuantityBefore
}

// Plan computes one movement per request line against the locked variants.
// Any line that would leave a variant below zero fails the whole plan.
func Plan(req *MovementRequest, locked map[string]LockedVariant, operatorID, operatorName string) ([]Movement, error) {
	movements := make([]Movement, 0, len(req.Lines))
	for _, l := range req.Lines {
		v, ok := locked[l.VariantID]
		if !ok {
			return nil, errors.NotFound("variant").WithDetails(map[string]string{"variant_id": l.VariantID})
		}

		after := req.Type.Apply(v.Quantity, l.Quantity)
		if after < 0 {
			return nil, errors.InsufficientStock(l.VariantID, v.Quantity, l.Quantity)
		}

		movements = append(movements, Movement{
			ArticleID:      v.ArticleID,
			VariantID:      v.ID,
			Type:           req.Type,
			Quantity:       l.Quantity,
			QuantityBefore: v.Quantity,
			QuantityAfter:  after,
			Reason:         req.Reason,
			OrderID:        req.OrderID,
			OperatorID:     operatorID,
			OperatorName:   operatorName,
		})
	}
	return movements, nil
}

// MovementFilter narrows movement listings
type MovementFilter struct {
	ArticleID string
	VariantID string
	Type      MovementType
	OrderID   string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
