package domain

import (
	stockdomain "github.com/yoozak/yoozak-backend/internal/stock/domain"
	"github.com/yoozak/yoozak-backend/pkg/permissions"
)

// Status is a step of the order workflow
type Status string

const (
	StatusUnassigned  Status = "unassigned"
	StatusAssigned    Status = "assigned"
	StatusPostponed   Status = "postponed"
	StatusUnreachable Status = "unreachable"
	StatusConfirmed   Status = "confirmed"
	StatusCancelled   Status = "cancelled"
	StatusPreparing   Status = "preparing"
	StatusPrepared    Status = "prepared"
	StatusShipped     Status = "shipped"
	StatusDelivered   Status = "delivered"
	StatusReturned    Status = "returned"
)

// Statuses lists every status in workflow order
var Statuses = []Status{
	StatusUnassigned, StatusAssigned, StatusPostponed, StatusUnreachable,
	StatusConfirmed, StatusCancelled, StatusPreparing, StatusPrepared,
	StatusShipped, StatusDelivered, StatusReturned,
}

var transitions = map[Status][]Status{
	StatusUnassigned:  {StatusAssigned},
	StatusAssigned:    {StatusConfirmed, StatusCancelled, StatusPostponed, StatusUnreachable},
	StatusPostponed:   {StatusConfirmed, StatusCancelled, StatusPostponed, StatusUnreachable},
	StatusUnreachable: {StatusConfirmed, StatusCancelled, StatusPostponed, StatusUnreachable},
	StatusConfirmed:   {StatusPreparing, StatusCancelled},
	StatusPreparing:   {StatusPrepared, StatusCancelled},
	StatusPrepared:    {StatusShipped},
	StatusShipped:     {StatusDelivered, StatusReturned},
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsFinal reports whether no transition leaves s
func (s Status) IsFinal() bool {
	return len(transitions[s]) == 0
}

// InConfirmation reports whether the order still awaits the customer's answer
func (s Status) InConfirmation() bool {
	return s == StatusAssigned || s == StatusPostponed || s == StatusUnreachable
}

// CanTransition reports whether the workflow allows from -> to
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s
func NextStatuses(s Status) []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// RequiredPermission names the permission an operator needs for from -> to.
// Confirmation operators decide on assigned orders, preparation operators
// run the warehouse steps and logistics handles shipping and its outcome.
func RequiredPermission(from, to Status) string {
	switch {
	case to == StatusAssigned:
		return permissions.OrdersAssign
	case from.InConfirmation():
		return permissions.OrdersConfirm
	case from == StatusConfirmed && to == StatusCancelled:
		return permissions.OrdersConfirm
	case from == StatusConfirmed || from == StatusPreparing:
		return permissions.OrdersPrepare
	default:
		return permissions.OrdersShip
	}
}

// StockEffect returns the stock movement a transition triggers, if any.
// Confirming reserves the goods, cancelling after confirmation puts them
// back and a return brings them in as a customer return.
func StockEffect(from, to Status) (stockdomain.MovementType, bool) {
	switch {
	case to == StatusConfirmed:
		return stockdomain.MovementOut, true
	case to == StatusCancelled && (from == StatusConfirmed || from == StatusPreparing):
		return stockdomain.MovementIn, true
	case from == StatusShipped && to == StatusReturned:
		return stockdomain.MovementCustomerReturn, true
	}
	return "", false
}

// TransitionRequest moves an order to another status
type TransitionRequest struct {
	To             Status  `json:"to" validate:"required"`
	Comment        string  `json:"comment" validate:"max=1000"`
	Carrier        *string `json:"carrier,omitempty" validate:"omitempty,max=64"`
	TrackingNumber *string `json:"tracking_number,omitempty" validate:"omitempty,max=64"`
	// OperatorID picks the confirmation operator when moving to assigned;
	// the acting operator is used when empty.
	OperatorID *string `json:"operator_id,omitempty" validate:"omitempty,uuid"`
}
