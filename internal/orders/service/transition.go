package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/yoozak/yoozak-backend/internal/orders/domain"
	stockdomain "github.com/yoozak/yoozak-backend/internal/stock/domain"
	stockservice "github.com/yoozak/yoozak-backend/internal/stock/service"
	"github.com/yoozak/yoozak-backend/pkg/actor"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/permissions"
)

// Transition moves an order to req.To. The order row is locked for the
// whole change; when the step moves stock, the movement runs in the same
// transaction so a refused movement leaves the order where it was.
func (s *OrderService) Transition(ctx context.Context, id string, req *domain.TransitionRequest) (*domain.Order, error) {
	if !req.To.Valid() {
		return nil, errors.Validation(map[string]string{"to": "unknown order status"})
	}

	who := actor.FromContextOrSystem(ctx)

	var (
		order   *domain.Order
		change  *domain.StatusChange
		applied *stockservice.Applied
	)
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		o, err := s.orderRepo.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		from := o.Status

		if !domain.CanTransition(from, req.To) {
			return errors.InvalidTransition(string(from), string(req.To))
		}
		if err := authorize(who, o, from, req.To); err != nil {
			return err
		}
		if err := applyWorkflowFields(o, who, req); err != nil {
			return err
		}
		if req.To == domain.StatusAssigned {
			if err := s.checkAssignee(ctx, tx, *o.ConfirmationOperatorID); err != nil {
				return err
			}
		}

		if mt, ok := domain.StockEffect(from, req.To); ok {
			movement := &stockdomain.MovementRequest{
				Type:    mt,
				Reason:  fmt.Sprintf("order %s: %s -> %s", o.Number, from, req.To),
				OrderID: &o.ID,
			}
			for _, l := range o.Lines {
				movement.Lines = append(movement.Lines, stockdomain.MovementLine{VariantID: l.VariantID, Quantity: l.Quantity})
			}
			if applied, err = s.stock.ApplyInTx(ctx, tx, movement); err != nil {
				return err
			}
		}

		o.Status = req.To
		if err := s.orderRepo.UpdateWorkflow(ctx, tx, o); err != nil {
			return err
		}

		change = &domain.StatusChange{
			OrderID:      o.ID,
			From:         from,
			To:           req.To,
			OperatorID:   who.ID,
			OperatorName: who.FullName(),
			Comment:      strings.TrimSpace(req.Comment),
		}
		if err := s.orderRepo.InsertHistory(ctx, tx, change); err != nil {
			return err
		}

		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("from", string(change.From)).
		Str("to", string(change.To)).
		Str("operator_id", who.ID).
		Msg("order status changed")

	s.stock.Notify(ctx, applied)
	s.publisher.PublishStatusChanged(ctx, order, change)
	return order, nil
}

// authorize applies the role gate of the step. Confirmation operators may
// only act on orders assigned to them.
func authorize(who *actor.Actor, o *domain.Order, from, to domain.Status) error {
	perm := domain.RequiredPermission(from, to)
	if !permissions.HasPermission(who.Permissions, perm) {
		return errors.Forbidden(fmt.Sprintf("%s -> %s requires %s", from, to, perm))
	}

	if who.Role == permissions.RoleConfirmation && perm == permissions.OrdersConfirm {
		if o.ConfirmationOperatorID == nil || *o.ConfirmationOperatorID != who.ID {
			return errors.Forbidden("order is assigned to another operator")
		}
	}
	return nil
}

// checkAssignee requires the operator receiving an order to be active and
// allowed to confirm orders.
func (s *OrderService) checkAssignee(ctx context.Context, tx *sqlx.Tx, operatorID string) error {
	role, active, err := s.orderRepo.Assignee(ctx, tx, operatorID)
	if errors.Is(err, errors.ErrNotFound) {
		return errors.Validation(map[string]string{"operator_id": "unknown operator"})
	}
	if err != nil {
		return err
	}
	if !active {
		return errors.Validation(map[string]string{"operator_id": "operator is disabled"})
	}
	if !permissions.HasPermission(permissions.ForRole(role), permissions.OrdersConfirm) {
		return errors.Validation(map[string]string{"operator_id": "operator cannot confirm orders"})
	}
	return nil
}

// allowedTransitions filters the workflow's next statuses by the gates who passes
func allowedTransitions(who *actor.Actor, o *domain.Order) []domain.Status {
	var out []domain.Status
	for _, to := range domain.NextStatuses(o.Status) {
		if authorize(who, o, o.Status, to) == nil {
			out = append(out, to)
		}
	}
	return out
}

func applyWorkflowFields(o *domain.Order, who *actor.Actor, req *domain.TransitionRequest) error {
	switch req.To {
	case domain.StatusAssigned:
		operatorID := who.ID
		if req.OperatorID != nil && *req.OperatorID != "" {
			operatorID = *req.OperatorID
		}
		o.ConfirmationOperatorID = &operatorID

	case domain.StatusPreparing:
		if !who.IsSystem() {
			id := who.ID
			o.PreparationOperatorID = &id
		}

	case domain.StatusShipped:
		if req.Carrier == nil || strings.TrimSpace(*req.Carrier) == "" {
			return errors.Validation(map[string]string{"carrier": "is required to ship an order"})
		}
		carrier := strings.TrimSpace(*req.Carrier)
		o.Carrier = &carrier
		if req.TrackingNumber != nil {
			tracking := strings.TrimSpace(*req.TrackingNumber)
			o.TrackingNumber = &tracking
		}
	}
	return nil
}

// AssignRequest hands orders to a confirmation operator
type AssignRequest struct {
	OrderIDs   []string `json:"order_ids" validate:"required,min=1,dive,uuid"`
	OperatorID string   `json:"operator_id" validate:"required,uuid"`
}

// AssignOrders gives orders still awaiting confirmation to an operator.
// Unassigned orders move to assigned; assigned, postponed and unreachable
// orders keep their status and change hands.
func (s *OrderService) AssignOrders(ctx context.Context, req *AssignRequest) ([]domain.Order, error) {
	who := actor.FromContextOrSystem(ctx)
	if !permissions.HasPermission(who.Permissions, permissions.OrdersAssign) {
		return nil, errors.Forbidden("assigning orders requires " + permissions.OrdersAssign)
	}

	var (
		orders  []domain.Order
		changes []*domain.StatusChange
	)
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		orders, err = s.orderRepo.LockMany(ctx, tx, uniqueSorted(req.OrderIDs))
		if err != nil {
			return err
		}
		if len(orders) != len(uniqueSorted(req.OrderIDs)) {
			return errors.NotFound("order")
		}
		if err := s.checkAssignee(ctx, tx, req.OperatorID); err != nil {
			return err
		}

		for i := range orders {
			o := &orders[i]
			if o.Status != domain.StatusUnassigned && !o.Status.InConfirmation() {
				return errors.InvalidTransition(string(o.Status), string(domain.StatusAssigned))
			}

			operatorID := req.OperatorID
			o.ConfirmationOperatorID = &operatorID

			from := o.Status
			if from == domain.StatusUnassigned {
				o.Status = domain.StatusAssigned
			}
			if err := s.orderRepo.UpdateWorkflow(ctx, tx, o); err != nil {
				return err
			}

			if from != o.Status {
				change := &domain.StatusChange{
					OrderID:      o.ID,
					From:         from,
					To:           o.Status,
					OperatorID:   who.ID,
					OperatorName: who.FullName(),
					Comment:      "assigned to " + operatorID,
				}
				if err := s.orderRepo.InsertHistory(ctx, tx, change); err != nil {
					return err
				}
				changes = append(changes, change)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*domain.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		byID[orders[i].ID] = &orders[i]
	}

	s.logger.Info().Int("count", len(orders)).Str("operator_id", req.OperatorID).Msg("orders assigned")
	s.publisher.PublishAssigned(ctx, ids, req.OperatorID)
	for _, c := range changes {
		s.publisher.PublishStatusChanged(ctx, byID[c.OrderID], c)
	}
	return orders, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
