package domain

import (
	"fmt"
	"sort"
	"strings"
)

type EntityType string

const (
	EntityProduct EntityType = "product"
	EntityOrder   EntityType = "order"
	EntityPayment EntityType = "payment"
)

// TransitionRule gates one edge of a state machine.
type TransitionRule struct {
	Roles []Role
}

func (r TransitionRule) allows(role Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// StateMachine validates status transitions for one entity type. The
// same table-driven machine backs products, orders and payments, so
// all three enforce edges and role gating identically.
type StateMachine struct {
	entity      EntityType
	transitions map[string]map[string]TransitionRule
}

var adminOnly = TransitionRule{Roles: []Role{RoleAdmin}}

// ProductStateMachine covers submission through settlement, with
// rejection reachable only before approval. Admins may park a
// submission in pending_review before deciding; the review stop is
// optional and approval straight from submitted stays legal.
func ProductStateMachine() *StateMachine {
	return &StateMachine{
		entity: EntityProduct,
		transitions: map[string]map[string]TransitionRule{
			string(ProductSubmitted): {
				string(ProductPendingReview): adminOnly,
				string(ProductApproved):      adminOnly,
				string(ProductRejected):      adminOnly,
			},
			string(ProductPendingReview): {
				string(ProductApproved): adminOnly,
				string(ProductRejected): adminOnly,
			},
			string(ProductApproved): {
				string(ProductScheduledCollection): adminOnly,
			},
			string(ProductScheduledCollection): {
				string(ProductCollected): adminOnly,
			},
			string(ProductCollected): {
				string(ProductPaymentProcessed): adminOnly,
			},
			string(ProductPaymentProcessed): {},
			string(ProductRejected):         {},
		},
	}
}

// OrderStateMachine covers placement through delivery, with
// cancellation reachable until the order starts processing.
func OrderStateMachine() *StateMachine {
	return &StateMachine{
		entity: EntityOrder,
		transitions: map[string]map[string]TransitionRule{
			string(OrderPending): {
				string(OrderConfirmed): adminOnly,
				string(OrderCancelled): adminOnly,
			},
			string(OrderConfirmed): {
				string(OrderProcessing): adminOnly,
				string(OrderCancelled):  adminOnly,
			},
			string(OrderProcessing): {
				string(OrderShipped): adminOnly,
			},
			string(OrderShipped): {
				string(OrderDelivered): adminOnly,
			},
			string(OrderDelivered): {},
			string(OrderCancelled): {},
		},
	}
}

// PaymentStateMachine covers the forward-only payout progression.
func PaymentStateMachine() *StateMachine {
	return &StateMachine{
		entity: EntityPayment,
		transitions: map[string]map[string]TransitionRule{
			string(PaymentPending): {
				string(PaymentCompleted):    adminOnly,
				string(PaymentPaidToFarmer): adminOnly,
			},
			string(PaymentCompleted): {
				string(PaymentPaidToFarmer): adminOnly,
			},
			string(PaymentPaidToFarmer): {},
		},
	}
}

// Validate reports whether actor may move the entity from one status
// to another. Illegal edges return ErrInvalidTransition naming the
// pair; legal edges attempted by the wrong role return
// ErrPermissionDenied.
func (sm *StateMachine) Validate(from, to string, actor Actor) error {
	targets, ok := sm.transitions[from]
	if !ok {
		return fmt.Errorf("%w: %s has no state %q", ErrInvalidTransition, sm.entity, from)
	}
	rule, ok := targets[to]
	if !ok {
		if allowed := sm.AllowedTargets(from); len(allowed) > 0 {
			return fmt.Errorf("%w: %s cannot move from %s to %s, allowed: %s",
				ErrInvalidTransition, sm.entity, from, to, strings.Join(allowed, ", "))
		}
		return fmt.Errorf("%w: %s cannot move from %s to %s", ErrInvalidTransition, sm.entity, from, to)
	}
	if !rule.allows(actor.Role) {
		return fmt.Errorf("%w: role %s may not move %s from %s to %s",
			ErrPermissionDenied, actor.Role, sm.entity, from, to)
	}
	return nil
}

// Terminal reports whether no transitions leave the given status.
func (sm *StateMachine) Terminal(status string) bool {
	targets, ok := sm.transitions[status]
	return ok && len(targets) == 0
}

// AllowedTargets returns the statuses reachable from the given one,
// regardless of role, in stable order.
func (sm *StateMachine) AllowedTargets(from string) []string {
	targets := sm.transitions[from]
	out := make([]string, 0, len(targets))
	for to := range targets {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}
