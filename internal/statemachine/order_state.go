// Package statemachine holds the order status transition rules.
package statemachine

import (
	"fmt"
	"strings"

	"kolia/internal/domain"
)

// rank orders the delivery pipeline; cancelled sits outside it
var rank = map[domain.OrderStatus]int{
	domain.StatusPending:          0,
	domain.StatusConfirmed:        1,
	domain.StatusPreparing:        2,
	domain.StatusReadyForDelivery: 3,
	domain.StatusOutForDelivery:   4,
	domain.StatusDelivered:        5,
}

// IsValid reports whether s is one of the known order statuses
func IsValid(s domain.OrderStatus) bool {
	return s.Valid()
}

// IsTerminal reports whether no transition may leave s
func IsTerminal(s domain.OrderStatus) bool {
	return s == domain.StatusDelivered || s == domain.StatusCancelled
}

// ValidTransitionsFrom returns every status reachable in one move from status
func ValidTransitionsFrom(status domain.OrderStatus) []domain.OrderStatus {
	if IsTerminal(status) || !IsValid(status) {
		return nil
	}
	var nexts []domain.OrderStatus
	for _, s := range domain.OrderStatuses {
		if s == domain.StatusCancelled || rank[s] > rank[status] {
			nexts = append(nexts, s)
		}
	}
	return nexts
}

// CanTransition checks whether an order may move from one status to another.
// Moves go forward through the pipeline (skipping steps is allowed) and any
// non-terminal order may be cancelled.
func CanTransition(from, to domain.OrderStatus) error {
	if !IsValid(to) {
		return fmt.Errorf("unknown status %q", to)
	}
	for _, s := range ValidTransitionsFrom(from) {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition: %s -> %s (allowed: %s)", from, to, describeValidFrom(from))
}

func describeValidFrom(status domain.OrderStatus) string {
	nexts := ValidTransitionsFrom(status)
	if len(nexts) == 0 {
		return "none, terminal state"
	}
	parts := make([]string, len(nexts))
	for i, s := range nexts {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
