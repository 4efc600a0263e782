package services

import (
	"errors"
	"fmt"
	"strings"

	"pizza-fulfillment/models"
)

// ErrNotFound marks a missing product, material, order, coupon or staff row.
var ErrNotFound = errors.New("not found")

// ErrInventoryExhausted means batches ran out mid-deduction. With batch rows
// locked for the whole checkout this should not happen; it is kept as a
// defensive signal and treated as retryable by CreateOrder.
var ErrInventoryExhausted = errors.New("inventory exhausted")

// ErrCouponDepleted means the coupon exists but its quantity is zero.
var ErrCouponDepleted = errors.New("coupon depleted")

// InsufficientMaterialsError aborts a checkout cleanly: the report lists every
// material the inventory cannot cover. No rows are written when it is returned.
type InsufficientMaterialsError struct {
	Shortages []models.MaterialShortage
}

func (e *InsufficientMaterialsError) Error() string {
	parts := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		parts[i] = fmt.Sprintf("%s (required %s, available %s)",
			s.MaterialName, s.Required.String(), s.Available.String())
	}
	return "insufficient materials: " + strings.Join(parts, ", ")
}

// InvalidStepTransitionError is returned when a delivery step is asked to
// leave a terminal state or skip the lifecycle order.
type InvalidStepTransitionError struct {
	StepID int64
	From   string
	To     string
}

func (e *InvalidStepTransitionError) Error() string {
	return fmt.Sprintf("invalid step transition: step %d cannot go from %s to %s", e.StepID, e.From, e.To)
}

// RouteOptimizationError wraps any failure talking to the routing solver.
// The caller must not create a delivery when it is returned.
type RouteOptimizationError struct {
	Reason string
	Err    error
}

func (e *RouteOptimizationError) Error() string {
	if e.Err != nil {
		return "route optimization failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "route optimization failed: " + e.Reason
}

func (e *RouteOptimizationError) Unwrap() error { return e.Err }
