package services

import (
	"context"
	"errors"
	"fmt"

	"pizza-fulfillment/db"
	"pizza-fulfillment/models"

	"github.com/jackc/pgx/v5"
)

const (
	StepStatusPending   = "PENDING"
	StepStatusShipping  = "SHIPPING"
	StepStatusCompleted = "COMPLETED"
	StepStatusCancelled = "CANCELLED"

	DeliveryStatusShipping  = "SHIPPING"
	DeliveryStatusCompleted = "COMPLETED"
	DeliveryStatusCancelled = "CANCELLED"
)

// ValidStepTransition reports whether a delivery step may move between two
// states. COMPLETED and CANCELLED are terminal; a step can be completed or
// cancelled straight from PENDING.
func ValidStepTransition(from, to string) bool {
	switch from {
	case StepStatusPending:
		return to == StepStatusShipping || to == StepStatusCompleted || to == StepStatusCancelled
	case StepStatusShipping:
		return to == StepStatusCompleted || to == StepStatusCancelled
	default:
		return false
	}
}

// CreateDeliveryRoute batches cooked, unassigned orders into one optimized
// route: load coordinates, ask the solver for the stop sequence, then in a
// single transaction persist the delivery with its steps, move every order to
// SHIPPING and assign the shipper. When optimization fails nothing is written.
func CreateDeliveryRoute(ctx context.Context, rc *RouteClient, shipperID int64, orderIDs []int64) (*models.Delivery, error) {
	if len(orderIDs) == 0 {
		return nil, fmt.Errorf("no orders selected")
	}
	if _, err := GetStaff(ctx, shipperID); err != nil {
		return nil, err
	}

	stops, err := loadRouteStops(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	depotLat, depotLng, ok, err := GetStoreLocation(ctx, db.Pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("store location: %w", ErrNotFound)
	}

	// The solver is called before the transaction opens: it has no local
	// side effects and must not hold row locks while blocking on HTTP.
	route, err := rc.CalculateOptimalRoute(ctx, depotLat, depotLng, stops)
	if err != nil {
		return nil, err
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	d := &models.Delivery{ShipperID: shipperID, Status: DeliveryStatusShipping}
	err = tx.QueryRow(ctx, `
		INSERT INTO deliveries (shipper_id, status)
		VALUES ($1, $2)
		RETURNING id, created_at`,
		shipperID, DeliveryStatusShipping,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert delivery: %w", err)
	}

	for i, stop := range route.Stops {
		step := models.DeliveryStep{
			DeliveryID:  d.ID,
			OrderID:     stop.OrderID,
			StepNumber:  i + 1,
			Status:      StepStatusPending,
			Lat:         stop.Lat,
			Lng:         stop.Lng,
			Distance:    stop.Distance,
			Duration:    stop.Duration,
			Instruction: stop.Instruction,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO delivery_steps (delivery_id, order_id, step_number, status, lat, lng, distance, duration, instruction)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			step.DeliveryID, step.OrderID, step.StepNumber, step.Status,
			step.Lat, step.Lng, step.Distance, step.Duration, step.Instruction,
		).Scan(&step.ID)
		if err != nil {
			return nil, fmt.Errorf("insert delivery step: %w", err)
		}
		d.Steps = append(d.Steps, step)

		// Guarded update: a concurrent dispatch of the same order makes this
		// match zero rows and aborts the whole route.
		tag, err := tx.Exec(ctx, `
			UPDATE orders
			SET status = $1, delivery_status = $1, shipper_id = $2, updated_at = now()
			WHERE id = $3 AND status = $4 AND shipper_id IS NULL`,
			OrderStatusShipping, shipperID, stop.OrderID, OrderStatusCooked,
		)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("order %d is not ready for dispatch or already assigned", stop.OrderID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// loadRouteStops fetches coordinates for the selected orders. Every order
// must exist, be COOKED and not yet assigned to a shipper.
func loadRouteStops(ctx context.Context, orderIDs []int64) ([]RouteStop, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, address, lat, lng
		FROM orders
		WHERE id = ANY($1) AND status = $2 AND shipper_id IS NULL`,
		orderIDs, OrderStatusCooked,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[int64]bool, len(orderIDs))
	var stops []RouteStop
	for rows.Next() {
		var s RouteStop
		if err := rows.Scan(&s.OrderID, &s.Address, &s.Lat, &s.Lng); err != nil {
			return nil, err
		}
		found[s.OrderID] = true
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range orderIDs {
		if !found[id] {
			return nil, fmt.Errorf("order %d not dispatchable: %w", id, ErrNotFound)
		}
	}
	return stops, nil
}

// GetDelivery loads a delivery with its steps in route order.
func GetDelivery(ctx context.Context, deliveryID int64) (*models.Delivery, error) {
	var d models.Delivery
	err := db.Pool.QueryRow(ctx, `
		SELECT id, shipper_id, status, created_at, start_time, end_time
		FROM deliveries WHERE id = $1`,
		deliveryID,
	).Scan(&d.ID, &d.ShipperID, &d.Status, &d.CreatedAt, &d.StartTime, &d.EndTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("delivery %d: %w", deliveryID, ErrNotFound)
		}
		return nil, err
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, delivery_id, order_id, step_number, status, lat, lng,
		       distance, duration, instruction, cancel_note, completed_at
		FROM delivery_steps
		WHERE delivery_id = $1
		ORDER BY step_number`,
		deliveryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s models.DeliveryStep
		if err := rows.Scan(&s.ID, &s.DeliveryID, &s.OrderID, &s.StepNumber, &s.Status,
			&s.Lat, &s.Lng, &s.Distance, &s.Duration, &s.Instruction, &s.CancelNote, &s.CompletedAt); err != nil {
			return nil, err
		}
		d.Steps = append(d.Steps, s)
	}
	return &d, rows.Err()
}

// lockStep fetches one step with its row locked for the transaction.
func lockStep(ctx context.Context, tx pgx.Tx, stepID int64) (*models.DeliveryStep, error) {
	var s models.DeliveryStep
	err := tx.QueryRow(ctx, `
		SELECT id, delivery_id, order_id, step_number, status, lat, lng
		FROM delivery_steps
		WHERE id = $1
		FOR UPDATE`,
		stepID,
	).Scan(&s.ID, &s.DeliveryID, &s.OrderID, &s.StepNumber, &s.Status, &s.Lat, &s.Lng)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("delivery step %d: %w", stepID, ErrNotFound)
		}
		return nil, err
	}
	return &s, nil
}

const (
	StepActionStart    = "start"
	StepActionComplete = "complete"
	StepActionCancel   = "cancel"
)

// TransitionStep is the single entry point callers use to drive a step
// through its lifecycle. note is only meaningful for cancel.
func TransitionStep(ctx context.Context, stepID int64, action, note string, lat, lng float64) error {
	switch action {
	case StepActionStart:
		return StartStep(ctx, stepID)
	case StepActionComplete:
		return CompleteStep(ctx, stepID, lat, lng)
	case StepActionCancel:
		return CancelStep(ctx, stepID, note, lat, lng)
	default:
		return fmt.Errorf("unknown step action: %s", action)
	}
}

// StartStep moves a PENDING step to SHIPPING. The first started step also
// stamps the delivery's start time.
func StartStep(ctx context.Context, stepID int64) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	step, err := lockStep(ctx, tx, stepID)
	if err != nil {
		return err
	}
	if !ValidStepTransition(step.Status, StepStatusShipping) {
		return &InvalidStepTransitionError{StepID: stepID, From: step.Status, To: StepStatusShipping}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE delivery_steps SET status = $1 WHERE id = $2`,
		StepStatusShipping, stepID,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE deliveries SET start_time = now() WHERE id = $1 AND start_time IS NULL`,
		step.DeliveryID,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CompleteStep closes a step as COMPLETED: the parent order becomes
// COMPLETED, the shipper's current location is appended to the order's
// location history, and when this was the last open step the delivery itself
// completes. All side effects share one transaction.
func CompleteStep(ctx context.Context, stepID int64, lat, lng float64) error {
	return closeStep(ctx, stepID, StepStatusCompleted, "", lat, lng)
}

// CancelStep closes a step as CANCELLED with a mandatory note. The parent
// order is cancelled and the location history appended, in one transaction.
func CancelStep(ctx context.Context, stepID int64, cancelNote string, lat, lng float64) error {
	if cancelNote == "" {
		return fmt.Errorf("cancel note is required")
	}
	return closeStep(ctx, stepID, StepStatusCancelled, cancelNote, lat, lng)
}

func closeStep(ctx context.Context, stepID int64, toStatus, cancelNote string, lat, lng float64) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	step, err := lockStep(ctx, tx, stepID)
	if err != nil {
		return err
	}
	if !ValidStepTransition(step.Status, toStatus) {
		return &InvalidStepTransitionError{StepID: stepID, From: step.Status, To: toStatus}
	}

	if toStatus == StepStatusCancelled {
		_, err = tx.Exec(ctx, `
			UPDATE delivery_steps
			SET status = $1, cancel_note = $2, completed_at = now()
			WHERE id = $3`,
			toStatus, cancelNote, stepID,
		)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE delivery_steps
			SET status = $1, completed_at = now()
			WHERE id = $2`,
			toStatus, stepID,
		)
	}
	if err != nil {
		return err
	}

	orderStatus := OrderStatusCompleted
	if toStatus == StepStatusCancelled {
		orderStatus = OrderStatusCancelled
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status = $1, delivery_status = $1, updated_at = now()
		WHERE id = $2`,
		orderStatus, step.OrderID,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_location_history (order_id, lat, lng)
		VALUES ($1, $2, $3)`,
		step.OrderID, lat, lng,
	); err != nil {
		return err
	}

	// When no open step remains the delivery is done, regardless of whether
	// the last stop completed or was cancelled.
	var open int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM delivery_steps
		WHERE delivery_id = $1 AND status IN ($2, $3)`,
		step.DeliveryID, StepStatusPending, StepStatusShipping,
	).Scan(&open)
	if err != nil {
		return err
	}
	if open == 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE deliveries SET status = $1, end_time = now() WHERE id = $2`,
			DeliveryStatusCompleted, step.DeliveryID,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
