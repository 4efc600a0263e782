package services

import (
	"context"
	"fmt"
	"time"

	"pizza-fulfillment/db"
	"pizza-fulfillment/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// SumAvailable sums quantity over non-empty batches of a material.
func SumAvailable(ctx context.Context, q Querier, materialID int64) (decimal.Decimal, error) {
	var sum string
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)::text
		FROM inventory_batches
		WHERE material_id = $1 AND quantity > 0`,
		materialID,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum available for material %d: %w", materialID, err)
	}
	return decimal.NewFromString(sum)
}

// lockBatchesFIFO fetches and row-locks the non-empty batches of a material,
// oldest expiry first. The lock is held until the surrounding transaction
// ends, which makes the later check-then-deduct sequence atomic with respect
// to concurrent checkouts.
func lockBatchesFIFO(ctx context.Context, tx pgx.Tx, materialID int64) ([]models.InventoryBatch, error) {
	rows, err := tx.Query(ctx, `
		SELECT material_id, expired_date, quantity::text
		FROM inventory_batches
		WHERE material_id = $1 AND quantity > 0
		ORDER BY expired_date ASC
		FOR UPDATE`,
		materialID,
	)
	if err != nil {
		return nil, fmt.Errorf("lock batches for material %d: %w", materialID, err)
	}
	defer rows.Close()

	var batches []models.InventoryBatch
	for rows.Next() {
		var b models.InventoryBatch
		var qty string
		if err := rows.Scan(&b.MaterialID, &b.ExpiredDate, &qty); err != nil {
			return nil, err
		}
		if b.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// BatchDeduction is one planned subtraction from a specific batch.
type BatchDeduction struct {
	ExpiredDate time.Time
	Amount      decimal.Decimal
}

// PlanFIFODeduction walks batches in the given (oldest-expiry-first) order and
// plans per-batch subtractions until amount is satisfied. Each subtraction is
// capped at the batch quantity so no batch can go negative. ErrInventoryExhausted
// is returned when the batches cannot cover the amount; no plan is returned
// in that case.
func PlanFIFODeduction(batches []models.InventoryBatch, amount decimal.Decimal) ([]BatchDeduction, error) {
	remaining := amount
	var plan []BatchDeduction
	for _, b := range batches {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		take := decimal.Min(remaining, b.Quantity)
		if take.LessThanOrEqual(decimal.Zero) {
			continue
		}
		plan = append(plan, BatchDeduction{ExpiredDate: b.ExpiredDate, Amount: take})
		remaining = remaining.Sub(take)
	}
	if remaining.GreaterThan(decimal.Zero) {
		return nil, ErrInventoryExhausted
	}
	return plan, nil
}

func applyDeductions(ctx context.Context, tx pgx.Tx, materialID int64, plan []BatchDeduction) error {
	for _, d := range plan {
		_, err := tx.Exec(ctx, `
			UPDATE inventory_batches
			SET quantity = quantity - $1::numeric, updated_at = now()
			WHERE material_id = $2 AND expired_date = $3`,
			d.Amount.String(), materialID, d.ExpiredDate,
		)
		if err != nil {
			return fmt.Errorf("deduct batch (%d, %s): %w", materialID, d.ExpiredDate.Format("2006-01-02"), err)
		}
	}
	return nil
}

// DeductFIFO locks the material's batches, plans an oldest-expiry-first
// deduction and applies it. Must run inside the caller's transaction so a
// later failure rolls the subtractions back.
func DeductFIFO(ctx context.Context, tx pgx.Tx, materialID int64, amount decimal.Decimal) error {
	batches, err := lockBatchesFIFO(ctx, tx, materialID)
	if err != nil {
		return err
	}
	plan, err := PlanFIFODeduction(batches, amount)
	if err != nil {
		return err
	}
	return applyDeductions(ctx, tx, materialID, plan)
}

// Receive records an import: increments the batch for the exact
// (material, expiry) key or creates it.
func Receive(ctx context.Context, materialID int64, expiredDate time.Time, quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("receive quantity must be positive, got %s", quantity.String())
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO inventory_batches (material_id, expired_date, quantity, updated_at)
		VALUES ($1, $2, $3::numeric, now())
		ON CONFLICT (material_id, expired_date) DO UPDATE SET
			quantity = inventory_batches.quantity + EXCLUDED.quantity,
			updated_at = now()`,
		materialID, expiredDate, quantity.String(),
	)
	return err
}

// Dispose deletes one batch row, used for manual write-off of expired stock.
// Only batches whose expiry is already past should be disposed; the caller
// enforces that policy.
func Dispose(ctx context.Context, materialID int64, expiredDate time.Time) error {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM inventory_batches
		WHERE material_id = $1 AND expired_date = $2`,
		materialID, expiredDate,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("batch (%d, %s): %w", materialID, expiredDate.Format("2006-01-02"), ErrNotFound)
	}
	return nil
}

// DisposeExpired writes off every batch whose expiry date is before today.
// Returns the number of batches removed.
func DisposeExpired(ctx context.Context) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM inventory_batches
		WHERE expired_date < current_date`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// LowStockMaterial is a material whose usable stock is at or below its
// reorder warning limit.
type LowStockMaterial struct {
	Material  models.Material
	Available decimal.Decimal
}

// LowStockMaterials lists materials at or below their warning limit,
// counting only unexpired stock.
func LowStockMaterials(ctx context.Context) ([]LowStockMaterial, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT m.id, m.name, m.unit, m.warning_limit::text,
		       COALESCE(SUM(b.quantity) FILTER (WHERE b.expired_date >= current_date), 0)::text
		FROM materials m
		LEFT JOIN inventory_batches b ON b.material_id = m.id
		GROUP BY m.id, m.name, m.unit, m.warning_limit
		HAVING COALESCE(SUM(b.quantity) FILTER (WHERE b.expired_date >= current_date), 0) <= m.warning_limit
		ORDER BY m.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LowStockMaterial
	for rows.Next() {
		var ls LowStockMaterial
		var limit, avail string
		if err := rows.Scan(&ls.Material.ID, &ls.Material.Name, &ls.Material.Unit, &limit, &avail); err != nil {
			return nil, err
		}
		if ls.Material.WarningLimit, err = decimal.NewFromString(limit); err != nil {
			return nil, err
		}
		if ls.Available, err = decimal.NewFromString(avail); err != nil {
			return nil, err
		}
		out = append(out, ls)
	}
	return out, rows.Err()
}
