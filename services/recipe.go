package services

import (
	"context"
	"errors"
	"fmt"

	"pizza-fulfillment/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Querier is the read/write surface shared by *pgxpool.Pool and pgx.Tx, so
// resolver and ledger primitives run both standalone and inside a checkout
// transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ResolveProductRequirements multiplies each recipe row of the product by the
// ordered quantity. A product without recipe rows yields an empty slice, not
// an error: recipes are optional.
func ResolveProductRequirements(ctx context.Context, q Querier, productID, quantity int64) ([]models.MaterialRequirement, error) {
	rows, err := q.Query(ctx, `
		SELECT r.material_id, m.name, r.quantity::text
		FROM recipes r
		INNER JOIN materials m ON m.id = r.material_id
		WHERE r.product_id = $1
		ORDER BY r.material_id`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve product %d requirements: %w", productID, err)
	}
	defer rows.Close()

	qty := decimal.NewFromInt(quantity)
	var reqs []models.MaterialRequirement
	for rows.Next() {
		var r models.MaterialRequirement
		var perUnit string
		if err := rows.Scan(&r.MaterialID, &r.MaterialName, &perUnit); err != nil {
			return nil, err
		}
		per, err := decimal.NewFromString(perUnit)
		if err != nil {
			return nil, fmt.Errorf("recipe quantity for material %d: %w", r.MaterialID, err)
		}
		r.Quantity = per.Mul(qty)
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

// ResolveToppingRequirement returns the topping's material requirement, or nil
// when the topping has no associated material (nothing to deduct). Topping
// recipes are always one material unit per topping unit.
func ResolveToppingRequirement(ctx context.Context, q Querier, toppingID, quantity int64) (*models.MaterialRequirement, error) {
	var materialID *int64
	var materialName *string
	err := q.QueryRow(ctx, `
		SELECT t.material_id, m.name
		FROM toppings t
		LEFT JOIN materials m ON m.id = t.material_id
		WHERE t.id = $1`,
		toppingID,
	).Scan(&materialID, &materialName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve topping %d requirement: %w", toppingID, err)
	}
	if materialID == nil {
		return nil, nil
	}
	name := ""
	if materialName != nil {
		name = *materialName
	}
	return &models.MaterialRequirement{
		MaterialID:   *materialID,
		MaterialName: name,
		Quantity:     decimal.NewFromInt(quantity),
	}, nil
}

// CombineRequirements sums requirements sharing a material id. Order of first
// appearance is preserved so shortage reports stay stable.
func CombineRequirements(reqs []models.MaterialRequirement) []models.MaterialRequirement {
	idx := make(map[int64]int, len(reqs))
	combined := make([]models.MaterialRequirement, 0, len(reqs))
	for _, r := range reqs {
		if i, ok := idx[r.MaterialID]; ok {
			combined[i].Quantity = combined[i].Quantity.Add(r.Quantity)
			continue
		}
		idx[r.MaterialID] = len(combined)
		combined = append(combined, r)
	}
	return combined
}
