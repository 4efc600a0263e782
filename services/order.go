package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"pizza-fulfillment/db"
	"pizza-fulfillment/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusCooking   = "COOKING"
	OrderStatusCooked    = "COOKED"
	OrderStatusShipping  = "SHIPPING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"

	PaymentStatusUnpaid  = "UNPAID"
	PaymentStatusWaiting = "WAITING"
	PaymentStatusPaid    = "PAID"

	PaymentMethodCash    = "cash"
	PaymentMethodBanking = "banking"
)

const defaultRatePerKm = 5000

// Checkout locks inventory rows; when the defensive exhaustion signal still
// fires the whole transaction is retried a bounded number of times.
const maxCheckoutAttempts = 3

// CalcShippingFee rounds the distance up to 0.1 km and charges per km.
func CalcShippingFee(distanceKm float64, ratePerKm int64) int64 {
	if ratePerKm == 0 {
		ratePerKm = defaultRatePerKm
	}
	rounded := math.Ceil(distanceKm*10) / 10
	return int64(math.Round(rounded * float64(ratePerKm)))
}

func HaversineDistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return math.Round(R*c*100) / 100
}

// LineTotal freezes one line's price: base price scaled by size, plus border
// and topping surcharges, times quantity.
func LineTotal(basePrice int64, sizeMultiplier float64, borderPrice, toppingPrice, quantity int64) int64 {
	unit := int64(math.Round(float64(basePrice)*sizeMultiplier)) + borderPrice + toppingPrice
	return unit * quantity
}

// ApplyCouponDiscount subtracts a percentage of the items subtotal.
// Discount semantics are percentage only.
func ApplyCouponDiscount(itemsTotal, discountPercent int64) int64 {
	if discountPercent <= 0 {
		return itemsTotal
	}
	if discountPercent >= 100 {
		return 0
	}
	return itemsTotal - itemsTotal*discountPercent/100
}

// CreateOrder runs the whole checkout as one transaction: resolve material
// requirements for every line, lock and check inventory, persist the order
// with frozen line totals, consume the coupon and deduct stock FIFO by
// expiry. Any failure rolls everything back. ErrInventoryExhausted is
// retried as a transient failure.
func CreateOrder(ctx context.Context, input models.CreateOrderInput, ratePerKm int64) (*models.Order, error) {
	if err := validateOrderInput(input); err != nil {
		return nil, err
	}
	var lastErr error
	for attempt := 0; attempt < maxCheckoutAttempts; attempt++ {
		order, err := createOrderOnce(ctx, input, ratePerKm)
		if err == nil {
			return order, nil
		}
		lastErr = err
		if !errors.Is(err, ErrInventoryExhausted) {
			return nil, err
		}
	}
	return nil, lastErr
}

func validateOrderInput(input models.CreateOrderInput) error {
	if len(input.Lines) == 0 {
		return fmt.Errorf("order has no lines")
	}
	if input.Address == "" {
		return fmt.Errorf("address is required")
	}
	if input.PaymentMethod != PaymentMethodCash && input.PaymentMethod != PaymentMethodBanking {
		return fmt.Errorf("invalid payment method: %s", input.PaymentMethod)
	}
	for _, l := range input.Lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("line quantity must be positive")
		}
	}
	return nil
}

func createOrderOnce(ctx context.Context, input models.CreateOrderInput, ratePerKm int64) (*models.Order, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1-2. Per-line requirements, flattened and combined per material.
	var allReqs []models.MaterialRequirement
	details := make([]models.OrderDetail, 0, len(input.Lines))
	var itemsTotal int64
	for _, line := range input.Lines {
		detail, reqs, err := priceAndResolveLine(ctx, tx, line)
		if err != nil {
			return nil, err
		}
		details = append(details, *detail)
		itemsTotal += detail.TotalAmount
		allReqs = append(allReqs, reqs...)
	}
	combined := CombineRequirements(allReqs)

	// 3-4. Lock batches in deterministic material order, then check
	// availability against the locked rows. Shortages abort before any write.
	sort.Slice(combined, func(i, j int) bool { return combined[i].MaterialID < combined[j].MaterialID })
	locked := make(map[int64][]models.InventoryBatch, len(combined))
	var shortages []models.MaterialShortage
	for _, req := range combined {
		batches, err := lockBatchesFIFO(ctx, tx, req.MaterialID)
		if err != nil {
			return nil, err
		}
		locked[req.MaterialID] = batches
		available := decimal.Zero
		for _, b := range batches {
			available = available.Add(b.Quantity)
		}
		if available.LessThan(req.Quantity) {
			shortages = append(shortages, models.MaterialShortage{
				MaterialName: req.MaterialName,
				Required:     req.Quantity,
				Available:    available,
			})
		}
	}
	if len(shortages) > 0 {
		return nil, &InsufficientMaterialsError{Shortages: shortages}
	}

	// Coupon is locked and consumed in the same transaction so it is never
	// spent without a corresponding order.
	var couponID *int64
	discounted := itemsTotal
	if input.CouponCode != "" {
		coupon, err := lockCoupon(ctx, tx, input.CouponCode)
		if err != nil {
			return nil, err
		}
		couponID = &coupon.ID
		discounted = ApplyCouponDiscount(itemsTotal, coupon.DiscountPercent)
	}

	storeLat, storeLng, ok, err := GetStoreLocation(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("store location: %w", ErrNotFound)
	}
	distanceKm := HaversineDistanceKm(storeLat, storeLng, input.Lat, input.Lng)
	shippingFee := CalcShippingFee(distanceKm, ratePerKm)
	totalAmount := discounted + shippingFee

	paymentStatus := PaymentStatusUnpaid
	if input.PaymentMethod == PaymentMethodBanking {
		paymentStatus = PaymentStatusWaiting
	}

	// 5. Persist the order and its lines with PENDING status.
	order := &models.Order{
		TrackingCode:   uuid.New().String(),
		CustomerID:     input.CustomerID,
		Address:        input.Address,
		Lat:            input.Lat,
		Lng:            input.Lng,
		Status:         OrderStatusPending,
		PaymentStatus:  paymentStatus,
		DeliveryStatus: OrderStatusPending,
		ItemsTotal:     itemsTotal,
		ShippingFee:    shippingFee,
		TotalAmount:    totalAmount,
		CouponID:       couponID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			tracking_code, customer_id, address, lat, lng, status,
			payment_status, delivery_status, items_total, shipping_fee,
			total_amount, coupon_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`,
		order.TrackingCode, order.CustomerID, order.Address, order.Lat, order.Lng,
		order.Status, order.PaymentStatus, order.DeliveryStatus,
		order.ItemsTotal, order.ShippingFee, order.TotalAmount, order.CouponID,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	for i := range details {
		details[i].OrderID = order.ID
		_, err := tx.Exec(ctx, `
			INSERT INTO order_details (order_id, product_id, size_id, border_id, topping_id, quantity, total_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			details[i].OrderID, details[i].ProductID, details[i].SizeID,
			details[i].BorderID, details[i].ToppingID, details[i].Quantity, details[i].TotalAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("insert order detail: %w", err)
		}
	}
	order.Details = details

	// 6-7. FIFO deduction against the batches locked above.
	for _, req := range combined {
		plan, err := PlanFIFODeduction(locked[req.MaterialID], req.Quantity)
		if err != nil {
			return nil, err
		}
		if err := applyDeductions(ctx, tx, req.MaterialID, plan); err != nil {
			return nil, err
		}
	}

	if couponID != nil {
		_, err := tx.Exec(ctx, `UPDATE coupons SET quantity = quantity - 1 WHERE id = $1`, *couponID)
		if err != nil {
			return nil, fmt.Errorf("consume coupon: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

// priceAndResolveLine loads the catalog rows a line references, freezes its
// total and resolves its material requirements (product recipe plus the
// optional topping material).
func priceAndResolveLine(ctx context.Context, tx pgx.Tx, line models.OrderLine) (*models.OrderDetail, []models.MaterialRequirement, error) {
	var basePrice int64
	err := tx.QueryRow(ctx, `SELECT base_price FROM products WHERE id = $1`, line.ProductID).Scan(&basePrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("product %d: %w", line.ProductID, ErrNotFound)
		}
		return nil, nil, err
	}
	var multiplier float64
	err = tx.QueryRow(ctx, `SELECT multiplier FROM sizes WHERE id = $1`, line.SizeID).Scan(&multiplier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("size %d: %w", line.SizeID, ErrNotFound)
		}
		return nil, nil, err
	}
	var borderPrice int64
	if line.BorderID != nil {
		err = tx.QueryRow(ctx, `SELECT price FROM borders WHERE id = $1`, *line.BorderID).Scan(&borderPrice)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, fmt.Errorf("border %d: %w", *line.BorderID, ErrNotFound)
			}
			return nil, nil, err
		}
	}

	reqs, err := ResolveProductRequirements(ctx, tx, line.ProductID, line.Quantity)
	if err != nil {
		return nil, nil, err
	}

	var toppingPrice int64
	if line.ToppingID != nil {
		err = tx.QueryRow(ctx, `SELECT price FROM toppings WHERE id = $1`, *line.ToppingID).Scan(&toppingPrice)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, fmt.Errorf("topping %d: %w", *line.ToppingID, ErrNotFound)
			}
			return nil, nil, err
		}
		toppingReq, err := ResolveToppingRequirement(ctx, tx, *line.ToppingID, line.Quantity)
		if err != nil {
			return nil, nil, err
		}
		if toppingReq != nil {
			reqs = append(reqs, *toppingReq)
		}
	}

	detail := &models.OrderDetail{
		ProductID:   line.ProductID,
		SizeID:      line.SizeID,
		BorderID:    line.BorderID,
		ToppingID:   line.ToppingID,
		Quantity:    line.Quantity,
		TotalAmount: LineTotal(basePrice, multiplier, borderPrice, toppingPrice, line.Quantity),
	}
	return detail, reqs, nil
}

func lockCoupon(ctx context.Context, tx pgx.Tx, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := tx.QueryRow(ctx, `
		SELECT id, code, discount_percent, quantity
		FROM coupons WHERE code = $1
		FOR UPDATE`,
		code,
	).Scan(&c.ID, &c.Code, &c.DiscountPercent, &c.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("coupon %q: %w", code, ErrNotFound)
		}
		return nil, err
	}
	if c.Quantity <= 0 {
		return nil, fmt.Errorf("coupon %q: %w", code, ErrCouponDepleted)
	}
	return &c, nil
}

// GetOrder loads one order with its detail lines.
func GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var o models.Order
	err := db.Pool.QueryRow(ctx, `
		SELECT id, tracking_code, customer_id, address, lat, lng, status,
		       payment_status, delivery_status, shipper_id, items_total,
		       shipping_fee, total_amount, coupon_id, created_at
		FROM orders WHERE id = $1`,
		orderID,
	).Scan(&o.ID, &o.TrackingCode, &o.CustomerID, &o.Address, &o.Lat, &o.Lng,
		&o.Status, &o.PaymentStatus, &o.DeliveryStatus, &o.ShipperID,
		&o.ItemsTotal, &o.ShippingFee, &o.TotalAmount, &o.CouponID, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return nil, err
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT order_id, product_id, size_id, border_id, topping_id, quantity, total_amount
		FROM order_details WHERE order_id = $1
		ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var d models.OrderDetail
		if err := rows.Scan(&d.OrderID, &d.ProductID, &d.SizeID, &d.BorderID, &d.ToppingID, &d.Quantity, &d.TotalAmount); err != nil {
			return nil, err
		}
		o.Details = append(o.Details, d)
	}
	return &o, rows.Err()
}

// UpdateOrderStatus moves an order through the kitchen lifecycle
// (PENDING -> COOKING -> COOKED). Shipping transitions belong to the
// delivery step state machine.
func UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	if status != OrderStatusCooking && status != OrderStatusCooked && status != OrderStatusCancelled {
		return fmt.Errorf("invalid kitchen status: %s", status)
	}
	tag, err := db.Pool.Exec(ctx, `
		UPDATE orders SET status = $1, updated_at = now()
		WHERE id = $2 AND status NOT IN ($3, $4)`,
		status, orderID, OrderStatusCompleted, OrderStatusCancelled,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	return nil
}
