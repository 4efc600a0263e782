package models

import "time"

// OrderLine is one cart line submitted at checkout.
type OrderLine struct {
	ProductID int64
	SizeID    int64
	BorderID  *int64
	ToppingID *int64
	Quantity  int64
}

// CreateOrderInput is everything the checkout caller provides. Caller
// identity and payment method arrive explicitly; there is no ambient session.
type CreateOrderInput struct {
	CustomerID    int64
	Address       string
	Lat           float64
	Lng           float64
	PaymentMethod string // cash or banking
	CouponCode    string // optional
	Lines         []OrderLine
}

// Order is a row from the orders table.
type Order struct {
	ID             int64
	TrackingCode   string
	CustomerID     int64
	Address        string
	Lat            float64
	Lng            float64
	Status         string
	PaymentStatus  string
	DeliveryStatus string
	ShipperID      *int64
	ItemsTotal     int64
	ShippingFee    int64
	TotalAmount    int64
	CouponID       *int64
	CreatedAt      time.Time

	Details []OrderDetail
}

// OrderDetail is one persisted order line. TotalAmount is the line total
// frozen at checkout; it is never recomputed afterwards.
type OrderDetail struct {
	OrderID     int64
	ProductID   int64
	SizeID      int64
	BorderID    *int64
	ToppingID   *int64
	Quantity    int64
	TotalAmount int64
}

// OrderLocationHistory is an append-only audit row written on step transitions.
type OrderLocationHistory struct {
	ID        int64
	OrderID   int64
	Lat       float64
	Lng       float64
	CreatedAt time.Time
}
