package models

import "time"

// Delivery is one dispatched multi-stop route assigned to a shipper.
// Its step count is fixed at creation; routes are immutable once dispatched.
type Delivery struct {
	ID        int64
	ShipperID int64
	Status    string
	CreatedAt time.Time
	StartTime *time.Time
	EndTime   *time.Time

	Steps []DeliveryStep
}

// DeliveryStep is one stop on a route, in solver order. Lat/lng, distance,
// duration and instruction come from the routing solver.
type DeliveryStep struct {
	ID          int64
	DeliveryID  int64
	OrderID     int64
	StepNumber  int
	Status      string
	Lat         float64
	Lng         float64
	Distance    float64 // meters, store to stop
	Duration    int64   // seconds
	Instruction string
	CancelNote  *string
	CompletedAt *time.Time
}

// Staff is the shipper read side; staff administration is out of scope.
type Staff struct {
	ID             int64
	FullName       string
	Phone          string
	TelegramChatID *int64
}
