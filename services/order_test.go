package services

import (
	"testing"

	"pizza-fulfillment/models"
)

func TestCalcShippingFee(t *testing.T) {
	tests := []struct {
		distanceKm float64
		ratePerKm  int64
		want       int64
	}{
		{1.0, 5000, 5000},
		{1.04, 5000, 5500}, // rounded up to 1.1 km
		{2.5, 5000, 12500},
		{0, 5000, 0},
		{3.0, 0, 15000}, // zero rate falls back to the default
		{1.21, 4000, 5200},
	}
	for _, tt := range tests {
		got := CalcShippingFee(tt.distanceKm, tt.ratePerKm)
		if got != tt.want {
			t.Errorf("CalcShippingFee(%v, %d) = %d, want %d", tt.distanceKm, tt.ratePerKm, got, tt.want)
		}
	}
}

func TestHaversineDistanceKm(t *testing.T) {
	// Same point.
	if d := HaversineDistanceKm(10.7769, 106.7009, 10.7769, 106.7009); d != 0 {
		t.Errorf("distance to self = %v, want 0", d)
	}
	// Roughly one degree of latitude is 111 km.
	d := HaversineDistanceKm(10.0, 106.0, 11.0, 106.0)
	if d < 110 || d > 112 {
		t.Errorf("one degree latitude = %v km, want ~111", d)
	}
}

func TestLineTotal(t *testing.T) {
	tests := []struct {
		name           string
		basePrice      int64
		sizeMultiplier float64
		borderPrice    int64
		toppingPrice   int64
		quantity       int64
		want           int64
	}{
		{"plain medium", 100000, 1.0, 0, 0, 1, 100000},
		{"large multiplier", 100000, 1.5, 0, 0, 1, 150000},
		{"border and topping", 100000, 1.0, 20000, 15000, 1, 135000},
		{"quantity scales the unit", 100000, 1.5, 20000, 0, 2, 340000},
		{"small size rounds", 99999, 0.8, 0, 0, 1, 79999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LineTotal(tt.basePrice, tt.sizeMultiplier, tt.borderPrice, tt.toppingPrice, tt.quantity)
			if got != tt.want {
				t.Errorf("LineTotal = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestApplyCouponDiscount(t *testing.T) {
	tests := []struct {
		itemsTotal int64
		percent    int64
		want       int64
	}{
		{200000, 10, 180000},
		{200000, 0, 200000},
		{200000, 100, 0},
		{200000, 150, 0},
		{199999, 10, 180000}, // integer division truncates the discount
		{200000, -5, 200000},
	}
	for _, tt := range tests {
		got := ApplyCouponDiscount(tt.itemsTotal, tt.percent)
		if got != tt.want {
			t.Errorf("ApplyCouponDiscount(%d, %d) = %d, want %d", tt.itemsTotal, tt.percent, got, tt.want)
		}
	}
}

func TestValidateOrderInput(t *testing.T) {
	borderID := int64(1)
	valid := models.CreateOrderInput{
		CustomerID:    1,
		Address:       "12 Nguyễn Huệ, Quận 1",
		Lat:           10.77,
		Lng:           106.70,
		PaymentMethod: PaymentMethodCash,
		Lines: []models.OrderLine{
			{ProductID: 1, SizeID: 1, BorderID: &borderID, Quantity: 2},
		},
	}
	if err := validateOrderInput(valid); err != nil {
		t.Errorf("valid input rejected: %v", err)
	}

	noLines := valid
	noLines.Lines = nil
	if err := validateOrderInput(noLines); err == nil {
		t.Error("expected error for empty lines")
	}

	noAddress := valid
	noAddress.Address = ""
	if err := validateOrderInput(noAddress); err == nil {
		t.Error("expected error for empty address")
	}

	badMethod := valid
	badMethod.PaymentMethod = "crypto"
	if err := validateOrderInput(badMethod); err == nil {
		t.Error("expected error for unknown payment method")
	}

	badQty := valid
	badQty.Lines = []models.OrderLine{{ProductID: 1, SizeID: 1, Quantity: 0}}
	if err := validateOrderInput(badQty); err == nil {
		t.Error("expected error for zero quantity")
	}
}
