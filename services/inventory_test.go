package services

import (
	"errors"
	"testing"
	"time"

	"pizza-fulfillment/models"

	"github.com/shopspring/decimal"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPlanFIFODeduction(t *testing.T) {
	// Two batches of fresh shrimp, oldest expiry first: 5 kg then 10 kg.
	batches := []models.InventoryBatch{
		{MaterialID: 1, ExpiredDate: day("2024-06-01"), Quantity: dec("5")},
		{MaterialID: 1, ExpiredDate: day("2024-07-01"), Quantity: dec("10")},
	}

	tests := []struct {
		name   string
		amount string
		want   []BatchDeduction
	}{
		{
			name:   "within oldest batch touches only that batch",
			amount: "3",
			want:   []BatchDeduction{{day("2024-06-01"), dec("3")}},
		},
		{
			name:   "exactly the oldest batch",
			amount: "5",
			want:   []BatchDeduction{{day("2024-06-01"), dec("5")}},
		},
		{
			name:   "spills into the second batch",
			amount: "8",
			want: []BatchDeduction{
				{day("2024-06-01"), dec("5")},
				{day("2024-07-01"), dec("3")},
			},
		},
		{
			name:   "consumes everything",
			amount: "15",
			want: []BatchDeduction{
				{day("2024-06-01"), dec("5")},
				{day("2024-07-01"), dec("10")},
			},
		},
		{
			name:   "fractional amount",
			amount: "5.25",
			want: []BatchDeduction{
				{day("2024-06-01"), dec("5")},
				{day("2024-07-01"), dec("0.25")},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanFIFODeduction(batches, dec(tt.amount))
			if err != nil {
				t.Fatalf("PlanFIFODeduction(%s): %v", tt.amount, err)
			}
			if len(plan) != len(tt.want) {
				t.Fatalf("plan has %d deductions, want %d", len(plan), len(tt.want))
			}
			for i, w := range tt.want {
				if !plan[i].ExpiredDate.Equal(w.ExpiredDate) {
					t.Errorf("deduction %d from batch %s, want %s",
						i, plan[i].ExpiredDate.Format("2006-01-02"), w.ExpiredDate.Format("2006-01-02"))
				}
				if !plan[i].Amount.Equal(w.Amount) {
					t.Errorf("deduction %d amount %s, want %s", i, plan[i].Amount, w.Amount)
				}
			}
		})
	}
}

func TestPlanFIFODeductionExhausted(t *testing.T) {
	batches := []models.InventoryBatch{
		{MaterialID: 1, ExpiredDate: day("2024-06-01"), Quantity: dec("5")},
		{MaterialID: 1, ExpiredDate: day("2024-07-01"), Quantity: dec("10")},
	}
	plan, err := PlanFIFODeduction(batches, dec("15.001"))
	if !errors.Is(err, ErrInventoryExhausted) {
		t.Fatalf("err = %v, want ErrInventoryExhausted", err)
	}
	if plan != nil {
		t.Errorf("exhausted plan should be nil, got %v", plan)
	}
}

func TestPlanFIFODeductionEmptyBatches(t *testing.T) {
	if _, err := PlanFIFODeduction(nil, dec("1")); !errors.Is(err, ErrInventoryExhausted) {
		t.Fatalf("err = %v, want ErrInventoryExhausted", err)
	}
	// Zero requirement needs no batches at all.
	plan, err := PlanFIFODeduction(nil, decimal.Zero)
	if err != nil {
		t.Fatalf("zero amount: %v", err)
	}
	if len(plan) != 0 {
		t.Errorf("zero amount plan should be empty, got %v", plan)
	}
}
