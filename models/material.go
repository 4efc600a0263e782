package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Material is a raw ingredient tracked by the inventory ledger.
type Material struct {
	ID           int64
	Name         string
	Unit         string // kg, g, ml, l
	WarningLimit decimal.Decimal
}

const (
	UnitKg = "kg"
	UnitG  = "g"
	UnitMl = "ml"
	UnitL  = "l"
)

// InventoryBatch is one (material, expiry date) stock row. The pair is the
// atomicity unit: deductions and disposal operate per batch, never below zero.
type InventoryBatch struct {
	MaterialID  int64
	ExpiredDate time.Time
	Quantity    decimal.Decimal
}

// MaterialRequirement is the amount of one material an order line consumes.
type MaterialRequirement struct {
	MaterialID   int64
	MaterialName string
	Quantity     decimal.Decimal
}

// MaterialShortage reports one material the inventory cannot cover.
type MaterialShortage struct {
	MaterialName string
	Required     decimal.Decimal
	Available    decimal.Decimal
}
