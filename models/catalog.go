package models

// Product is a menu pizza. Catalog CRUD lives in the back office; the core
// only reads products for pricing and recipe resolution.
type Product struct {
	ID        int64
	Name      string
	BasePrice int64
}

// Size scales the product base price (S/M/L).
type Size struct {
	ID         int64
	Name       string
	Multiplier float64
}

// Border is an optional crust upgrade with a flat surcharge.
type Border struct {
	ID    int64
	Name  string
	Price int64
}

// Topping maps to at most one material (its implicit recipe, one unit each).
type Topping struct {
	ID         int64
	Name       string
	Price      int64
	MaterialID *int64
}

// Coupon discount is a percentage of the items subtotal, decremented on use.
type Coupon struct {
	ID              int64
	Code            string
	DiscountPercent int64
	Quantity        int64
}
