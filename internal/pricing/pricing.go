package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/phamdt/aurora-backend/pkg/enums"
)

// Line is one cart line as seen by the pricing engine. The effective price
// is the sale price when present and positive, otherwise the unit price.
type Line struct {
	UnitPrice int64
	SalePrice *int64
	Qty       int
}

// Descriptor is an immutable discount value fetched by code lookup. Usage
// limits are enforced by the promotions collaborator, not here.
type Descriptor struct {
	Code             string
	Kind             enums.DiscountKind
	Value            int64
	MinOrderTotal    *int64
	MaxDiscountValue *int64
}

// Violation explains why a discount was dropped. It is informational: the
// checkout proceeds at full price rather than failing.
type Violation string

const ViolationBelowMinimum Violation = "below minimum order"

// Totals is the result of ComputeTotals. Amounts are integer units of the
// store currency.
type Totals struct {
	Subtotal       int64
	DiscountAmount int64
	Total          int64
	Violation      Violation
}

var oneHundred = decimal.NewFromInt(100)

// EffectivePrice returns the price a line is charged at.
func EffectivePrice(line Line) int64 {
	if line.SalePrice != nil && *line.SalePrice > 0 {
		return *line.SalePrice
	}
	return line.UnitPrice
}

// ComputeTotals turns a cart snapshot and an optional discount into the
// amounts an order is charged. It is pure and deterministic; the checkout
// preview and the authoritative order creation both call this exact
// function so the two can never disagree.
func ComputeTotals(lines []Line, discount *Descriptor) Totals {
	var subtotal int64
	for _, line := range lines {
		subtotal += EffectivePrice(line) * int64(line.Qty)
	}

	totals := Totals{Subtotal: subtotal, Total: subtotal}
	if discount == nil {
		return totals
	}

	if discount.MinOrderTotal != nil && subtotal < *discount.MinOrderTotal {
		totals.Violation = ViolationBelowMinimum
		return totals
	}

	var amount int64
	switch discount.Kind {
	case enums.DiscountKindFixed:
		amount = discount.Value
	case enums.DiscountKindPercentage:
		amount = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(discount.Value)).
			Div(oneHundred).
			Floor().
			IntPart()
	default:
		return totals
	}

	if discount.MaxDiscountValue != nil && amount > *discount.MaxDiscountValue {
		amount = *discount.MaxDiscountValue
	}
	if amount < 0 {
		amount = 0
	}
	if amount > subtotal {
		amount = subtotal
	}

	totals.DiscountAmount = amount
	totals.Total = subtotal - amount
	return totals
}
