package order

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// MaxQuantity caps the quantity of a single order line.
const MaxQuantity = 100000

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero

	// MaxMoney is the largest amount a NUMERIC(12,2) column holds.
	MaxMoney = decimal.RequireFromString("9999999999.99")
)

// Line is the priced input for one order item.
type Line struct {
	ProductTypeID int64
	ProductSizeID int64
	Quantity      int
	UnitPrice     decimal.Decimal
	Notes         string
}

// Totals is the result of pricing a set of lines.
type Totals struct {
	LineTotals    []decimal.Decimal
	Subtotal      decimal.Decimal
	DiscountValue decimal.Decimal
	Total         decimal.Decimal
}

// ComputeTotals prices lines and applies the discount. Each line total is
// rounded half-up to two places before summing; the discount is clamped to
// [0, subtotal] so the total never goes negative. The calculator accepts an
// empty line set; callers enforce the one-item minimum.
func ComputeTotals(lines []Line, discountType DiscountType, discountAmount decimal.Decimal) (Totals, error) {
	t := Totals{LineTotals: make([]decimal.Decimal, len(lines)), Subtotal: zero}
	for i, l := range lines {
		lt := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
		t.LineTotals[i] = lt
		t.Subtotal = t.Subtotal.Add(lt)
	}

	var discount decimal.Decimal
	switch discountType {
	case DiscountFixed, "":
		discount = discountAmount
	case DiscountPercentage:
		discount = t.Subtotal.Mul(discountAmount).Div(hundred).Round(2)
	default:
		return Totals{}, errors.Errorf("unsupported discount type: %q", discountType)
	}

	t.DiscountValue = clamp(discount, t.Subtotal).Round(2)
	t.Total = t.Subtotal.Sub(t.DiscountValue).Round(2)
	return t, nil
}

// Due returns the outstanding balance, floored at zero.
func Due(total, advancePaid decimal.Decimal) decimal.Decimal {
	d := total.Sub(advancePaid)
	if d.IsNegative() {
		return zero
	}
	return d.Round(2)
}

func clamp(d, upper decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return decimal.Min(d, upper)
}
