package order

import (
	"crypto/rand"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Summary holds the three derived monetary fields of an order.
type Summary struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// LineTotal derives a line item's total from its unit price and quantity,
// rounded to 2 decimal places. Rounding here and in Totals is banker's
// rounding (round half to even), applied consistently at every step.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).RoundBank(2)
}

// Totals computes an order's monetary summary as a pure function of its
// current line items: subtotal is the sum of line totals, tax is
// subtotal x taxRate rounded to 2 places, total is subtotal + tax rounded to
// 2 places. Zero items yields all-zero totals. It never persists anything;
// callers write the fields back inside the same transaction as the mutation
// that triggered the recalculation.
func Totals(items []OrderItem, taxRate decimal.Decimal) (Summary, error) {
	if taxRate.IsNegative() {
		return Summary{}, ErrNegativeTaxRate
	}

	subtotal := decimal.Zero
	for _, it := range items {
		if it.LineTotal.IsNegative() {
			return Summary{}, errors.Errorf("line total for item %q is negative", it.Name)
		}
		subtotal = subtotal.Add(it.LineTotal)
	}
	subtotal = subtotal.RoundBank(2)

	tax := subtotal.Mul(taxRate).RoundBank(2)
	total := subtotal.Add(tax).RoundBank(2)

	return Summary{Subtotal: subtotal, Tax: tax, Total: total}, nil
}

// pickupCodeLen is the length of generated pickup codes.
const pickupCodeLen = 8

// pickupAlphabet deliberately has 32 characters so that random bytes map to
// characters without modulo bias. 0, 1, I, and O are excluded to keep codes
// unambiguous when read aloud at the counter.
const pickupAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewPickupCode generates an 8-character uppercase pickup code from
// crypto/rand. Uniqueness is enforced by the database's unique constraint
// with a bounded retry in the repository, not by the token's entropy alone.
func NewPickupCode() string {
	buf := make([]byte, pickupCodeLen)
	// rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = pickupAlphabet[int(b)%len(pickupAlphabet)]
	}
	return string(buf)
}

// EnsurePickupCode assigns a pickup code if the order has none. It is
// idempotent: once a code is set, saving the order again never changes it.
func (o *Order) EnsurePickupCode() {
	if o.PickupCode == "" {
		o.PickupCode = NewPickupCode()
	}
}
