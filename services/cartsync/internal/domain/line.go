package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LineKey identifies a cart line. Two additions with the same key merge.
type LineKey struct {
	ProductID string
	Size      string
	Color     string
}

// String renders the key as "product|size|color".
func (k LineKey) String() string {
	return k.ProductID + "|" + k.Size + "|" + k.Color
}

// ParseLineKey inverts LineKey.String. Size and color are taken from the
// right so a product id containing "|" still round-trips.
func ParseLineKey(s string) (LineKey, error) {
	parts := strings.Split(s, "|")
	if len(parts) < 3 {
		return LineKey{}, fmt.Errorf("invalid line key %q", s)
	}
	n := len(parts)
	k := LineKey{
		ProductID: strings.Join(parts[:n-2], "|"),
		Size:      parts[n-2],
		Color:     parts[n-1],
	}
	if k.ProductID == "" {
		return LineKey{}, fmt.Errorf("invalid line key %q: empty product id", s)
	}
	return k, nil
}

// Line is one purchasable configuration of a product in the cart.
type Line struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Size     string  `json:"size"`
	Color    string  `json:"color"`
}

// Key returns the composite key of the line.
func (l Line) Key() LineKey {
	return LineKey{ProductID: l.Product.ID, Size: l.Size, Color: l.Color}
}

// Subtotal is unit price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func cloneLines(lines []Line) []Line {
	if lines == nil {
		return nil
	}
	out := make([]Line, len(lines))
	for i, l := range lines {
		l.Product = l.Product.clone()
		out[i] = l
	}
	return out
}

func indexOf(lines []Line, key LineKey) int {
	for i := range lines {
		if lines[i].Key() == key {
			return i
		}
	}
	return -1
}

// Totals sums subtotals and quantities over lines.
func Totals(lines []Line) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, l := range lines {
		total = total.Add(l.Subtotal())
		count += l.Quantity
	}
	return total, count
}
