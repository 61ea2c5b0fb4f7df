package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is assumed when the cart API omits one.
const DefaultCurrency = "USD"

// Product is the catalog data a cart line carries. Stock is informational;
// nothing in this package enforces it.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency,omitempty"`
	Images   []string        `json:"images"`
	Stock    int             `json:"stock"`
}

func (p Product) clone() Product {
	if p.Images != nil {
		p.Images = append([]string(nil), p.Images...)
	}
	return p
}

// ParsePrice converts a display price such as "1290", "12.90", "$12.90",
// "12,90" or "1,290.50" into a decimal. Unparsable input yields zero.
func ParsePrice(s string) decimal.Decimal {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero
	}

	lastDot := strings.LastIndexByte(clean, '.')
	lastComma := strings.LastIndexByte(clean, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Whichever separator comes last is the decimal point.
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(clean, ",") == 1 && len(clean)-lastComma-1 <= 2 {
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case strings.Count(clean, ".") > 1:
		clean = strings.ReplaceAll(clean, ".", "")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero
	}
	return d
}
