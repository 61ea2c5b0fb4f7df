package remote

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/services/cartsync/internal/domain"
)

// decodeCart reads a cart body leniently. Each field is decoded on its own:
// missing or invalid numbers are absent, missing or invalid arrays are
// empty, and the result is flagged Malformed when some part was not the
// expected shape. Only a body that is not a JSON object at all is an error.
func decodeCart(body []byte) (*domain.ServerCart, error) {
	obj, ok := object(body)
	if !ok {
		return nil, domain.Malformed("cart response is not a JSON object")
	}
	cart := &domain.ServerCart{}
	if raw, ok := obj["data"]; ok {
		if inner, ok := object(raw); ok {
			obj = inner
		}
	}

	cart.ID = firstScalar(obj, "id", "cart_id")
	if d, ok := decimalField(obj["total"]); ok {
		cart.Total = &d
	}
	if n, ok := intField(obj["item_count"]); ok {
		cart.ItemCount = &n
	}

	raw, ok := obj["items"]
	if !ok || isNull(raw) {
		return cart, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		cart.Malformed = true
		return cart, nil
	}
	for _, item := range items {
		line, ok := decodeLine(item)
		if !ok {
			cart.Malformed = true
			continue
		}
		cart.Lines = append(cart.Lines, line)
	}
	return cart, nil
}

func decodeLine(raw json.RawMessage) (domain.Line, bool) {
	item, ok := object(raw)
	if !ok {
		return domain.Line{}, false
	}

	// Some endpoints nest the product; flat fields win when both are present.
	product, _ := object(item["product"])
	field := func(keys ...string) json.RawMessage {
		for _, k := range keys {
			if v, ok := item[k]; ok && !isNull(v) {
				return v
			}
		}
		for _, k := range keys {
			if v, ok := product[k]; ok && !isNull(v) {
				return v
			}
		}
		return nil
	}

	id := scalar(field("product_id", "id"))
	if id == "" {
		return domain.Line{}, false
	}
	qty, _ := intField(field("quantity"))
	price, _ := decimalField(field("price"))
	stock, _ := intField(field("stock"))

	return domain.Line{
		Product: domain.Product{
			ID:       id,
			Name:     scalar(field("name", "title")),
			Price:    price,
			Currency: scalar(field("currency")),
			Images:   stringsField(field("images")),
			Stock:    stock,
		},
		Quantity: qty,
		Size:     scalar(field("size")),
		Color:    scalar(field("color")),
	}, true
}

func object(raw []byte) (map[string]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// scalar renders a JSON string or number as text.
func scalar(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func firstScalar(obj map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		if s := scalar(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

// decimalField accepts numbers and display strings such as "$12.90".
func decimalField(raw json.RawMessage) (decimal.Decimal, bool) {
	if raw == nil || isNull(raw) {
		return decimal.Decimal{}, false
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	}
	var s string
	if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
		return domain.ParsePrice(s), true
	}
	return decimal.Decimal{}, false
}

// maxCount bounds counts and quantities read from a cart body; larger
// values are treated as invalid.
const maxCount = 1_000_000_000

func intField(raw json.RawMessage) (int, bool) {
	s := scalar(raw)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n > maxCount || n < -maxCount {
			return 0, false
		}
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f > maxCount || f < -maxCount {
		return 0, false
	}
	return int(f), true
}

// stringsField keeps the string entries of an array, or the "url" of
// object entries.
func stringsField(raw json.RawMessage) []string {
	var items []json.RawMessage
	if raw == nil || json.Unmarshal(raw, &items) != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := scalar(it); s != "" {
			out = append(out, s)
			continue
		}
		if obj, ok := object(it); ok {
			if s := firstScalar(obj, "url", "image"); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
