package http

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/services/cartsync/internal/domain"
)

// --- Request DTOs ---

// AddItemRequest is the body of POST /api/v1/cart/items.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=128"`
	Size      string `json:"size" validate:"max=64"`
	Color     string `json:"color" validate:"max=64"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=999"`
}

// ProductRequest is the product snapshot carried by a local add.
type ProductRequest struct {
	ID       string    `json:"id" validate:"required,max=128"`
	Name     string    `json:"name" validate:"max=500"`
	Price    flexPrice `json:"price" validate:"required,nonneg_decimal"`
	Currency string    `json:"currency" validate:"omitempty,len=3"`
	Images   []string  `json:"images" validate:"max=20,dive,max=2048"`
	Stock    int       `json:"stock" validate:"min=0"`
}

// AddLineRequest is the body of POST /api/v1/cart/lines.
type AddLineRequest struct {
	Product  ProductRequest `json:"product"`
	Quantity int            `json:"quantity" validate:"min=1,max=999"`
	Size     string         `json:"size" validate:"max=64"`
	Color    string         `json:"color" validate:"max=64"`
}

// UpdateQuantityRequest is the body of PUT /api/v1/cart/lines/{key}. Zero
// removes the line.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0,max=999"`
}

// BadgeRequest is the body of POST /api/v1/cart/badge.
type BadgeRequest struct {
	Delta int `json:"delta" validate:"required,min=-999,max=999"`
}

// flexPrice accepts a JSON number or a display string such as "$12.90" and
// holds it as a plain decimal string. A blank string stays empty.
type flexPrice string

func (p *flexPrice) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			*p = ""
			return nil
		}
		*p = flexPrice(domain.ParsePrice(s).String())
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("price must be a number or a string")
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return errors.New("price is not a valid number")
	}
	*p = flexPrice(d.String())
	return nil
}

func (p flexPrice) value() decimal.Decimal {
	d, err := decimal.NewFromString(string(p))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (r ProductRequest) toDomain() domain.Product {
	images := r.Images
	if images == nil {
		images = []string{}
	}
	return domain.Product{
		ID:       r.ID,
		Name:     r.Name,
		Price:    r.Price.value(),
		Currency: r.Currency,
		Images:   images,
		Stock:    r.Stock,
	}
}

// --- Response views ---

// LineView is one cart line as rendered to consumers.
type LineView struct {
	Key       string   `json:"key"`
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Price     string   `json:"price"`
	Currency  string   `json:"currency,omitempty"`
	Images    []string `json:"images"`
	Stock     int      `json:"stock"`
	Quantity  int      `json:"quantity"`
	Size      string   `json:"size"`
	Color     string   `json:"color"`
	Subtotal  string   `json:"subtotal"`
}

// CartView is a session's cart state. Prices are fixed two-decimal strings.
type CartView struct {
	Lines        []LineView    `json:"lines"`
	Total        string        `json:"total"`
	ItemCount    int           `json:"item_count"`
	DisplayCount int           `json:"display_count"`
	CartID       string        `json:"cart_id,omitempty"`
	Status       domain.Status `json:"status"`
	Loading      bool          `json:"loading"`
	Error        *domain.Error `json:"error,omitempty"`
	SyncedAt     time.Time     `json:"synced_at,omitzero"`
}

// AddResultView is the response of a remote add.
type AddResultView struct {
	Added bool     `json:"added"`
	Cart  CartView `json:"cart"`
}

func newCartView(s domain.State) CartView {
	lines := make([]LineView, 0, len(s.Lines))
	for _, l := range s.Lines {
		images := l.Product.Images
		if images == nil {
			images = []string{}
		}
		lines = append(lines, LineView{
			Key:       l.Key().String(),
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Price:     l.Product.Price.StringFixed(2),
			Currency:  l.Product.Currency,
			Images:    images,
			Stock:     l.Product.Stock,
			Quantity:  l.Quantity,
			Size:      l.Size,
			Color:     l.Color,
			Subtotal:  l.Subtotal().StringFixed(2),
		})
	}
	return CartView{
		Lines:        lines,
		Total:        s.Total.StringFixed(2),
		ItemCount:    s.ItemCount,
		DisplayCount: s.DisplayCount(),
		CartID:       s.CartID,
		Status:       s.Status,
		Loading:      s.Loading,
		Error:        s.Err,
		SyncedAt:     s.SyncedAt,
	}
}
