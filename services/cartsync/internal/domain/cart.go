package domain

import "github.com/shopspring/decimal"

// ServerCart is the authoritative cart as reported by the cart API. Total
// and ItemCount are nil when the server omitted them.
type ServerCart struct {
	ID        string
	Lines     []Line
	Total     *decimal.Decimal
	ItemCount *int
	Malformed bool
}

// AddRequest is the body of a remote add.
type AddRequest struct {
	ProductID string `json:"product_id" validate:"required,max=128"`
	Size      string `json:"size" validate:"max=64"`
	Color     string `json:"color" validate:"max=64"`
	Quantity  int    `json:"quantity" validate:"min=1,max=999"`
	SessionID string `json:"session_id"`
}
