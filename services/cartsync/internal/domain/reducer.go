package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is a state transition understood by Reduce.
type Action interface {
	isAction()
}

// AddItem merges Quantity units of a product configuration into the cart.
type AddItem struct {
	Product  Product
	Quantity int
	Size     string
	Color    string
}

// RemoveItem drops the line with Key.
type RemoveItem struct {
	Key LineKey
}

// UpdateQuantity sets a line's quantity; zero or less removes it.
type UpdateQuantity struct {
	Key      LineKey
	Quantity int
}

// Clear empties the cart, keeping the server cart id.
type Clear struct{}

// IncreaseCount bumps the badge overlay.
type IncreaseCount struct {
	N int
}

// DecreaseCount lowers the badge overlay, never below a displayed zero.
type DecreaseCount struct {
	N int
}

// Replace installs an authoritative server cart.
type Replace struct {
	Lines     []Line
	Total     *decimal.Decimal
	ItemCount *int
	CartID    string
	SyncedAt  time.Time
}

// BeginLoading marks a sync as in flight.
type BeginLoading struct{}

// Fail records a failed sync. Lines are left untouched.
type Fail struct {
	Err *Error
}

// Reset tears the cart down to an empty, uninitialised state.
type Reset struct{}

func (AddItem) isAction()        {}
func (RemoveItem) isAction()     {}
func (UpdateQuantity) isAction() {}
func (Clear) isAction()          {}
func (IncreaseCount) isAction()  {}
func (DecreaseCount) isAction()  {}
func (Replace) isAction()        {}
func (BeginLoading) isAction()   {}
func (Fail) isAction()           {}
func (Reset) isAction()          {}

// ReplaceFrom builds a Replace action from a server cart.
func ReplaceFrom(c *ServerCart, at time.Time) Replace {
	return Replace{
		Lines:     c.Lines,
		Total:     c.Total,
		ItemCount: c.ItemCount,
		CartID:    c.ID,
		SyncedAt:  at,
	}
}

// Reduce applies a to s and returns the new state. It never mutates s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case AddItem:
		if a.Quantity <= 0 {
			return s
		}
		lines := cloneLines(s.Lines)
		key := LineKey{ProductID: a.Product.ID, Size: a.Size, Color: a.Color}
		if i := indexOf(lines, key); i >= 0 {
			lines[i].Quantity += a.Quantity
		} else {
			lines = append(lines, Line{
				Product:  a.Product.clone(),
				Quantity: a.Quantity,
				Size:     a.Size,
				Color:    a.Color,
			})
		}
		return s.withLines(lines)

	case RemoveItem:
		i := indexOf(s.Lines, a.Key)
		if i < 0 {
			return s
		}
		lines := cloneLines(s.Lines)
		lines = append(lines[:i], lines[i+1:]...)
		return s.withLines(lines)

	case UpdateQuantity:
		if a.Quantity <= 0 {
			return Reduce(s, RemoveItem{Key: a.Key})
		}
		i := indexOf(s.Lines, a.Key)
		if i < 0 {
			return s
		}
		lines := cloneLines(s.Lines)
		lines[i].Quantity = a.Quantity
		return s.withLines(lines)

	case Clear:
		s.CountOverlay = 0
		return s.withLines(nil)

	case IncreaseCount:
		if a.N <= 0 {
			return s
		}
		s.CountOverlay += a.N
		return s

	case DecreaseCount:
		if a.N <= 0 {
			return s
		}
		s.CountOverlay = clampOverlay(s.ItemCount, s.CountOverlay-a.N)
		return s

	case Replace:
		var lines []Line
		for _, l := range a.Lines {
			if l.Quantity < 1 {
				continue
			}
			if i := indexOf(lines, l.Key()); i >= 0 {
				lines[i].Quantity += l.Quantity
				continue
			}
			l.Product = l.Product.clone()
			lines = append(lines, l)
		}
		s.CountOverlay = 0
		s = s.withLines(lines)
		if a.Total != nil {
			s.Total = *a.Total
		}
		if a.ItemCount != nil {
			s.ItemCount = *a.ItemCount
		}
		s.CartID = a.CartID
		s.Loading = false
		s.Err = nil
		s.Status = StatusReady
		s.SyncedAt = a.SyncedAt
		return s

	case BeginLoading:
		s.Loading = true
		s.Status = StatusLoading
		return s

	case Fail:
		s.Loading = false
		s.Err = a.Err.clone()
		s.Status = StatusError
		return s

	case Reset:
		return State{Status: StatusUninitialized, Total: decimal.Zero}
	}
	return s
}
