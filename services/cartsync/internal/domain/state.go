package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the sync state of a cart session.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusLoading       Status = "loading"
	StatusReady         Status = "ready"
	StatusError         Status = "error"
)

// State is the cart as observed by consumers. Total and ItemCount are
// always derived from Lines, except that CountOverlay holds an optimistic
// badge adjustment until the next authoritative refresh.
type State struct {
	Lines        []Line          `json:"lines"`
	Total        decimal.Decimal `json:"total"`
	ItemCount    int             `json:"item_count"`
	CartID       string          `json:"cart_id,omitempty"`
	Loading      bool            `json:"loading"`
	Err          *Error          `json:"error,omitempty"`
	Status       Status          `json:"status"`
	CountOverlay int             `json:"count_overlay"`
	SyncedAt     time.Time       `json:"synced_at,omitzero"`
}

// Initial is the state of a new session: empty and loading.
func Initial() State {
	return State{Status: StatusUninitialized, Loading: true, Total: decimal.Zero}
}

// Snapshot returns a deep copy detached from the receiver.
func (s State) Snapshot() State {
	s.Lines = cloneLines(s.Lines)
	s.Err = s.Err.clone()
	return s
}

// DisplayCount is the item count shown on a cart badge.
func (s State) DisplayCount() int {
	return s.ItemCount + s.CountOverlay
}

// Line returns the line with the given key.
func (s State) Line(key LineKey) (Line, bool) {
	if i := indexOf(s.Lines, key); i >= 0 {
		return s.Lines[i], true
	}
	return Line{}, false
}

// withLines installs lines and recomputes the derived fields.
func (s State) withLines(lines []Line) State {
	s.Lines = lines
	s.Total, s.ItemCount = Totals(lines)
	s.CountOverlay = clampOverlay(s.ItemCount, s.CountOverlay)
	return s
}

func clampOverlay(count, overlay int) int {
	if count+overlay < 0 {
		return -count
	}
	return overlay
}
