package model

import (
	"database/sql/driver"
	"fmt"
	"math"
	"time"
)

// OfferStatus is the threshold lifecycle of a campaign offer
type OfferStatus string

const (
	OfferStatusActive       OfferStatus = "active"
	OfferStatusThresholdMet OfferStatus = "threshold_met"
	OfferStatusClosed       OfferStatus = "closed"
)

// Capacity is the optional cap on an offer's ordered quantity.
// The zero value is unbounded.
type Capacity struct {
	limit   int64
	bounded bool
}

// Unbounded returns a capacity with no cap
func Unbounded() Capacity {
	return Capacity{}
}

// Bounded returns a capacity capped at n
func Bounded(n int64) Capacity {
	return Capacity{limit: n, bounded: true}
}

// Limit returns the cap and whether one is set
func (c Capacity) Limit() (int64, bool) {
	return c.limit, c.bounded
}

// Admits reports whether applying delta to the current ordered quantity stays within the cap.
// Reductions are always admitted so an over-subscribed offer can still shrink.
// The comparison is done on the remaining headroom so a huge delta cannot wrap around.
// Unbounded offers still refuse a delta the counter itself cannot hold.
func (c Capacity) Admits(ordered, delta int64) bool {
	if delta <= 0 {
		return true
	}
	if !c.bounded {
		return delta <= math.MaxInt64-ordered
	}
	return delta <= c.limit-ordered
}

func (c Capacity) String() string {
	if !c.bounded {
		return "unbounded"
	}
	return fmt.Sprintf("bounded(%d)", c.limit)
}

// Scan implements sql.Scanner for the nullable max_total_quantity column
func (c *Capacity) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = Unbounded()
	case int64:
		*c = Bounded(v)
	case int32:
		*c = Bounded(int64(v))
	case []byte:
		var n int64
		if _, err := fmt.Sscan(string(v), &n); err != nil {
			return fmt.Errorf("failed to scan capacity %q: %w", v, err)
		}
		*c = Bounded(n)
	default:
		return fmt.Errorf("unsupported capacity source type %T", src)
	}
	return nil
}

// Value implements driver.Valuer
func (c Capacity) Value() (driver.Value, error) {
	if !c.bounded {
		return nil, nil
	}
	return c.limit, nil
}

// WindowPosition locates an instant relative to an offer's order window
type WindowPosition int

const (
	WindowOpen WindowPosition = iota
	WindowNotStarted
	WindowEnded
)

// Offer represents a product listed under a campaign by one supplier
type Offer struct {
	ID                string      `db:"id" json:"id"`
	CampaignID        string      `db:"campaign_id" json:"campaign_id"`
	ProductID         string      `db:"product_id" json:"product_id"`
	SupplierID        string      `db:"supplier_id" json:"supplier_id"`
	MinTotalQuantity  int64       `db:"min_total_quantity" json:"min_total_quantity"`
	MaxTotalQuantity  Capacity    `db:"max_total_quantity" json:"-"`
	OrderedQuantity   int64       `db:"ordered_quantity" json:"ordered_quantity"`
	ConfirmedQuantity int64       `db:"confirmed_quantity" json:"confirmed_quantity"`
	StartDate         time.Time   `db:"start_date" json:"start_date"`
	EndDate           time.Time   `db:"end_date" json:"end_date"`
	Status            OfferStatus `db:"status" json:"status"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

// Window places now relative to [StartDate, EndDate]; both bounds are inclusive
func (o Offer) Window(now time.Time) WindowPosition {
	if now.Before(o.StartDate) {
		return WindowNotStarted
	}
	if now.After(o.EndDate) {
		return WindowEnded
	}
	return WindowOpen
}

// CrossedThresholdUp reports whether an active offer has reached its minimum confirmed quantity
func (o Offer) CrossedThresholdUp() bool {
	return o.Status == OfferStatusActive && o.ConfirmedQuantity >= o.MinTotalQuantity
}

// CrossedThresholdDown reports whether a threshold_met offer has dropped below its minimum
func (o Offer) CrossedThresholdDown() bool {
	return o.Status == OfferStatusThresholdMet && o.ConfirmedQuantity < o.MinTotalQuantity
}
