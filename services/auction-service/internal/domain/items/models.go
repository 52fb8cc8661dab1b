package items

import (
	"time"

	"github.com/google/uuid"
)

// AuctionWindow is how long an item accepts bids after it is listed
const AuctionWindow = 24 * time.Hour

// State is the lifecycle position of an item at a given instant
type State string

const (
	// StateOpen: deadline in the future, accepting bids
	StateOpen State = "open"
	// StateExpiredPending: deadline passed with bids, settlement not yet written
	StateExpiredPending State = "expired_pending"
	// StateSettled: winner recorded
	StateSettled State = "settled"
	// StateUnsold: deadline passed without a single bid; terminal
	StateUnsold State = "unsold"
)

// Item is an object listed for auction
type Item struct {
	ID                uuid.UUID  `db:"id"`
	OwnerID           uuid.UUID  `db:"owner_id"`
	Name              string     `db:"name"`
	StartPrice        int64      `db:"start_price"` // in cents
	CurrentHighestBid int64      `db:"current_highest_bid"`
	WinnerID          *uuid.UUID `db:"winner_id"`
	CreatedAt         time.Time  `db:"created_at"`
	EndAt             time.Time  `db:"end_at"`
	SettledAt         *time.Time `db:"settled_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// DeadlineFor returns the close time of an item listed at createdAt
func DeadlineFor(createdAt time.Time) time.Time {
	return createdAt.Add(AuctionWindow)
}

// IsSettled reports whether a winner has been recorded
func (i *Item) IsSettled() bool {
	return i.WinnerID != nil
}

// AcceptsBidsAt reports whether now is strictly before the deadline
func (i *Item) AcceptsBidsAt(now time.Time) bool {
	return now.Before(i.EndAt)
}

// IsExpiredAt reports whether the deadline is at or before now
func (i *Item) IsExpiredAt(now time.Time) bool {
	return !i.AcceptsBidsAt(now)
}

// StateAt derives the lifecycle state; EXPIRED_PENDING and UNSOLD are never written, only observed
func (i *Item) StateAt(now time.Time) State {
	switch {
	case i.IsSettled():
		return StateSettled
	case i.AcceptsBidsAt(now):
		return StateOpen
	case i.CurrentHighestBid == 0:
		return StateUnsold
	default:
		return StateExpiredPending
	}
}

// IsOwnedBy checks if the item belongs to the given user
func (i *Item) IsOwnedBy(userID uuid.UUID) bool {
	return i.OwnerID == userID
}
