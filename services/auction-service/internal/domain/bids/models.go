package bids

import (
	"time"

	"github.com/google/uuid"
)

// Bid is an accepted offer on an item; immutable once stored
type Bid struct {
	ID        uuid.UUID `db:"id"`
	ItemID    uuid.UUID `db:"item_id"`
	BidderID  uuid.UUID `db:"bidder_id"`
	Amount    int64     `db:"amount"` // in cents
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

// RejectReason names the first validation rule a submission failed
type RejectReason string

const (
	RejectItemNotFound       RejectReason = "item_not_found"
	RejectAlreadySettled     RejectReason = "already_settled"
	RejectDeadlinePassed     RejectReason = "deadline_passed"
	RejectBelowStartingPrice RejectReason = "below_starting_price"
	RejectBelowLadder        RejectReason = "below_ladder"
)

// String returns the reason code
func (r RejectReason) String() string {
	return string(r)
}

// Outcome is the business result of a bid submission: either Bid or Reason is set
type Outcome struct {
	Bid    *Bid
	Reason RejectReason
}

// Accepted reports whether the bid was stored
func (o *Outcome) Accepted() bool {
	return o.Bid != nil
}

func accepted(bid *Bid) *Outcome {
	return &Outcome{Bid: bid}
}

func rejected(reason RejectReason) *Outcome {
	return &Outcome{Reason: reason}
}

// PlaceBidCommand represents a bid submission
type PlaceBidCommand struct {
	ItemID     uuid.UUID
	BidderID   uuid.UUID
	BidderName string // display name for live viewers, taken from the session
	Amount     int64
	Message    string
}
