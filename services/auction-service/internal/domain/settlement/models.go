package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the business outcome of a settlement attempt
type Status string

const (
	StatusSettled        Status = "settled"
	StatusNoBids         Status = "no_bids"
	StatusAlreadySettled Status = "already_settled"
)

// String returns the status code
func (s Status) String() string {
	return string(s)
}

// Result describes what Settle did. WinnerID and Amount are set for StatusSettled,
// and for StatusAlreadySettled they carry the recorded winner when known.
type Result struct {
	ItemID   uuid.UUID
	Status   Status
	WinnerID uuid.UUID
	Amount   int64
}

// Engine errors
var (
	ErrItemNotFound   = errors.New("item not found")
	ErrAuctionOpen    = errors.New("auction has not reached its deadline")
	ErrWinnerNotFound = errors.New("winning bidder has no user record")
)

// IntegrityError is a settlement that cannot complete until an operator fixes the data.
// The item is left unsettled so a later attempt can retry.
type IntegrityError struct {
	ItemID   uuid.UUID
	WinnerID uuid.UUID
	Amount   int64
	Err      error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("settlement integrity failure for item %s (winner %s, amount %d): %v", e.ItemID, e.WinnerID, e.Amount, e.Err)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// Failure is what the Alerter receives for an integrity fault
type Failure struct {
	ItemID     uuid.UUID
	WinnerID   uuid.UUID
	Amount     int64
	Reason     string
	OccurredAt time.Time
}
