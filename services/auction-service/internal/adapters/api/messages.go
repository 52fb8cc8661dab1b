package api

import "time"

type Item struct {
	ID                string     `json:"id"`
	OwnerID           string     `json:"owner_id"`
	Name              string     `json:"name"`
	StartPrice        int64      `json:"start_price"`
	CurrentHighestBid int64      `json:"current_highest_bid"`
	WinnerID          string     `json:"winner_id,omitempty"`
	State             string     `json:"state"`
	CreatedAt         time.Time  `json:"created_at"`
	EndAt             time.Time  `json:"end_at"`
	SettledAt         *time.Time `json:"settled_at,omitempty"`
}

type Bid struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateItemRequest struct {
	Name       string `json:"name"`
	StartPrice int64  `json:"start_price"`
}

type CreateItemResponse struct {
	Item *Item `json:"item"`
}

type GetItemRequest struct {
	ID string `json:"id"`
}

type GetItemResponse struct {
	Item *Item `json:"item"`
}

type ListItemsRequest struct{}

type ListItemsResponse struct {
	Items []*Item `json:"items"`
}

type PlaceBidRequest struct {
	ItemID  string `json:"item_id"`
	Amount  int64  `json:"amount"`
	Message string `json:"message,omitempty"`
}

// PlaceBidResponse carries a rejection as data: Accepted is false and Reason names the rule
type PlaceBidResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Bid      *Bid   `json:"bid,omitempty"`
}

type BidHistoryRequest struct {
	ItemID string `json:"item_id"`
}

type BidHistoryResponse struct {
	Bids []*Bid `json:"bids"`
}
