package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/floroz/auction-house/pkg/auth"
	"github.com/floroz/auction-house/pkg/clock"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/bids"
	"github.com/floroz/auction-house/services/auction-service/internal/domain/items"
)

const ServiceName = "auction.v1.AuctionService"

const (
	CreateItemProcedure      = "/" + ServiceName + "/CreateItem"
	GetItemProcedure         = "/" + ServiceName + "/GetItem"
	ListActiveItemsProcedure = "/" + ServiceName + "/ListActiveItems"
	ListMyItemsProcedure     = "/" + ServiceName + "/ListMyItems"
	ListWonItemsProcedure    = "/" + ServiceName + "/ListWonItems"
	PlaceBidProcedure        = "/" + ServiceName + "/PlaceBid"
	BidHistoryProcedure      = "/" + ServiceName + "/BidHistory"
)

// ItemService is the registry as seen by the API
type ItemService interface {
	CreateItem(ctx context.Context, cmd items.CreateItemCommand) (*items.Item, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*items.Item, error)
	ListActiveItems(ctx context.Context) ([]*items.Item, error)
	ListOwnerItems(ctx context.Context, ownerID uuid.UUID) ([]*items.Item, error)
	ListWonItems(ctx context.Context, winnerID uuid.UUID) ([]*items.Item, error)
}

// BidService is the ledger as seen by the API
type BidService interface {
	SubmitBid(ctx context.Context, cmd bids.PlaceBidCommand) (*bids.Outcome, error)
	BidHistory(ctx context.Context, itemID uuid.UUID) ([]*bids.Bid, error)
}

type AuctionServiceHandler struct {
	itemService ItemService
	bidService  BidService
	clock       clock.Clock
}

func NewAuctionServiceHandler(itemService ItemService, bidService BidService, clk clock.Clock) *AuctionServiceHandler {
	return &AuctionServiceHandler{
		itemService: itemService,
		bidService:  bidService,
		clock:       clk,
	}
}

// Routes mounts every procedure under the service path. Reads are public;
// listing, bidding and the per-user views go through authInterceptor.
func (h *AuctionServiceHandler) Routes(authInterceptor connect.Interceptor) (string, http.Handler) {
	public := []connect.HandlerOption{connect.WithCodec(Codec)}
	private := []connect.HandlerOption{connect.WithCodec(Codec), connect.WithInterceptors(authInterceptor)}

	mux := http.NewServeMux()
	mux.Handle(CreateItemProcedure, connect.NewUnaryHandler(CreateItemProcedure, h.CreateItem, private...))
	mux.Handle(PlaceBidProcedure, connect.NewUnaryHandler(PlaceBidProcedure, h.PlaceBid, private...))
	mux.Handle(ListMyItemsProcedure, connect.NewUnaryHandler(ListMyItemsProcedure, h.ListMyItems, private...))
	mux.Handle(ListWonItemsProcedure, connect.NewUnaryHandler(ListWonItemsProcedure, h.ListWonItems, private...))
	mux.Handle(GetItemProcedure, connect.NewUnaryHandler(GetItemProcedure, h.GetItem, public...))
	mux.Handle(ListActiveItemsProcedure, connect.NewUnaryHandler(ListActiveItemsProcedure, h.ListActiveItems, public...))
	mux.Handle(BidHistoryProcedure, connect.NewUnaryHandler(BidHistoryProcedure, h.BidHistory, public...))

	return "/" + ServiceName + "/", mux
}

// CreateItem lists a new item owned by the caller
func (h *AuctionServiceHandler) CreateItem(
	ctx context.Context,
	req *connect.Request[CreateItemRequest],
) (*connect.Response[CreateItemResponse], error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing user"))
	}

	if req.Msg.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("name is required"))
	}

	item, err := h.itemService.CreateItem(ctx, items.CreateItemCommand{
		OwnerID:    userID,
		Name:       req.Msg.Name,
		StartPrice: req.Msg.StartPrice,
	})
	if err != nil {
		if errors.Is(err, items.ErrInvalidStartPrice) {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&CreateItemResponse{Item: h.mapItem(item)}), nil
}

// GetItem retrieves an item by ID
func (h *AuctionServiceHandler) GetItem(
	ctx context.Context,
	req *connect.Request[GetItemRequest],
) (*connect.Response[GetItemResponse], error) {
	itemID, err := uuid.Parse(req.Msg.ID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid id"))
	}

	item, err := h.itemService.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, items.ErrItemNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&GetItemResponse{Item: h.mapItem(item)}), nil
}

// ListActiveItems returns every item without a winner
func (h *AuctionServiceHandler) ListActiveItems(
	ctx context.Context,
	_ *connect.Request[ListItemsRequest],
) (*connect.Response[ListItemsResponse], error) {
	list, err := h.itemService.ListActiveItems(ctx)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&ListItemsResponse{Items: h.mapItems(list)}), nil
}

// ListMyItems returns the caller's listings
func (h *AuctionServiceHandler) ListMyItems(
	ctx context.Context,
	_ *connect.Request[ListItemsRequest],
) (*connect.Response[ListItemsResponse], error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing user"))
	}

	list, err := h.itemService.ListOwnerItems(ctx, userID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&ListItemsResponse{Items: h.mapItems(list)}), nil
}

// ListWonItems returns the items the caller won
func (h *AuctionServiceHandler) ListWonItems(
	ctx context.Context,
	_ *connect.Request[ListItemsRequest],
) (*connect.Response[ListItemsResponse], error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing user"))
	}

	list, err := h.itemService.ListWonItems(ctx, userID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&ListItemsResponse{Items: h.mapItems(list)}), nil
}

// PlaceBid submits a bid as the caller. A rejected bid is a successful call.
func (h *AuctionServiceHandler) PlaceBid(
	ctx context.Context,
	req *connect.Request[PlaceBidRequest],
) (*connect.Response[PlaceBidResponse], error) {
	userID, ok := auth.GetUserID(ctx)
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing user"))
	}

	itemID, err := uuid.Parse(req.Msg.ItemID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid item_id"))
	}

	outcome, err := h.bidService.SubmitBid(ctx, bids.PlaceBidCommand{
		ItemID:     itemID,
		BidderID:   userID,
		BidderName: auth.GetUserName(ctx),
		Amount:     req.Msg.Amount,
		Message:    req.Msg.Message,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	if !outcome.Accepted() {
		return connect.NewResponse(&PlaceBidResponse{Reason: outcome.Reason.String()}), nil
	}
	return connect.NewResponse(&PlaceBidResponse{Accepted: true, Bid: mapBid(outcome.Bid)}), nil
}

// BidHistory returns an item's bids, highest first
func (h *AuctionServiceHandler) BidHistory(
	ctx context.Context,
	req *connect.Request[BidHistoryRequest],
) (*connect.Response[BidHistoryResponse], error) {
	itemID, err := uuid.Parse(req.Msg.ItemID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid item_id"))
	}

	history, err := h.bidService.BidHistory(ctx, itemID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out := make([]*Bid, len(history))
	for i, bid := range history {
		out[i] = mapBid(bid)
	}
	return connect.NewResponse(&BidHistoryResponse{Bids: out}), nil
}

func (h *AuctionServiceHandler) mapItems(list []*items.Item) []*Item {
	out := make([]*Item, len(list))
	for i, item := range list {
		out[i] = h.mapItem(item)
	}
	return out
}

func (h *AuctionServiceHandler) mapItem(item *items.Item) *Item {
	out := &Item{
		ID:                item.ID.String(),
		OwnerID:           item.OwnerID.String(),
		Name:              item.Name,
		StartPrice:        item.StartPrice,
		CurrentHighestBid: item.CurrentHighestBid,
		State:             string(item.StateAt(h.clock.Now())),
		CreatedAt:         item.CreatedAt.UTC(),
		EndAt:             item.EndAt.UTC(),
	}
	if item.WinnerID != nil {
		out.WinnerID = item.WinnerID.String()
	}
	if item.SettledAt != nil {
		settledAt := item.SettledAt.UTC()
		out.SettledAt = &settledAt
	}
	return out
}

func mapBid(bid *bids.Bid) *Bid {
	return &Bid{
		ID:        bid.ID.String(),
		ItemID:    bid.ItemID.String(),
		BidderID:  bid.BidderID.String(),
		Amount:    bid.Amount,
		Message:   bid.Message,
		CreatedAt: bid.CreatedAt.In(time.UTC),
	}
}
