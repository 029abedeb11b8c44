package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/dtos"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/services"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

type MarketplaceController struct {
	marketService *services.MarketplaceService
}

func NewMarketplaceController(ms *services.MarketplaceService) *MarketplaceController {
	return &MarketplaceController{marketService: ms}
}

var marketValidate = validator.New()

// POST /api/v1/listings
func (c *MarketplaceController) CreateListingHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sellerID, ok := callerID(ctx, w)
	if !ok {
		return
	}

	var req dtos.CreateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}
	if err := marketValidate.StructCtx(ctx, req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation failed", validationErrors.Error())
		} else {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request data", nil, err)
		}
		return
	}

	l, err := c.marketService.CreateListing(ctx, req.PropertyID, sellerID, req.Price, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		respondServiceError(w, err, "Could not create listing")
		return
	}
	if l == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Property not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, l)
}

// GET /api/v1/listings/{id}
func (c *MarketplaceController) GetListingHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := callerID(ctx, w); !ok {
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid listing id", nil, err)
		return
	}

	l, err := c.marketService.GetListing(ctx, id)
	if err != nil {
		respondServiceError(w, err, "Could not fetch listing")
		return
	}
	if l == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Listing not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, l)
}

// GET /api/v1/listings/{id}/bids
func (c *MarketplaceController) ListBidsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := callerID(ctx, w); !ok {
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid listing id", nil, err)
		return
	}

	bids, err := c.marketService.ListBids(ctx, id)
	if err != nil {
		respondServiceError(w, err, "Could not list bids")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, bids)
}

// POST /api/v1/listings/{id}/cancel
func (c *MarketplaceController) CancelListingHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerID(ctx, w)
	if !ok {
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid listing id", nil, err)
		return
	}

	l, err := c.marketService.CancelListing(ctx, id, caller)
	if err != nil {
		respondServiceError(w, err, "Could not cancel listing")
		return
	}
	if l == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Listing not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, l)
}

// POST /api/v1/bids
func (c *MarketplaceController) PlaceBidHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bidderID, ok := callerID(ctx, w)
	if !ok {
		return
	}

	var req dtos.PlaceBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}
	if err := marketValidate.StructCtx(ctx, req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation failed", validationErrors.Error())
		} else {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request data", nil, err)
		}
		return
	}

	b, err := c.marketService.PlaceBid(ctx, req.ListingID, bidderID, req.Amount, req.Message)
	if err != nil {
		respondServiceError(w, err, "Could not place bid")
		return
	}
	if b == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Listing not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, b)
}

func (c *MarketplaceController) decodeBidAction(w http.ResponseWriter, r *http.Request) (dtos.BidActionRequest, bool) {
	var req dtos.BidActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return req, false
	}
	if req.BidID == uuid.Nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "bid_id is required", nil)
		return req, false
	}
	return req, true
}

// POST /api/v1/bids/accept
func (c *MarketplaceController) AcceptBidHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerID(ctx, w)
	if !ok {
		return
	}
	req, ok := c.decodeBidAction(w, r)
	if !ok {
		return
	}

	b, err := c.marketService.AcceptBid(ctx, req.BidID, caller)
	if err != nil {
		respondServiceError(w, err, "Could not accept bid")
		return
	}
	if b == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Bid not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, b)
}

// POST /api/v1/bids/reject
func (c *MarketplaceController) RejectBidHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerID(ctx, w)
	if !ok {
		return
	}
	req, ok := c.decodeBidAction(w, r)
	if !ok {
		return
	}

	b, err := c.marketService.RejectBid(ctx, req.BidID, caller)
	if err != nil {
		respondServiceError(w, err, "Could not reject bid")
		return
	}
	if b == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Bid not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, b)
}

// POST /api/v1/bids/withdraw
func (c *MarketplaceController) WithdrawBidHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerID(ctx, w)
	if !ok {
		return
	}
	req, ok := c.decodeBidAction(w, r)
	if !ok {
		return
	}

	b, err := c.marketService.WithdrawBid(ctx, req.BidID, caller)
	if err != nil {
		respondServiceError(w, err, "Could not withdraw bid")
		return
	}
	if b == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Bid not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, b)
}
