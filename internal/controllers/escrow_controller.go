package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/dtos"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/services"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

type EscrowController struct {
	escrowService *services.EscrowService
}

func NewEscrowController(es *services.EscrowService) *EscrowController {
	return &EscrowController{escrowService: es}
}

var escrowValidate = validator.New()

// POST /api/v1/escrows
func (c *EscrowController) DepositEscrowHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buyerID, ok := callerID(ctx, w)
	if !ok {
		return
	}

	var req dtos.DepositEscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}
	if err := escrowValidate.StructCtx(ctx, req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation failed", validationErrors.Error())
		} else {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request data", nil, err)
		}
		return
	}

	e, err := c.escrowService.DepositEscrow(ctx, req.ListingID, buyerID, req.Amount)
	if err != nil {
		respondServiceError(w, err, "Could not deposit escrow")
		return
	}
	if e == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Listing not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, e)
}

// GET /api/v1/escrows/{id}
func (c *EscrowController) GetEscrowHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := callerID(ctx, w); !ok {
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid escrow id", nil, err)
		return
	}

	e, err := c.escrowService.GetEscrow(ctx, id)
	if err != nil {
		respondServiceError(w, err, "Could not fetch escrow")
		return
	}
	if e == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Escrow not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, e)
}

// POST /api/v1/escrows/{id}/release
func (c *EscrowController) ReleaseEscrowHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerID(ctx, w)
	if !ok {
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid escrow id", nil, err)
		return
	}

	e, err := c.escrowService.ReleaseEscrow(ctx, id, caller)
	if err != nil {
		respondServiceError(w, err, "Could not release escrow")
		return
	}
	if e == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Escrow not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, e)
}

// POST /api/v1/escrows/dispute
func (c *EscrowController) FileDisputeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerID(ctx, w)
	if !ok {
		return
	}

	var req dtos.FileDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}
	if req.EscrowID == uuid.Nil || req.Reason == "" {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "escrow_id and reason are required", nil)
		return
	}

	e, err := c.escrowService.FileDispute(ctx, req.EscrowID, caller, req.Reason)
	if err != nil {
		respondServiceError(w, err, "Could not file dispute")
		return
	}
	if e == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Escrow not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, e)
}

// POST /api/v1/admin/escrows/resolve
func (c *EscrowController) ResolveDisputeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resolverID, ok := callerID(ctx, w)
	if !ok {
		return
	}

	var req dtos.ResolveDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}
	if req.EscrowID == uuid.Nil || req.ReleaseToSeller == nil || req.Justification == "" {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "escrow_id, release_to_seller and justification are required", nil)
		return
	}

	e, err := c.escrowService.ResolveDispute(ctx, req.EscrowID, resolverID, *req.ReleaseToSeller, req.Justification)
	if err != nil {
		respondServiceError(w, err, "Could not resolve dispute")
		return
	}
	if e == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Escrow not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, e)
}
