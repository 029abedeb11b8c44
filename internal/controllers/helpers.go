package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/middleware"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/transitions"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

// callerID pulls the authenticated user out of the request context. A missing
// or malformed subject writes the error response and reports !ok.
func callerID(ctx context.Context, w http.ResponseWriter) (uuid.UUID, bool) {
	raw, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "No userID in context", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid userID in context", nil, err)
		return uuid.Nil, false
	}
	return id, true
}

// respondServiceError maps coordinator errors onto stable HTTP codes.
func respondServiceError(w http.ResponseWriter, err error, logMsg string) {
	var transitionErr *transitions.InvalidTransitionError
	var versionErr *utils.RowVersionConflictError

	switch {
	case errors.As(err, &transitionErr):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeInvalidTransition, transitionErr.Error(), nil)
	case errors.As(err, &versionErr):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeRowVersionConflict, "Concurrent update, see latest state", versionErr.Current)
	case errors.Is(err, utils.ErrRowVersionConflict):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeRowVersionConflict, "Concurrent update conflict", nil)
	case errors.Is(err, utils.ErrUnauthorized):
		utils.RespondErrorWithCode(w, http.StatusForbidden, utils.ErrCodeUnauthorized, "Caller lacks rights over this entity", nil)
	case errors.Is(err, utils.ErrNotFound):
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Not found", nil)
	case errors.Is(err, utils.ErrWrongStatus):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeInvalidTransition, "Entity is not in a valid status for this operation", nil)
	case errors.Is(err, utils.ErrListingConflict):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeListingConflict, "Listing conflict", nil)
	case errors.Is(err, utils.ErrEscrowConflict):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeEscrowConflict, "Escrow conflict", nil)
	case errors.Is(err, utils.ErrSelfBidNotAllowed):
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeSelfBid, "Sellers cannot bid on their own listings", nil)
	case errors.Is(err, utils.ErrListingExpired):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeConflict, "Listing has expired", nil)
	case errors.Is(err, utils.ErrVerificationInProgress):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeConflict, "A verification request is already open", nil)
	case errors.Is(err, utils.ErrNotVerified):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeInvalidTransition, "Property is not verified", nil)
	case errors.Is(err, utils.ErrDuplicateProperty):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeConflict, "Property already registered", nil)
	case errors.Is(err, utils.ErrHasActiveChildren):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeConflict, "Entity has active dependents", nil)
	case errors.Is(err, utils.ErrLedgerUnavailable):
		utils.RespondErrorWithCode(w, http.StatusServiceUnavailable, utils.ErrCodeLedgerUnavailable, "Settlement layer unavailable, retry with the same request", nil, err)
	default:
		utils.Logger.WithError(err).Error(logMsg)
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, logMsg, nil, err)
	}
}
