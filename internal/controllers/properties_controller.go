package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/dtos"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/models"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/services"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

type PropertiesController struct {
	propertyService *services.PropertyService
}

func NewPropertiesController(ps *services.PropertyService) *PropertiesController {
	return &PropertiesController{propertyService: ps}
}

var propValidate = validator.New()

// POST /api/v1/properties
func (c *PropertiesController) RegisterPropertyHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := callerID(ctx, w)
	if !ok {
		return
	}

	var req dtos.RegisterPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}
	if err := propValidate.StructCtx(ctx, req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation failed", validationErrors.Error())
		} else {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request data", nil, err)
		}
		return
	}

	prop, err := c.propertyService.RegisterProperty(ctx, ownerID, req.Valuation, req.LocationHash, req.DocumentHash)
	if err != nil {
		respondServiceError(w, err, "Could not register property")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, prop)
}

// GET /api/v1/properties/{id}
func (c *PropertiesController) GetPropertyHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := callerID(ctx, w); !ok {
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid property id", nil, err)
		return
	}

	prop, err := c.propertyService.GetProperty(ctx, id)
	if err != nil {
		respondServiceError(w, err, "Could not fetch property")
		return
	}
	if prop == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Property not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, prop)
}

// GET /api/v1/properties/my
func (c *PropertiesController) ListMyPropertiesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := callerID(ctx, w)
	if !ok {
		return
	}

	props, err := c.propertyService.ListPropertiesByOwner(ctx, ownerID)
	if err != nil {
		respondServiceError(w, err, "Could not list properties")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, props)
}

// DELETE /api/v1/properties/{id}
func (c *PropertiesController) DeletePropertyHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerID(ctx, w)
	if !ok {
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid property id", nil, err)
		return
	}

	if err := c.propertyService.DeleteProperty(ctx, id, caller); err != nil {
		respondServiceError(w, err, "Could not delete property")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/properties/verification
func (c *PropertiesController) RequestVerificationHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requesterID, ok := callerID(ctx, w)
	if !ok {
		return
	}

	var req dtos.RequestVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}
	if req.PropertyID == uuid.Nil || req.DocumentHash == "" {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "property_id and document_hash are required", nil)
		return
	}

	vr, err := c.propertyService.RequestVerification(ctx, req.PropertyID, requesterID, req.DocumentHash)
	if err != nil {
		respondServiceError(w, err, "Could not open verification request")
		return
	}
	if vr == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Property not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, vr)
}

// POST /api/v1/properties/verification/start
func (c *PropertiesController) StartVerificationHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verifierID, ok := callerID(ctx, w)
	if !ok {
		return
	}

	var req dtos.StartVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}
	if req.RequestID == uuid.Nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "request_id is required", nil)
		return
	}

	vr, err := c.propertyService.StartVerification(ctx, req.RequestID, verifierID)
	if err != nil {
		respondServiceError(w, err, "Could not start verification")
		return
	}
	if vr == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Verification request not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, vr)
}

// POST /api/v1/properties/verification/resolve
func (c *PropertiesController) ResolveVerificationHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verifierID, ok := callerID(ctx, w)
	if !ok {
		return
	}

	var req dtos.ResolveVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}
	if req.RequestID == uuid.Nil || req.Approved == nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "request_id and approved are required", nil)
		return
	}

	vr, err := c.propertyService.ResolveVerification(ctx, req.RequestID, verifierID, *req.Approved, req.ResultHash)
	if err != nil {
		respondServiceError(w, err, "Could not resolve verification")
		return
	}
	if vr == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Verification request not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, vr)
}

// POST /api/v1/properties/tokenize
func (c *PropertiesController) TokenizePropertyHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerID(ctx, w)
	if !ok {
		return
	}

	var req dtos.TokenizePropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}
	if req.PropertyID == uuid.Nil || req.TotalShares <= 0 {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "property_id and a positive total_shares are required", nil)
		return
	}

	prop, err := c.propertyService.TokenizeProperty(ctx, req.PropertyID, caller, req.TotalShares)
	if err != nil {
		respondServiceError(w, err, "Could not tokenize property")
		return
	}
	if prop == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Property not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, prop)
}

// POST /api/v1/admin/properties/status
func (c *PropertiesController) OverrideStatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	adminID, ok := callerID(ctx, w)
	if !ok {
		return
	}

	var req dtos.OverridePropertyStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return
	}
	newStatus := models.PropertyStatusType(strings.ToUpper(strings.TrimSpace(req.NewStatus)))
	if req.PropertyID == uuid.Nil || newStatus == "" || req.Justification == "" {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "property_id, new_status and justification are required", nil)
		return
	}

	prop, err := c.propertyService.OverridePropertyStatus(ctx, req.PropertyID, adminID, newStatus, req.Justification)
	if err != nil {
		respondServiceError(w, err, "Could not override property status")
		return
	}
	if prop == nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Property not found", nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, prop)
}
