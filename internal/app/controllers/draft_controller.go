package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/campusreg/internal/app/models/dto"
	"github.com/yigit/campusreg/internal/app/services"
	"github.com/yigit/campusreg/internal/middleware"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
)

// DraftController handles the signed-in applicant's registration draft
type DraftController struct {
	draftService services.DraftService
}

// NewDraftController creates a new DraftController
func NewDraftController(draftService services.DraftService) *DraftController {
	return &DraftController{draftService: draftService}
}

// GetDraft returns the saved registration draft
// @Summary Load registration draft
// @Tags registration
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.DraftResponse}
// @Failure 401 {object} dto.ErrorResponse "Not signed in"
// @Failure 404 {object} dto.ErrorResponse "No draft saved"
// @Router /registration/draft [get]
func (c *DraftController) GetDraft(ctx *gin.Context) {
	auth := middleware.CurrentSession(ctx)
	if auth == nil {
		middleware.HandleAPIError(ctx, apperrors.ErrUnauthenticated)
		return
	}

	draft, err := c.draftService.LoadDraft(ctx.Request.Context(), auth.ApplicantID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewDraftResponse(draft)))
}

// SaveDraft replaces the registration draft
// @Summary Save registration draft
// @Description Stores the whole form state, replacing any earlier draft
// @Tags registration
// @Accept json
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Param request body dto.SaveDraftRequest true "Form state"
// @Success 200 {object} dto.APIResponse{data=dto.DraftResponse}
// @Failure 400 {object} dto.ErrorResponse "Payload is not valid JSON"
// @Failure 401 {object} dto.ErrorResponse "Not signed in"
// @Router /registration/draft [put]
func (c *DraftController) SaveDraft(ctx *gin.Context) {
	auth := middleware.CurrentSession(ctx)
	if auth == nil {
		middleware.HandleAPIError(ctx, apperrors.ErrUnauthenticated)
		return
	}

	var req dto.SaveDraftRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.HandleAPIError(ctx, apperrors.ErrInvalidDraftPayload)
		return
	}

	draft, err := c.draftService.SaveDraft(ctx.Request.Context(), auth.ApplicantID, req.Payload)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewDraftResponse(draft)))
}
