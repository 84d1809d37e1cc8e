// internal/handler/profile_handler.go
package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lab-rig-service/internal/service"
	"lab-rig-service/internal/utils"
)

// ProfileHandler handles save profile requests
type ProfileHandler struct {
	profiles ProfileManager
	logger   *utils.ServiceLogger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles ProfileManager, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   utils.NewServiceLogger(logger, "profile-handler"),
	}
}

// RegisterRoutes registers profile routes
func (h *ProfileHandler) RegisterRoutes(router *gin.RouterGroup) {
	profiles := router.Group("/profiles")
	{
		profiles.GET("", h.ListProfiles)
		profiles.GET("/:slot", h.GetProfile)
		profiles.PUT("/:slot", h.OverwriteProfile)
		profiles.DELETE("/:slot", h.ClearProfile)
	}
}

func parseSlot(c *gin.Context) (int, bool) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid slot", fmt.Errorf("%w: %q", service.ErrInvalidSlot, c.Param("slot")))
		return 0, false
	}
	return slot, true
}

// ListProfiles lists the stored save profiles
// @Summary List save profiles
// @Tags Profiles
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]model.SaveProfile} "Profiles"
// @Router /profiles [get]
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	profiles, err := h.profiles.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list profiles", zap.Error(err))
		utils.ErrorResponse(c, errorStatus(err), "Failed to list profiles", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profiles retrieved successfully", profiles)
}

// GetProfile loads one slot
// @Summary Load a save profile
// @Tags Profiles
// @Produce json
// @Param slot path int true "Slot number" minimum(1) maximum(5)
// @Success 200 {object} utils.APIResponse{data=model.SaveProfile} "Profile"
// @Failure 400 {object} utils.APIResponse "Invalid slot"
// @Failure 404 {object} utils.APIResponse "Slot is empty"
// @Router /profiles/{slot} [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	slot, ok := parseSlot(c)
	if !ok {
		return
	}

	profile, err := h.profiles.Load(c.Request.Context(), slot)
	if err != nil {
		utils.ErrorResponse(c, errorStatus(err), "Failed to load profile", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile loaded", profile)
}

// OverwriteProfile replaces one slot
// @Summary Overwrite a save profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Param slot path int true "Slot number" minimum(1) maximum(5)
// @Param request body ConfigureRequest true "Parameters to store"
// @Success 200 {object} utils.APIResponse{data=model.SaveProfile} "Profile saved"
// @Failure 400 {object} utils.APIResponse "Invalid slot or parameters"
// @Router /profiles/{slot} [put]
func (h *ProfileHandler) OverwriteProfile(c *gin.Context) {
	slot, ok := parseSlot(c)
	if !ok {
		return
	}

	var req ConfigureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	profile, err := h.profiles.Overwrite(c.Request.Context(), slot, req.Details(), req.Config)
	if err != nil {
		utils.ErrorResponse(c, errorStatus(err), "Failed to save profile", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile saved", profile)
}

// ClearProfile empties one slot
// @Summary Clear a save profile
// @Tags Profiles
// @Produce json
// @Param slot path int true "Slot number" minimum(1) maximum(5)
// @Success 200 {object} utils.APIResponse "Profile cleared"
// @Failure 404 {object} utils.APIResponse "Slot is empty"
// @Router /profiles/{slot} [delete]
func (h *ProfileHandler) ClearProfile(c *gin.Context) {
	slot, ok := parseSlot(c)
	if !ok {
		return
	}

	if err := h.profiles.Clear(c.Request.Context(), slot); err != nil {
		utils.ErrorResponse(c, errorStatus(err), "Failed to clear profile", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile cleared", nil)
}
