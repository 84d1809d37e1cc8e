// internal/handler/instrument_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lab-rig-service/internal/model"
	"lab-rig-service/internal/utils"
)

// InstrumentHandler handles instrument-related HTTP requests
type InstrumentHandler struct {
	instruments InstrumentManager
	logger      *utils.ServiceLogger
}

// NewInstrumentHandler creates a new instrument handler
func NewInstrumentHandler(instruments InstrumentManager, logger *zap.Logger) *InstrumentHandler {
	return &InstrumentHandler{
		instruments: instruments,
		logger:      utils.NewServiceLogger(logger, "instrument-handler"),
	}
}

// RegisterRoutes registers instrument routes
func (h *InstrumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	instruments := router.Group("/instruments")
	{
		instruments.GET("", h.ListInstruments)
		instruments.POST("/mfc/tare", h.TareMFC)
		instruments.GET("/:kind/identify", h.Identify)
	}
}

// ListInstruments lists the configured instruments
// @Summary List instruments
// @Description Configured instruments with their port. Connection state and health metrics are present while a run is active.
// @Tags Instruments
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]service.InstrumentInfo} "Instruments"
// @Router /instruments [get]
func (h *InstrumentHandler) ListInstruments(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Instruments retrieved successfully", h.instruments.ListInstruments())
}

// Identify queries an instrument's identity
// @Summary Identify an instrument
// @Description Ask the instrument for manufacturer, model and firmware
// @Tags Instruments
// @Produce json
// @Param kind path string true "Instrument" Enums(PSU, PUMP, MFC, STIRRER)
// @Success 200 {object} utils.APIResponse{data=model.Identity} "Identity"
// @Failure 400 {object} utils.APIResponse "Unknown instrument"
// @Failure 501 {object} utils.APIResponse "Instrument cannot identify itself"
// @Failure 503 {object} utils.APIResponse "Instrument unavailable"
// @Router /instruments/{kind}/identify [get]
func (h *InstrumentHandler) Identify(c *gin.Context) {
	kind, err := model.ParseInstrumentKind(c.Param("kind"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Unknown instrument", err)
		return
	}

	identity, err := h.instruments.Identify(c.Request.Context(), kind)
	if err != nil {
		h.logger.Warn("Identify failed", zap.String("instrument", string(kind)), zap.Error(err))
		utils.ErrorResponse(c, errorStatus(err), "Failed to identify instrument", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Instrument identified", identity)
}

// TareMFC zeroes the mass-flow controller
// @Summary Tare the mass-flow controller
// @Tags Instruments
// @Produce json
// @Success 200 {object} utils.APIResponse "Tared"
// @Failure 503 {object} utils.APIResponse "Instrument unavailable"
// @Router /instruments/mfc/tare [post]
func (h *InstrumentHandler) TareMFC(c *gin.Context) {
	if err := h.instruments.TareMFC(c.Request.Context()); err != nil {
		h.logger.Warn("Tare failed", zap.Error(err))
		utils.ErrorResponse(c, errorStatus(err), "Failed to tare mass-flow controller", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Mass-flow controller tared", nil)
}
