// internal/handler/run_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lab-rig-service/internal/model"
	"lab-rig-service/internal/repository"
	"lab-rig-service/internal/utils"
)

// RunHandler serves the stored run history
type RunHandler struct {
	runs   RunHistory
	logger *utils.ServiceLogger
}

// NewRunHandler creates a new run history handler
func NewRunHandler(runs RunHistory, logger *zap.Logger) *RunHandler {
	return &RunHandler{
		runs:   runs,
		logger: utils.NewServiceLogger(logger, "run-handler"),
	}
}

// RegisterRoutes registers run history routes
func (h *RunHandler) RegisterRoutes(router *gin.RouterGroup) {
	runs := router.Group("/runs")
	{
		runs.GET("", h.ListRuns)
		runs.GET("/:run_id", h.GetRun)
		runs.GET("/:run_id/readings", h.ListReadings)
	}
}

// ListRuns lists stored runs
// @Summary List runs
// @Tags Runs
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param state query string false "Filter by final state" Enums(ARMED, RUNNING, STOPPED)
// @Param name query string false "Filter by experiment name"
// @Success 200 {object} utils.APIResponse{data=[]model.Run} "Runs"
// @Router /runs [get]
func (h *RunHandler) ListRuns(c *gin.Context) {
	filter := &repository.RunFilter{
		Page:    1,
		PerPage: 20,
	}

	if page := c.Query("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			filter.Page = p
		}
	}
	if perPage := c.Query("per_page"); perPage != "" {
		if pp, err := strconv.Atoi(perPage); err == nil && pp > 0 && pp <= 100 {
			filter.PerPage = pp
		}
	}
	if state := c.Query("state"); state != "" {
		s := model.ExperimentState(state)
		filter.State = &s
	}
	if name := c.Query("name"); name != "" {
		filter.Name = &name
	}

	runs, total, err := h.runs.ListRuns(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	utils.PaginatedResponse(c, "Runs retrieved successfully", runs,
		utils.NewPagination(filter.Page, filter.PerPage, total))
}

// GetRun returns one run
// @Summary Get a run
// @Tags Runs
// @Produce json
// @Param run_id path string true "Run ID"
// @Success 200 {object} utils.APIResponse{data=model.Run} "Run"
// @Failure 404 {object} utils.APIResponse "Run not found"
// @Router /runs/{run_id} [get]
func (h *RunHandler) GetRun(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}

	run, err := h.runs.GetRun(c.Request.Context(), id)
	if err != nil {
		utils.ErrorResponse(c, errorStatus(err), "Failed to get run", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Run retrieved successfully", run)
}

// ListReadings returns the readings of a run
// @Summary List readings of a run
// @Tags Runs
// @Produce json
// @Param run_id path string true "Run ID"
// @Param limit query int false "Maximum number of readings"
// @Success 200 {object} utils.APIResponse{data=[]model.ReadingBundle} "Readings"
// @Failure 404 {object} utils.APIResponse "Run not found"
// @Router /runs/{run_id}/readings [get]
func (h *RunHandler) ListReadings(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	readings, err := h.runs.Readings(c.Request.Context(), id, limit)
	if err != nil {
		utils.ErrorResponse(c, errorStatus(err), "Failed to list readings", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Readings retrieved successfully", readings)
}

func parseRunID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid run ID", err)
		return uuid.Nil, false
	}
	return id, true
}
