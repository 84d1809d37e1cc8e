// internal/handler/experiment_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lab-rig-service/internal/model"
	"lab-rig-service/internal/utils"
)

// ConfigureRequest is the body of the configure call
type ConfigureRequest struct {
	Author     string                 `json:"author"`
	Name       string                 `json:"name" binding:"required"`
	TubingSize float64                `json:"tubing_size" binding:"gte=0"`
	Config     model.ExperimentConfig `json:"config"`
}

// Details returns the descriptive part of the request
func (r *ConfigureRequest) Details() model.ExperimentDetails {
	return model.ExperimentDetails{
		Author:     r.Author,
		Name:       r.Name,
		TubingSize: r.TubingSize,
	}
}

// ExperimentHandler handles the experiment lifecycle endpoints
type ExperimentHandler struct {
	experiment ExperimentRunner
	logger     *utils.ServiceLogger
}

// NewExperimentHandler creates a new experiment handler
func NewExperimentHandler(experiment ExperimentRunner, logger *zap.Logger) *ExperimentHandler {
	return &ExperimentHandler{
		experiment: experiment,
		logger:     utils.NewServiceLogger(logger, "experiment-handler"),
	}
}

// RegisterRoutes registers experiment routes
func (h *ExperimentHandler) RegisterRoutes(router *gin.RouterGroup) {
	experiment := router.Group("/experiment")
	{
		experiment.GET("", h.GetStatus)
		experiment.POST("/configure", h.Configure)
		experiment.POST("/start", h.Start)
		experiment.POST("/stop", h.Stop)
		experiment.POST("/reset", h.Reset)
	}
}

// Configure connects the instruments and applies the parameters
// @Summary Configure an experiment
// @Description Connect every enabled instrument, apply the setpoints and arm the run. Per-instrument failures are reported in the health report without failing the call.
// @Tags Experiment
// @Accept json
// @Produce json
// @Param request body ConfigureRequest true "Experiment parameters"
// @Success 200 {object} utils.APIResponse{data=model.HealthReport} "Experiment armed"
// @Failure 400 {object} utils.APIResponse "Invalid parameters"
// @Failure 409 {object} utils.APIResponse "A run is already active"
// @Router /experiment/configure [post]
func (h *ExperimentHandler) Configure(c *gin.Context) {
	var req ConfigureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	report, err := h.experiment.Configure(c.Request.Context(), req.Details(), req.Config)
	if err != nil {
		h.logger.Warn("Configure rejected", zap.Error(err))
		utils.ErrorResponse(c, errorStatus(err), "Failed to configure experiment", err)
		return
	}

	message := "Experiment armed"
	if !report.Healthy() {
		message = "Experiment armed with instrument failures"
	}
	utils.SuccessResponse(c, http.StatusOK, message, report)
}

// Start resumes or begins running
// @Summary Start the experiment
// @Description Queue a start intent. It is applied at the next poll tick.
// @Tags Experiment
// @Produce json
// @Success 202 {object} utils.APIResponse{data=service.ExperimentStatus} "Start queued"
// @Failure 409 {object} utils.APIResponse "No experiment configured"
// @Failure 429 {object} utils.APIResponse "Intent queue full"
// @Router /experiment/start [post]
func (h *ExperimentHandler) Start(c *gin.Context) {
	h.sendIntent(c, "start", h.experiment.Start)
}

// Stop pauses the run
// @Summary Stop the experiment
// @Description Queue a stop intent. Instruments are stopped at the next poll tick.
// @Tags Experiment
// @Produce json
// @Success 202 {object} utils.APIResponse{data=service.ExperimentStatus} "Stop queued"
// @Failure 409 {object} utils.APIResponse "No experiment configured"
// @Failure 429 {object} utils.APIResponse "Intent queue full"
// @Router /experiment/stop [post]
func (h *ExperimentHandler) Stop(c *gin.Context) {
	h.sendIntent(c, "stop", h.experiment.Stop)
}

// Reset ends the run
// @Summary Reset the experiment
// @Description Queue a reset intent. The run ends, the instruments are released and the controller returns to idle.
// @Tags Experiment
// @Produce json
// @Success 202 {object} utils.APIResponse{data=service.ExperimentStatus} "Reset queued"
// @Failure 409 {object} utils.APIResponse "No experiment configured"
// @Failure 429 {object} utils.APIResponse "Intent queue full"
// @Router /experiment/reset [post]
func (h *ExperimentHandler) Reset(c *gin.Context) {
	h.sendIntent(c, "reset", h.experiment.Reset)
}

func (h *ExperimentHandler) sendIntent(c *gin.Context, name string, send func() error) {
	if err := send(); err != nil {
		utils.ErrorResponse(c, errorStatus(err), "Failed to "+name+" experiment", err)
		return
	}

	h.logger.Info("Intent queued", zap.String("intent", name))
	utils.SuccessResponse(c, http.StatusAccepted, "Intent queued", h.experiment.Status())
}

// GetStatus returns the controller snapshot
// @Summary Experiment status
// @Description State, operator flags, run timer and the latest readings and health report
// @Tags Experiment
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.ExperimentStatus} "Current status"
// @Router /experiment [get]
func (h *ExperimentHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Experiment status", h.experiment.Status())
}
