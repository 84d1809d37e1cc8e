// internal/handler/errors.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"lab-rig-service/internal/model"
	"lab-rig-service/internal/repository"
	"lab-rig-service/internal/service"
	"lab-rig-service/internal/utils"
	"lab-rig-service/pkg/instrument"
)

// respondBindError answers a body that could not be decoded or failed its binding rules
func respondBindError(c *gin.Context, err error) {
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		fields := make(map[string]string, len(invalid))
		for _, fe := range invalid {
			fields[fe.Field()] = fe.Tag()
		}
		utils.ValidationErrorResponse(c, fields)
		return
	}
	utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
}

// errorStatus maps service and instrument errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidConfig), errors.Is(err, service.ErrInvalidSlot):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotIdle), errors.Is(err, service.ErrNotConfigured):
		return http.StatusConflict
	case errors.Is(err, service.ErrIntentQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrOperationNotSupported):
		return http.StatusNotImplemented
	}

	switch instrument.Classify(err) {
	case model.ErrorKindConnection:
		return http.StatusServiceUnavailable
	case model.ErrorKindProtocol:
		return http.StatusBadGateway
	case model.ErrorKindTimeout:
		return http.StatusGatewayTimeout
	case model.ErrorKindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
