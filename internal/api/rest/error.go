package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/feral-file/ff-state-reducer/internal/api/shared/errors"
	"github.com/feral-file/ff-state-reducer/internal/logger"
)

// errorResponse represents a standardized error response
type errorResponse struct {
	Error *apierrors.APIError `json:"error"`
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: apierrors.NewBadRequestError(message, details...)})
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: apierrors.NewValidationError(details)})
}

// respondError sends an executor error, logging anything that is not an API error
func respondError(c *gin.Context, err error, message string, fields ...zap.Field) {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status(), errorResponse{Error: apiErr})
		return
	}

	logger.ErrorCtx(c.Request.Context(), err, fields...)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: apierrors.NewInternalError(message)})
}
