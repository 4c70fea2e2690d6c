package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-backoffice/models"
)

type JSONResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, err error) {
	c.JSON(code, JSONResponse{
		Status:  false,
		Message: err.Error(),
		Data:    nil,
	})
}

// RespondFailure answers with the status code matching the error kind.
func RespondFailure(c *gin.Context, err error) {
	RespondError(c, StatusFor(err), err)
}

// StatusFor maps an order error kind to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrOperationFailed):
		return http.StatusConflict
	case errors.Is(err, models.ErrTransport):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
