package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *AppError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type Meta struct {
	Page       int   `json:"page,omitempty"`
	PerPage    int   `json:"per_page,omitempty"`
	Total      int64 `json:"total,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
}

func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func SendSuccessWithMeta(c *gin.Context, data interface{}, meta *Meta) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func SendError(c *gin.Context, statusCode int, err *AppError) {
	c.JSON(statusCode, Response{
		Success: false,
		Error:   err,
	})
}

func SendValidationError(c *gin.Context, message string, details string) {
	SendError(c, http.StatusUnprocessableEntity, NewAppError(ErrCodeValidation, message, details))
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, NewAppError(ErrCodeNotFound, message))
}

func SendInternalError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, NewAppError(ErrCodeInternal, message))
}

func SendConflict(c *gin.Context, message string) {
	SendError(c, http.StatusConflict, NewAppError(ErrCodeConflict, message))
}

func SendQuotaExhausted(c *gin.Context, message string) {
	SendError(c, http.StatusServiceUnavailable, NewAppError(ErrCodeQuotaExhausted, message))
}

func SendUpstreamError(c *gin.Context, message string) {
	SendError(c, http.StatusBadGateway, NewAppError(ErrCodeUpstream, message))
}

// SendServiceError maps a sentinel error from the service layer onto the
// HTTP error taxonomy. Unrecognized errors surface as 500s.
func SendServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		SendNotFound(c, err.Error())
	case errors.Is(err, ErrInvalidInput):
		SendValidationError(c, err.Error(), "")
	case errors.Is(err, ErrTaskInProgress):
		SendError(c, http.StatusConflict, NewAppError(ErrCodeTaskInProgress, err.Error()))
	case errors.Is(err, ErrConflict):
		SendConflict(c, err.Error())
	case errors.Is(err, ErrQuotaExhausted):
		SendQuotaExhausted(c, err.Error())
	case errors.Is(err, ErrUpstreamAuth), errors.Is(err, ErrUpstream):
		SendUpstreamError(c, err.Error())
	case errors.Is(err, ErrDataIntegrity):
		SendError(c, http.StatusInternalServerError, NewAppError(ErrCodeDataIntegrity, err.Error()))
	default:
		SendInternalError(c, err.Error())
	}
}
