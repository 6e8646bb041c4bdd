package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/biterate/internal/server/services"
)

const storageFailureMessage = "storage operation failed"

// statusFor maps a service error to an HTTP status and client message.
// Storage and index failures never leak their cause.
func statusFor(err error) (int, string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, "upload exceeds size limit"
	}

	switch services.KindOf(err) {
	case services.KindInvalidInput:
		return http.StatusBadRequest, "invalid upload"
	case services.KindNotFound:
		return http.StatusNotFound, "photo not found"
	default:
		return http.StatusInternalServerError, storageFailureMessage
	}
}

func (h *handlers) abortWithError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	} else {
		h.logger.Debug(c.Request.Context(), "request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
