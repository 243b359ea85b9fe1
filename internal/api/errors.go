package api

import (
	"errors"
	"net/http"

	"github.com/Fi44er/community_payments/internal/service"
	"github.com/gin-gonic/gin"
)

var badRequest = []error{
	service.ErrValidation,
	service.ErrProviderRejected,
	service.ErrRetriesExhausted,
	service.ErrOneTimeNotRetryable,
	service.ErrAlreadyResolved,
	service.ErrNoAuthorization,
	service.ErrNoSubscription,
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrSignatureInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.FullPath()).Error("unexpected error")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
