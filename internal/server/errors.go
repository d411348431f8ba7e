package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TobiSchelling/PinForge/internal/article"
	"github.com/TobiSchelling/PinForge/internal/database"
	"github.com/TobiSchelling/PinForge/internal/keywords"
	"github.com/TobiSchelling/PinForge/internal/pinterest"
	"github.com/TobiSchelling/PinForge/internal/settings"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		verr *article.ValidationError
		cerr *article.ConfigurationError
		kerr *settings.KeyFormatError
		gerr *article.GenerationError
		perr *article.PersistenceError
	)
	switch {
	case errors.As(err, &verr),
		errors.Is(err, keywords.ErrEmptyKeyword):
		return http.StatusBadRequest
	case errors.As(err, &cerr), errors.As(err, &kerr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, article.ErrNotFound),
		errors.Is(err, database.ErrKeywordNotFound):
		return http.StatusNotFound
	case errors.Is(err, article.ErrDiscarded),
		errors.Is(err, keywords.ErrAlreadyTracked):
		return http.StatusConflict
	case errors.As(err, &gerr):
		return http.StatusBadGateway
	case errors.Is(err, pinterest.ErrNoToken):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &perr):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// fail writes an error response. Server-side failures are recorded on the
// context for the request logger.
func fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		c.Error(err) //nolint:errcheck
	}
	body := gin.H{"error": err.Error()}
	var verr *article.ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
	}
	c.JSON(status, body)
}
