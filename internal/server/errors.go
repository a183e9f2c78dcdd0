package server

import (
	"errors"
	"net/http"

	"github.com/gemini2openai/api-proxy/internal/gemini"
	"github.com/gemini2openai/api-proxy/internal/models"
	"github.com/gemini2openai/api-proxy/internal/translator"
	"github.com/gin-gonic/gin"
)

// writeError writes an OpenAI-style error envelope.
func writeError(c *gin.Context, status int, errType, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Message: message,
			Type:    errType,
			Code:    code,
		},
	})
}

// abortWithError maps err onto an HTTP status and error envelope.
func abortWithError(c *gin.Context, err error) {
	c.Error(err)

	var (
		roleErr  *translator.InvalidRoleError
		callErr  *gemini.UpstreamCallError
		shapeErr *translator.UpstreamShapeError
		emptyErr *translator.UpstreamEmptyResponseError
	)

	switch {
	case errors.As(err, &roleErr):
		writeError(c, http.StatusBadRequest, "invalid_request_error", "invalid_role", roleErr.Error())
	case errors.Is(err, translator.ErrValidation):
		writeError(c, http.StatusBadRequest, "invalid_request_error", "invalid_request", err.Error())
	case errors.As(err, &callErr):
		writeError(c, http.StatusInternalServerError, "upstream_error", "upstream_http_error", "Gemini API error: "+callErr.Body)
	case errors.As(err, &emptyErr):
		writeError(c, http.StatusBadGateway, "upstream_error", "upstream_empty_response", emptyErr.Error())
	case errors.As(err, &shapeErr):
		writeError(c, http.StatusBadGateway, "upstream_error", "upstream_invalid_response", shapeErr.Error())
	case gemini.IsTimeout(err):
		writeError(c, http.StatusGatewayTimeout, "upstream_error", "upstream_timeout", "Gemini API did not respond in time")
	default:
		writeError(c, http.StatusBadGateway, "upstream_error", "upstream_unavailable", err.Error())
	}
	c.Abort()
}
