package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gemini2openai/api-proxy/internal/gemini"
	"github.com/gemini2openai/api-proxy/internal/models"
	"github.com/gemini2openai/api-proxy/internal/translator"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	opGenerateContent = "generate_content"
	opListModels      = "list_models"
)

// chatCompletions handles the chat completion request
func (s *Server) chatCompletions(c *gin.Context) {
	var req models.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		writeError(c, http.StatusBadRequest, "invalid_request_error", "invalid_request", "Invalid request: "+err.Error())
		return
	}

	if req.Stream {
		s.logger.Debug("Streaming requested but not supported, answering with a single response",
			zap.String("request_id", c.GetString(requestIDKey)))
	}

	// Transform request to Gemini format
	geminiReq, err := translator.ToGeminiRequest(&req, s.safety)
	if err != nil {
		abortWithError(c, err)
		return
	}

	reqBody, err := json.Marshal(geminiReq)
	if err != nil {
		abortWithError(c, fmt.Errorf("failed to marshal request: %w", err))
		return
	}

	model := translator.UpstreamModelID(req.Model)

	start := time.Now()
	body, status, err := s.upstream.GenerateContent(c.Request.Context(), model, reqBody)
	s.metrics.ObserveUpstream(opGenerateContent, status, err, time.Since(start))
	if err != nil {
		s.logger.Warn("Gemini API request failed",
			zap.String("model", model),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		abortWithError(c, err)
		return
	}

	// Handle non-200 responses
	if status != http.StatusOK {
		callErr := gemini.NewUpstreamCallError(status, body)
		s.logger.Warn("Gemini API returned error",
			zap.String("model", model),
			zap.Int("status", status),
			zap.String("google_status", callErr.Status),
			zap.String("google_message", callErr.Message),
			zap.String("request_id", c.GetString(requestIDKey)))
		abortWithError(c, callErr)
		return
	}

	geminiResp, err := translator.ParseChatResponse(body)
	if err != nil {
		s.logger.Warn("Unexpected Gemini response",
			zap.String("model", model),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		abortWithError(c, err)
		return
	}

	resp, err := translator.ToChatCompletion(geminiResp, req.Model, s.now())
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.metrics.ObserveUsage(model, resp.Usage)
	s.logger.Debug("Request successful",
		zap.String("model", model),
		zap.Int("choices", len(resp.Choices)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.String("request_id", c.GetString(requestIDKey)))

	c.JSON(http.StatusOK, resp)
}

// listModels handles the models listing request
func (s *Server) listModels(c *gin.Context) {
	start := time.Now()
	body, status, err := s.upstream.ListModels(c.Request.Context())
	s.metrics.ObserveUpstream(opListModels, status, err, time.Since(start))
	if err != nil {
		s.logger.Warn("Gemini models request failed", zap.Error(err))
		abortWithError(c, err)
		return
	}

	if status != http.StatusOK {
		callErr := gemini.NewUpstreamCallError(status, body)
		s.logger.Warn("Gemini models listing returned error",
			zap.Int("status", status),
			zap.String("google_status", callErr.Status),
			zap.String("google_message", callErr.Message))
		abortWithError(c, callErr)
		return
	}

	list, err := translator.ParseModelList(body)
	if err != nil {
		s.logger.Warn("Unexpected Gemini models listing", zap.Error(err))
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, translator.ToModelsResponse(list, s.now()))
}
