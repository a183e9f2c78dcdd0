package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gemini2openai/api-proxy/internal/config"
	"github.com/gemini2openai/api-proxy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUpstream struct {
	chatCalls  atomic.Int32
	modelCalls atomic.Int32

	lastModel string
	lastBody  []byte

	body   string
	status int
	err    error
	panic  bool
}

func (f *fakeUpstream) GenerateContent(ctx context.Context, model string, body []byte) ([]byte, int, error) {
	f.chatCalls.Add(1)
	f.lastModel = model
	f.lastBody = body
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return nil, 0, f.err
	}
	return []byte(f.body), f.status, nil
}

func (f *fakeUpstream) ListModels(ctx context.Context) ([]byte, int, error) {
	f.modelCalls.Add(1)
	if f.err != nil {
		return nil, 0, f.err
	}
	return []byte(f.body), f.status, nil
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func setupTestServer(t *testing.T, upstream *fakeUpstream) *Server {
	cfg := config.Default()
	cfg.Server.Mode = "test"
	cfg.Gemini.APIKey = "test-key"
	cfg.Metrics.Enabled = true

	s, err := New(cfg, zap.NewNop(), upstream)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorDetail {
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

const okChatBody = `{
  "candidates": [
    {"content": {"parts": [{"text": "X"}], "role": "model"}, "finishReason": "STOP"},
    {"content": {"parts": [{"text": "Y"}], "role": "model"}, "finishReason": "STOP"}
  ],
  "usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 2, "totalTokenCount": 7}
}`

func TestChatCompletions_Success(t *testing.T) {
	upstream := &fakeUpstream{status: 200, body: okChatBody}
	s := setupTestServer(t, upstream)

	w := doRequest(s, "POST", "/v1/chat/completions", `{
	  "model": "gemini-pro",
	  "messages": [{"role": "system", "content": "A"}, {"role": "user", "content": "B"}],
	  "temperature": 0.5
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.ID, "chatcmpl-"))
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, int64(1700000000), resp.Created)
	assert.Equal(t, "gemini-pro", resp.Model)
	require.Len(t, resp.Choices, 2)
	assert.Equal(t, 0, resp.Choices[0].Index)
	assert.Equal(t, "X", resp.Choices[0].Message.Content)
	assert.Equal(t, 1, resp.Choices[1].Index)
	assert.Equal(t, "Y", resp.Choices[1].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, models.Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7}, resp.Usage)

	assert.Equal(t, int32(1), upstream.chatCalls.Load())
	assert.Equal(t, "gemini-pro", upstream.lastModel)
	assert.JSONEq(t, `{
	  "contents": [{"role": "user", "parts": [{"text": "B"}]}],
	  "system_instruction": {"parts": [{"text": "A"}]},
	  "generation_config": {"temperature": 0.5},
	  "safety_settings": [
	    {"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_NONE"},
	    {"category": "HARM_CATEGORY_HATE_SPEECH", "threshold": "BLOCK_NONE"},
	    {"category": "HARM_CATEGORY_SEXUALLY_EXPLICIT", "threshold": "BLOCK_NONE"},
	    {"category": "HARM_CATEGORY_DANGEROUS_CONTENT", "threshold": "BLOCK_NONE"},
	    {"category": "HARM_CATEGORY_CIVIC_INTEGRITY", "threshold": "BLOCK_NONE"}
	  ]
	}`, string(upstream.lastBody))
}

func TestChatCompletions_ModelPrefixStripped(t *testing.T) {
	upstream := &fakeUpstream{status: 200, body: okChatBody}
	s := setupTestServer(t, upstream)

	w := doRequest(s, "POST", "/v1/chat/completions", `{"model":"models/gemini-pro","messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gemini-pro", upstream.lastModel)

	var resp models.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "models/gemini-pro", resp.Model)
}

func TestChatCompletions_InvalidRoleNeverCallsUpstream(t *testing.T) {
	upstream := &fakeUpstream{status: 200, body: okChatBody}
	s := setupTestServer(t, upstream)

	w := doRequest(s, "POST", "/v1/chat/completions", `{"model":"gemini-pro","messages":[{"role":"tool","content":"x"}]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_role", decodeError(t, w).Code)
	assert.Equal(t, int32(0), upstream.chatCalls.Load())
}

func TestChatCompletions_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"model":`},
		{"missing model", `{"messages":[{"role":"user","content":"x"}]}`},
		{"missing messages", `{"model":"gemini-pro"}`},
		{"empty messages", `{"model":"gemini-pro","messages":[]}`},
		{"temperature too high", `{"model":"gemini-pro","messages":[{"role":"user","content":"x"}],"temperature":2.5}`},
		{"negative temperature", `{"model":"gemini-pro","messages":[{"role":"user","content":"x"}],"temperature":-1}`},
		{"multi-part content", `{"model":"gemini-pro","messages":[{"role":"user","content":[{"type":"text","text":"x"}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := &fakeUpstream{status: 200, body: okChatBody}
			s := setupTestServer(t, upstream)

			w := doRequest(s, "POST", "/v1/chat/completions", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid_request_error", decodeError(t, w).Type)
			assert.Equal(t, int32(0), upstream.chatCalls.Load())
		})
	}
}

func TestChatCompletions_StreamFlagAccepted(t *testing.T) {
	upstream := &fakeUpstream{status: 200, body: okChatBody}
	s := setupTestServer(t, upstream)

	w := doRequest(s, "POST", "/v1/chat/completions", `{"model":"gemini-pro","stream":true,"messages":[{"role":"user","content":"x"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestChatCompletions_UpstreamFailure(t *testing.T) {
	upstream := &fakeUpstream{
		status: 503,
		body:   `{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`,
	}
	s := setupTestServer(t, upstream)

	w := doRequest(s, "POST", "/v1/chat/completions", `{"model":"gemini-pro","messages":[{"role":"user","content":"x"}]}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	detail := decodeError(t, w)
	assert.True(t, strings.HasPrefix(detail.Message, "Gemini API error"))
	assert.Contains(t, detail.Message, "The model is overloaded.")
	assert.Equal(t, "upstream_http_error", detail.Code)
	assert.Equal(t, int32(1), upstream.chatCalls.Load())
}

func TestChatCompletions_UpstreamResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"no candidates", `{"promptFeedback":{"blockReason":"SAFETY"},"usageMetadata":{"promptTokenCount":1,"totalTokenCount":1}}`, "upstream_empty_response"},
		{"wrong shape", `{"candidates":[{"content":{"parts":[{"text":"a"}]}}]}`, "upstream_invalid_response"},
		{"not json", `<html>oops</html>`, "upstream_invalid_response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t, &fakeUpstream{status: 200, body: tt.body})

			w := doRequest(s, "POST", "/v1/chat/completions", `{"model":"gemini-pro","messages":[{"role":"user","content":"x"}]}`)
			assert.Equal(t, http.StatusBadGateway, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestChatCompletions_TransportErrors(t *testing.T) {
	s := setupTestServer(t, &fakeUpstream{err: errors.New("connection refused")})
	w := doRequest(s, "POST", "/v1/chat/completions", `{"model":"gemini-pro","messages":[{"role":"user","content":"x"}]}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "upstream_unavailable", decodeError(t, w).Code)

	s = setupTestServer(t, &fakeUpstream{err: timeoutError{}})
	w = doRequest(s, "POST", "/v1/chat/completions", `{"model":"gemini-pro","messages":[{"role":"user","content":"x"}]}`)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "upstream_timeout", decodeError(t, w).Code)
}

func TestChatCompletions_PanicIsRecovered(t *testing.T) {
	s := setupTestServer(t, &fakeUpstream{panic: true})

	w := doRequest(s, "POST", "/v1/chat/completions", `{"model":"gemini-pro","messages":[{"role":"user","content":"x"}]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_error", decodeError(t, w).Code)
}

func TestListModels(t *testing.T) {
	upstream := &fakeUpstream{status: 200, body: `{"models":[
	  {"name":"models/gemini-pro","version":"001","displayName":"Gemini Pro"},
	  {"name":"models/gemini-2.0-flash","version":"2.0"}
	]}`}
	s := setupTestServer(t, upstream)

	w := doRequest(s, "GET", "/v1/models", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ModelsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, models.ModelObject{ID: "gemini-pro", Object: "model", Created: 1700000000, OwnedBy: "openai"}, resp.Data[0])
	assert.Equal(t, "gemini-2.0-flash", resp.Data[1].ID)
	assert.Equal(t, int32(1), upstream.modelCalls.Load())
}

func TestListModels_UpstreamFailure(t *testing.T) {
	s := setupTestServer(t, &fakeUpstream{status: 400, body: `{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`})

	w := doRequest(s, "GET", "/v1/models", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeError(t, w).Message, "API key not valid.")
}

func TestListModels_ShapeError(t *testing.T) {
	s := setupTestServer(t, &fakeUpstream{status: 200, body: `{"models":[{"version":"1"}]}`})

	w := doRequest(s, "GET", "/v1/models", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "upstream_invalid_response", decodeError(t, w).Code)
}
