package translator

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gemini2openai/api-proxy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestToGeminiRequest_Basic(t *testing.T) {
	req := &models.ChatCompletionRequest{
		Model: "gemini-2.0-flash",
		Messages: []models.ChatMessage{
			{Role: "user", Content: "Hello"},
		},
		Temperature: floatPtr(0.7),
	}

	geminiReq, err := ToGeminiRequest(req, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, len(geminiReq.Contents))
	assert.Equal(t, "user", geminiReq.Contents[0].Role)
	assert.Equal(t, "Hello", geminiReq.Contents[0].Parts[0].Text)
	assert.Nil(t, geminiReq.SystemInstruction)
	require.NotNil(t, geminiReq.GenerationConfig)
	assert.Equal(t, 0.7, *geminiReq.GenerationConfig.Temperature)
	assert.Nil(t, geminiReq.GenerationConfig.MaxOutputTokens)
	assert.Nil(t, geminiReq.GenerationConfig.TopP)
}

func TestToGeminiRequest_DefaultTemperature(t *testing.T) {
	req := &models.ChatCompletionRequest{
		Model:    "gemini-pro",
		Messages: []models.ChatMessage{{Role: "user", Content: "Hi"}},
	}

	geminiReq, err := ToGeminiRequest(req, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, *geminiReq.GenerationConfig.Temperature)
}

func TestToGeminiRequest_ZeroTemperatureIsKept(t *testing.T) {
	req := &models.ChatCompletionRequest{
		Model:       "gemini-pro",
		Messages:    []models.ChatMessage{{Role: "user", Content: "Hi"}},
		Temperature: floatPtr(0),
	}

	geminiReq, err := ToGeminiRequest(req, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, *geminiReq.GenerationConfig.Temperature)
}

func TestToGeminiRequest_SystemMessage(t *testing.T) {
	req := &models.ChatCompletionRequest{
		Model: "gemini-pro",
		Messages: []models.ChatMessage{
			{Role: "system", Content: "A"},
			{Role: "user", Content: "B"},
		},
	}

	geminiReq, err := ToGeminiRequest(req, nil)
	require.NoError(t, err)

	require.NotNil(t, geminiReq.SystemInstruction)
	assert.Empty(t, geminiReq.SystemInstruction.Role)
	assert.Equal(t, "A", geminiReq.SystemInstruction.Parts[0].Text)
	assert.Equal(t, []models.GeminiContent{
		{Role: "user", Parts: []models.GeminiPart{{Text: "B"}}},
	}, geminiReq.Contents)
}

func TestToGeminiRequest_MultipleSystemMessages(t *testing.T) {
	req := &models.ChatCompletionRequest{
		Model: "gemini-pro",
		Messages: []models.ChatMessage{
			{Role: "system", Content: "first"},
			{Role: "user", Content: "question"},
			{Role: "system", Content: "second"},
		},
	}

	geminiReq, err := ToGeminiRequest(req, nil)
	require.NoError(t, err)

	require.NotNil(t, geminiReq.SystemInstruction)
	assert.Equal(t, []models.GeminiPart{{Text: "first"}, {Text: "second"}}, geminiReq.SystemInstruction.Parts)
	assert.Len(t, geminiReq.Contents, 1)
}

func TestToGeminiRequest_AssistantBecomesModel(t *testing.T) {
	req := &models.ChatCompletionRequest{
		Model: "gemini-pro",
		Messages: []models.ChatMessage{
			{Role: "user", Content: "1"},
			{Role: "assistant", Content: "2"},
			{Role: "user", Content: "3"},
		},
	}

	geminiReq, err := ToGeminiRequest(req, nil)
	require.NoError(t, err)

	require.Len(t, geminiReq.Contents, 3)
	for i, want := range []struct{ role, text string }{{"user", "1"}, {"model", "2"}, {"user", "3"}} {
		assert.Equal(t, want.role, geminiReq.Contents[i].Role)
		assert.Equal(t, want.text, geminiReq.Contents[i].Parts[0].Text)
		assert.NotEqual(t, "assistant", geminiReq.Contents[i].Role)
	}
}

func TestToGeminiRequest_InvalidRole(t *testing.T) {
	req := &models.ChatCompletionRequest{
		Model: "gemini-pro",
		Messages: []models.ChatMessage{
			{Role: "user", Content: "Hi"},
			{Role: "tool", Content: "{}"},
		},
	}

	geminiReq, err := ToGeminiRequest(req, nil)
	assert.Nil(t, geminiReq)
	require.Error(t, err)

	var roleErr *InvalidRoleError
	require.True(t, errors.As(err, &roleErr))
	assert.Equal(t, 1, roleErr.Index)
	assert.Equal(t, "tool", roleErr.Role)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestToGeminiRequest_SafetyPolicyAttached(t *testing.T) {
	req := &models.ChatCompletionRequest{
		Model:    "gemini-pro",
		Messages: []models.ChatMessage{{Role: "user", Content: "Hi"}},
	}

	geminiReq, err := ToGeminiRequest(req, SafetyPolicy("BLOCK_NONE"))
	require.NoError(t, err)

	require.Len(t, geminiReq.SafetySettings, len(HarmCategories))
	for i, s := range geminiReq.SafetySettings {
		assert.Equal(t, HarmCategories[i], s.Category)
		assert.Equal(t, "BLOCK_NONE", s.Threshold)
	}
}

func TestToGeminiRequest_OmitsUnsetFields(t *testing.T) {
	req := &models.ChatCompletionRequest{
		Model:    "gemini-pro",
		Messages: []models.ChatMessage{{Role: "user", Content: "Hi"}},
	}

	geminiReq, err := ToGeminiRequest(req, nil)
	require.NoError(t, err)

	body, err := json.Marshal(geminiReq)
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"contents":[{"role":"user","parts":[{"text":"Hi"}]}],"generation_config":{"temperature":1}}`,
		string(body))
	assert.NotContains(t, string(body), "null")
}

func TestUpstreamModelID(t *testing.T) {
	assert.Equal(t, "gemini-pro", UpstreamModelID("gemini-pro"))
	assert.Equal(t, "gemini-pro", UpstreamModelID("models/gemini-pro"))
}
