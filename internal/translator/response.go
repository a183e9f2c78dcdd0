package translator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gemini2openai/api-proxy/internal/models"
	"github.com/tidwall/gjson"
)

const (
	// CompletionIDPrefix prefixes every synthesized chat completion id.
	CompletionIDPrefix = "chatcmpl-"

	objectChatCompletion = "chat.completion"
)

// ParseChatResponse decodes a 200 generateContent body.
//
// Required: a candidates array with at least one entry, a string finishReason
// per candidate, a string text on every part, and usageMetadata with
// promptTokenCount and totalTokenCount. content.parts may be absent (empty
// output) and candidatesTokenCount defaults to 0.
func ParseChatResponse(body []byte) (*models.GeminiChatResponse, error) {
	root, err := parseObject(body)
	if err != nil {
		return nil, err
	}

	candidates := root.Get("candidates")
	if candidates.Exists() && !candidates.IsArray() {
		return nil, shapeErr("candidates", "expected an array, got %s", candidates.Type)
	}
	if !candidates.Exists() || len(candidates.Array()) == 0 {
		return nil, &UpstreamEmptyResponseError{
			BlockReason: root.Get("promptFeedback.blockReason").String(),
		}
	}

	for i, candidate := range candidates.Array() {
		if err := checkCandidate(i, candidate); err != nil {
			return nil, err
		}
	}

	usage := root.Get("usageMetadata")
	if !usage.IsObject() {
		return nil, shapeErr("usageMetadata", "missing or not an object")
	}
	for _, key := range []string{"promptTokenCount", "totalTokenCount"} {
		if usage.Get(key).Type != gjson.Number {
			return nil, shapeErr("usageMetadata."+key, "missing or not a number")
		}
	}
	if v := usage.Get("candidatesTokenCount"); v.Exists() && v.Type != gjson.Number {
		return nil, shapeErr("usageMetadata.candidatesTokenCount", "not a number")
	}

	var resp models.GeminiChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, shapeErr("", "%v", err)
	}
	return &resp, nil
}

func checkCandidate(i int, candidate gjson.Result) error {
	field := fmt.Sprintf("candidates[%d]", i)
	if !candidate.IsObject() {
		return shapeErr(field, "expected an object")
	}
	if candidate.Get("finishReason").Type != gjson.String {
		return shapeErr(field+".finishReason", "missing or not a string")
	}

	content := candidate.Get("content")
	if !content.Exists() {
		return nil
	}
	if !content.IsObject() {
		return shapeErr(field+".content", "expected an object")
	}
	parts := content.Get("parts")
	if !parts.Exists() {
		return nil
	}
	if !parts.IsArray() {
		return shapeErr(field+".content.parts", "expected an array")
	}
	for j, part := range parts.Array() {
		if part.Get("text").Type != gjson.String {
			return shapeErr(fmt.Sprintf("%s.content.parts[%d].text", field, j), "missing or not a string")
		}
	}
	return nil
}

// ToChatCompletion converts a Gemini response into an OpenAI chat completion.
// Choices follow candidate order; usage is taken once from usageMetadata.
func ToChatCompletion(resp *models.GeminiChatResponse, model string, now time.Time) (*models.ChatCompletionResponse, error) {
	if len(resp.Candidates) == 0 {
		var blockReason string
		if resp.PromptFeedback != nil {
			blockReason = resp.PromptFeedback.BlockReason
		}
		return nil, &UpstreamEmptyResponseError{BlockReason: blockReason}
	}

	choices := make([]models.Choice, 0, len(resp.Candidates))
	for i, candidate := range resp.Candidates {
		var text strings.Builder
		for _, part := range candidate.Content.Parts {
			text.WriteString(part.Text)
		}

		choices = append(choices, models.Choice{
			Index: i,
			Message: models.ChoiceMessage{
				Role:    models.RoleAssistant,
				Content: text.String(),
			},
			FinishReason: strings.ToLower(candidate.FinishReason),
		})
	}

	created := now.Unix()
	return &models.ChatCompletionResponse{
		ID:      CompletionIDPrefix + strconv.FormatInt(created, 10),
		Object:  objectChatCompletion,
		Created: created,
		Model:   model,
		Choices: choices,
		Usage: models.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func parseObject(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, shapeErr("", "body is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return gjson.Result{}, shapeErr("", "expected a JSON object")
	}
	return root, nil
}
