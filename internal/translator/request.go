// Package translator converts between the OpenAI chat schema exposed by the
// proxy and the Gemini generateContent schema. Every function here is pure:
// no I/O, no clock reads, no shared state.
package translator

import (
	"strings"

	"github.com/gemini2openai/api-proxy/internal/models"
)

// modelNamePrefix namespaces Gemini model resource names.
const modelNamePrefix = "models/"

// HarmCategories lists the categories covered by the process-wide safety policy.
var HarmCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
	"HARM_CATEGORY_CIVIC_INTEGRITY",
}

// SafetyPolicy builds the safety block attached to every chat request,
// one setting per harm category, all at the given threshold.
func SafetyPolicy(threshold string) []models.SafetySetting {
	settings := make([]models.SafetySetting, 0, len(HarmCategories))
	for _, category := range HarmCategories {
		settings = append(settings, models.SafetySetting{
			Category:  category,
			Threshold: threshold,
		})
	}
	return settings
}

// UpstreamModelID accepts both "gemini-pro" and "models/gemini-pro".
func UpstreamModelID(model string) string {
	return strings.TrimPrefix(model, modelNamePrefix)
}

// ToGeminiRequest converts an OpenAI chat completion request into a Gemini
// generateContent request.
//
// System messages are lifted into system_instruction, one part per message in
// request order. User and assistant messages become "user" and "model" turns.
// Any other role aborts the translation with an *InvalidRoleError.
func ToGeminiRequest(req *models.ChatCompletionRequest, safety []models.SafetySetting) (*models.GeminiChatRequest, error) {
	contents := make([]models.GeminiContent, 0, len(req.Messages))
	var systemInstruction *models.GeminiContent

	for i, msg := range req.Messages {
		var role string
		switch msg.Role {
		case models.RoleSystem:
			if systemInstruction == nil {
				systemInstruction = &models.GeminiContent{}
			}
			systemInstruction.Parts = append(systemInstruction.Parts, models.GeminiPart{Text: msg.Content})
			continue
		case models.RoleUser:
			role = models.GeminiRoleUser
		case models.RoleAssistant:
			role = models.GeminiRoleModel
		default:
			return nil, &InvalidRoleError{Index: i, Role: msg.Role}
		}

		contents = append(contents, models.GeminiContent{
			Role:  role,
			Parts: []models.GeminiPart{{Text: msg.Content}},
		})
	}

	temperature := req.EffectiveTemperature()

	return &models.GeminiChatRequest{
		Contents:          contents,
		SystemInstruction: systemInstruction,
		GenerationConfig: &models.GenerationConfig{
			Temperature: &temperature,
		},
		SafetySettings: safety,
	}, nil
}
