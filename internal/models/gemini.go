package models

// Gemini API Request Structures

// Upstream role names. Gemini calls the assistant "model".
const (
	GeminiRoleUser  = "user"
	GeminiRoleModel = "model"
)

type GeminiChatRequest struct {
	Contents          []GeminiContent   `json:"contents"`
	SystemInstruction *GeminiContent    `json:"system_instruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generation_config,omitempty"`
	SafetySettings    []SafetySetting   `json:"safety_settings,omitempty"`
}

// GeminiContent is one conversational turn. Role is empty for the system instruction.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GeminiPart struct {
	Text string `json:"text"`
}

// GenerationConfig fields are pointers so that unset values are omitted
// rather than sent as zero or null.
type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"max_output_tokens,omitempty"`
	TopP            *float64 `json:"top_p,omitempty"`
}

type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// Gemini API Response

type GeminiChatResponse struct {
	Candidates     []GeminiCandidate `json:"candidates"`
	UsageMetadata  UsageMetadata     `json:"usageMetadata"`
	PromptFeedback *PromptFeedback   `json:"promptFeedback,omitempty"`
}

type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

// UsageMetadata mirrors Gemini's token counters. CandidatesTokenCount is
// absent when nothing was generated and then stays 0.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// Gemini models listing

type GeminiModelList struct {
	Models        []GeminiModel `json:"models"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

// GeminiModel is a single entry of the models listing. Only Name is required.
type GeminiModel struct {
	Name             string   `json:"name"`
	Version          string   `json:"version,omitempty"`
	DisplayName      string   `json:"displayName,omitempty"`
	Description      string   `json:"description,omitempty"`
	InputTokenLimit  int      `json:"inputTokenLimit,omitempty"`
	OutputTokenLimit int      `json:"outputTokenLimit,omitempty"`
	Thinking         bool     `json:"thinking,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTemperature   *float64 `json:"maxTemperature,omitempty"`
	TopP             *float64 `json:"topP,omitempty"`
	TopK             *int     `json:"topK,omitempty"`
}
