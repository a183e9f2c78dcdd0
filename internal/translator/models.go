package translator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gemini2openai/api-proxy/internal/models"
	"github.com/tidwall/gjson"
)

const (
	objectList  = "list"
	objectModel = "model"

	// ownedBy is reported for every model so that OpenAI client tooling accepts the entry.
	ownedBy = "openai"
)

// ParseModelList decodes a 200 models listing body. A models array is
// required and every entry must carry a string name.
func ParseModelList(body []byte) (*models.GeminiModelList, error) {
	root, err := parseObject(body)
	if err != nil {
		return nil, err
	}

	entries := root.Get("models")
	if !entries.IsArray() {
		return nil, shapeErr("models", "missing or not an array")
	}
	for i, entry := range entries.Array() {
		if entry.Get("name").Type != gjson.String {
			return nil, shapeErr(fmt.Sprintf("models[%d].name", i), "missing or not a string")
		}
	}

	var list models.GeminiModelList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, shapeErr("", "%v", err)
	}
	return &list, nil
}

// ToModelsResponse converts a Gemini models listing into the OpenAI shape.
// Gemini has no creation timestamp, so created is set to now for every entry.
func ToModelsResponse(list *models.GeminiModelList, now time.Time) *models.ModelsResponse {
	created := now.Unix()
	data := make([]models.ModelObject, 0, len(list.Models))
	for _, m := range list.Models {
		data = append(data, models.ModelObject{
			ID:      strings.TrimPrefix(m.Name, modelNamePrefix),
			Object:  objectModel,
			Created: created,
			OwnedBy: ownedBy,
		})
	}

	return &models.ModelsResponse{
		Object: objectList,
		Data:   data,
	}
}
