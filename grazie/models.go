package grazie

import (
	"context"
	"strings"
)

// DefaultModelsNote is attached to a model list that was not fetched from the gateway
const DefaultModelsNote = "Using default models due to API error"

// Model is one entry of the model picker
type Model struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// ModelList is the result of ListModels
type ModelList struct {
	Models []Model `json:"models"`
	Note   string  `json:"note,omitempty"`
}

// DefaultModels is served whenever the gateway cannot be asked
func DefaultModels() []Model {
	return []Model{
		{ID: "anthropic/claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Provider: "Anthropic"},
		{ID: "anthropic/claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", Provider: "Anthropic"},
		{ID: "openai/gpt-4o", Name: "GPT-4o", Provider: "OpenAI"},
		{ID: "openai/gpt-4o-mini", Name: "GPT-4o Mini", Provider: "OpenAI"},
	}
}

// ListModels returns the gateway's models with provider-prefixed ids. On
// failure it returns the default list with a note and the cause.
func (c *Client) ListModels(ctx context.Context) (ModelList, error) {
	ctx, cancel := context.WithTimeout(ctx, ValidateTimeout)
	defer cancel()

	page, err := c.openai.Models.List(ctx)
	if err != nil {
		err = translateError(err)
		c.log.WithError(err).Warn("Failed to list models, returning defaults")
		return ModelList{Models: DefaultModels(), Note: DefaultModelsNote}, err
	}

	models := make([]Model, 0, len(page.Data))
	for _, m := range page.Data {
		if m.ID == "" {
			continue
		}
		models = append(models, FormatModel(m.ID))
	}
	return ModelList{Models: models}, nil
}

// FormatModel prefixes bare ids with openai/ and derives the provider name
func FormatModel(id string) Model {
	if !strings.HasPrefix(id, "anthropic/") && !strings.HasPrefix(id, "openai/") {
		id = "openai/" + id
	}
	prefix, _, _ := strings.Cut(id, "/")
	return Model{ID: id, Name: id, Provider: providerName(prefix)}
}

func providerName(prefix string) string {
	switch prefix {
	case "anthropic":
		return "Anthropic"
	case "openai":
		return "OpenAI"
	case "":
		return "Unknown"
	}
	return strings.ToUpper(prefix[:1]) + prefix[1:]
}
