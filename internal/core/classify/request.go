package classify

import (
	"errors"
	"fmt"

	"github.com/openai/openai-go"

	"garment-classifier/internal/core/garment"
	"garment-classifier/internal/core/types"
)

// Settings is the fixed model configuration applied to every request.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	ImageDetail string
}

func ResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:        garment.SchemaName,
				Description: openai.String(garment.SchemaDescription),
				Schema:      garment.Schema(),
				Strict:      openai.Bool(true),
			},
		},
	}
}

// NewRequest builds the chat completion request for one image. The same value
// is used for online calls and serialized as the body of bulk manifest lines.
func NewRequest(s Settings, img types.EncodedImage) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:          s.Model,
		Temperature:    openai.Float(s.Temperature),
		MaxTokens:      openai.Int(s.MaxTokens),
		ResponseFormat: ResponseFormat(),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(garment.SystemPrompt()),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(garment.UserPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL:    img.DataURL(),
					Detail: s.ImageDetail,
				}),
			}),
		},
	}
}

// InterpretCompletion validates a chat completion against the garment schema.
func InterpretCompletion(ref types.ImageRef, completion *openai.ChatCompletion) types.Result {
	if completion == nil || len(completion.Choices) == 0 {
		return types.Failed(ref, types.FailureInvalidResponse, errors.New("response has no choices"))
	}

	choice := completion.Choices[0]
	if choice.Message.Refusal != "" {
		return types.Failed(ref, types.FailureRefusal, errors.New(choice.Message.Refusal))
	}

	analysis, err := garment.ParseAnalysis(choice.Message.Content)
	if err != nil {
		if choice.FinishReason == "length" {
			err = fmt.Errorf("%w (output truncated at token limit)", err)
		}
		if errors.Is(err, garment.ErrSchemaViolation) {
			return types.Failed(ref, types.FailureSchemaViolation, err)
		}
		return types.Failed(ref, types.FailureInvalidResponse, err)
	}

	return types.Succeeded(ref, analysis)
}

// FailureForStatus maps an HTTP status from the provider to a failure kind.
func FailureForStatus(status int) types.FailureKind {
	switch {
	case status == 401 || status == 403:
		return types.FailureAuth
	case status == 429:
		return types.FailureRateLimited
	default:
		return types.FailureTransport
	}
}
