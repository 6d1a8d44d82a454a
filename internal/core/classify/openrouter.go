package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/openai/openai-go"

	"garment-classifier/internal/core/types"
	"garment-classifier/internal/metrics"
)

const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterClassifier sends the same chat completion body to an
// OpenAI-compatible endpoint. OpenRouter has no batch API, so it only serves
// online runs.
type OpenRouterClassifier struct {
	client   *resty.Client
	settings Settings
	metrics  *metrics.Recorder
}

var _ Classifier = (*OpenRouterClassifier)(nil)

func NewOpenRouterClassifier(apiKey, baseURL string, settings Settings, timeout time.Duration, retries int, recorder *metrics.Recorder) *OpenRouterClassifier {
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(timeout).
		SetRetryCount(retries).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		})

	return &OpenRouterClassifier{client: client, settings: settings, metrics: recorder}
}

func (o *OpenRouterClassifier) Classify(ctx context.Context, img types.EncodedImage) types.Result {
	start := time.Now()
	res, err := o.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(NewRequest(o.settings, img)).
		Post("/chat/completions")
	o.metrics.ObserveRequest("openrouter", time.Since(start))

	if err != nil {
		slog.Error("openrouter request failed", "image", img.Ref, "error", err)
		return types.Failed(img.Ref, types.FailureTransport, fmt.Errorf("openrouter request failed: %w", err))
	}

	if !res.IsSuccess() {
		slog.Error("openrouter returned error", "image", img.Ref, "status_code", res.StatusCode(), "body", res.String())
		return types.Failed(img.Ref, FailureForStatus(res.StatusCode()),
			fmt.Errorf("openrouter returned status %d: %s", res.StatusCode(), res.String()))
	}

	var completion openai.ChatCompletion
	if err := json.Unmarshal(res.Body(), &completion); err != nil {
		return types.Failed(img.Ref, types.FailureInvalidResponse, fmt.Errorf("error parsing openrouter response: %w", err))
	}

	o.metrics.ObserveUsage(o.settings.Model, completion.Usage.PromptTokens, completion.Usage.CompletionTokens)

	return InterpretCompletion(img.Ref, &completion)
}
