package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"garment-classifier/internal/core/types"
	"garment-classifier/internal/metrics"
)

type Classifier interface {
	Classify(ctx context.Context, img types.EncodedImage) types.Result
}

type OpenAIClassifier struct {
	client   openai.Client
	settings Settings
	timeout  time.Duration
	metrics  *metrics.Recorder
}

var _ Classifier = (*OpenAIClassifier)(nil)

func NewOpenAIClassifier(settings Settings, timeout time.Duration, recorder *metrics.Recorder, opts ...option.RequestOption) *OpenAIClassifier {
	return &OpenAIClassifier{
		client:   openai.NewClient(opts...),
		settings: settings,
		timeout:  timeout,
		metrics:  recorder,
	}
}

func (o *OpenAIClassifier) Classify(ctx context.Context, img types.EncodedImage) types.Result {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := o.client.Chat.Completions.New(ctx, NewRequest(o.settings, img))
	o.metrics.ObserveRequest("openai", time.Since(start))
	if err != nil {
		slog.Error("openai error: chat completions failed", "image", img.Ref, "error", err)
		return types.Failed(img.Ref, failureForError(err), fmt.Errorf("openai classification failed: %w", err))
	}

	o.metrics.ObserveUsage(o.settings.Model, res.Usage.PromptTokens, res.Usage.CompletionTokens)

	return InterpretCompletion(img.Ref, res)
}

func failureForError(err error) types.FailureKind {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return FailureForStatus(apiErr.StatusCode)
	}
	return types.FailureTransport
}
