package runner

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"

	"garment-classifier/internal/core/classify"
	"garment-classifier/internal/core/types"
	"garment-classifier/internal/core/utils"
	"garment-classifier/internal/metrics"
)

const ModeOnline = "online"

type Encoder interface {
	Encode(ref types.ImageRef) (types.EncodedImage, error)
}

// OnlineRunner classifies images with direct requests on a bounded worker pool.
type OnlineRunner struct {
	encoder     Encoder
	classifier  classify.Classifier
	concurrency int
	metrics     *metrics.Recorder
	progress    io.Writer
}

func NewOnlineRunner(encoder Encoder, classifier classify.Classifier, concurrency int, recorder *metrics.Recorder) *OnlineRunner {
	return &OnlineRunner{
		encoder:     encoder,
		classifier:  classifier,
		concurrency: concurrency,
		metrics:     recorder,
		progress:    os.Stderr,
	}
}

// WithProgress redirects the progress bar, io.Discard silences it.
func (r *OnlineRunner) WithProgress(w io.Writer) *OnlineRunner {
	r.progress = w
	return r
}

// Run returns exactly one result per ref. Failures are recorded per image and
// never stop the remaining work. Cancelling ctx skips the images not yet
// classified and returns ctx.Err() with no results.
func (r *OnlineRunner) Run(ctx context.Context, refs []types.ImageRef) ([]types.Result, error) {
	slog.Info("starting online classification", "images", len(refs), "concurrency", r.concurrency)

	bar := progressbar.NewOptions(len(refs),
		progressbar.OptionSetDescription("⏳ classifying"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetWriter(r.progress),
		progressbar.OptionClearOnFinish(),
	)

	worker := func(ref types.ImageRef) (types.Result, error) {
		defer func() { _ = bar.Add(1) }()

		if err := ctx.Err(); err != nil {
			return types.Result{}, err
		}
		img, err := r.encoder.Encode(ref)
		if err != nil {
			return types.Result{}, err
		}
		return r.classifier.Classify(ctx, img), nil
	}

	completed := utils.Collect(refs, worker, r.concurrency)

	if err := ctx.Err(); err != nil {
		slog.Warn("online classification interrupted", "images", len(refs), "error", err)
		return nil, err
	}

	results := make([]types.Result, 0, len(completed))
	failures := 0
	for _, task := range completed {
		res := task.Result
		if task.Error != nil {
			slog.Warn("could not encode image", "image", task.Input, "error", task.Error)
			res = types.Failed(task.Input, types.FailureUnreadableImage, task.Error)
		}
		res.Ref = task.Input

		if !res.Ok() {
			failures++
		}
		r.metrics.ObserveResult(ModeOnline, res)
		results = append(results, res)
	}

	slog.Info("online classification finished", "images", len(results), "failures", failures)
	return results, nil
}
