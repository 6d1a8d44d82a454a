package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"garment-classifier/internal/batch"
	"garment-classifier/internal/core/images"
	"garment-classifier/internal/core/types"
	"garment-classifier/internal/metrics"
	"garment-classifier/internal/results"
	"garment-classifier/internal/storage"
)

type Mode string

const (
	ModeOnline Mode = "online"
	ModeBulk   Mode = "bulk"
	ModeAuto   Mode = "auto"

	DefaultBatchThreshold = 1000
)

var (
	ErrInvalidMode     = errors.New("invalid mode")
	ErrBulkUnsupported = errors.New("bulk mode is not supported by the configured provider")
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeOnline, ModeBulk, ModeAuto:
		return m, nil
	default:
		return "", fmt.Errorf("%w %q: must be online, bulk or auto", ErrInvalidMode, s)
	}
}

type OnlineRunner interface {
	Run(ctx context.Context, refs []types.ImageRef) ([]types.Result, error)
}

type BulkRunner interface {
	Run(ctx context.Context, refs []types.ImageRef, wait bool) (*batch.Outcome, error)
	Wait(ctx context.Context, job types.BulkJob) (types.BulkJob, error)
	Fetch(ctx context.Context, job types.BulkJob) ([]types.Result, error)
}

type Options struct {
	Inputs         []string
	Recursive      bool
	Output         string
	Mode           Mode
	BatchThreshold int
	Wait           bool
}

type Summary struct {
	Mode     Mode
	Images   int
	Failures int
	JobID    string

	// Output is empty when no table was written.
	Output string
}

type Pipeline struct {
	Online OnlineRunner

	// Bulk is nil when the provider has no asynchronous job API.
	Bulk BulkRunner

	Storage func(storage.Location) (storage.Provider, error)
	Metrics *metrics.Recorder
}

func (p *Pipeline) chooseMode(requested Mode, images, threshold int) (Mode, error) {
	if threshold <= 0 {
		threshold = DefaultBatchThreshold
	}

	switch requested {
	case ModeOnline:
		return ModeOnline, nil
	case ModeBulk:
		if p.Bulk == nil {
			return "", ErrBulkUnsupported
		}
		return ModeBulk, nil
	case ModeAuto, "":
		if images < threshold {
			return ModeOnline, nil
		}
		if p.Bulk == nil {
			slog.Warn("image count is above the bulk threshold but bulk mode is unavailable, classifying online",
				"images", images, "threshold", threshold)
			return ModeOnline, nil
		}
		return ModeBulk, nil
	default:
		return "", fmt.Errorf("%w %q", ErrInvalidMode, requested)
	}
}

// Run classifies every image found under opts.Inputs and writes the result
// table. No table is written when the run is interrupted, when the bulk job
// fails or when it was submitted without waiting.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	loc, err := outputLocation(opts.Output)
	if err != nil {
		return nil, err
	}

	refs, err := images.Locate(opts.Inputs, opts.Recursive)
	if err != nil {
		return nil, err
	}
	p.Metrics.SetDiscovered(len(refs))

	mode, err := p.chooseMode(opts.Mode, len(refs), opts.BatchThreshold)
	if err != nil {
		return nil, err
	}
	slog.Info("classifying images", "images", len(refs), "mode", mode)

	summary := &Summary{Mode: mode, Images: len(refs)}

	var collected []types.Result
	switch mode {
	case ModeOnline:
		collected, err = p.Online.Run(ctx, refs)
		if err != nil {
			return summary, err
		}
	case ModeBulk:
		outcome, err := p.Bulk.Run(ctx, refs, opts.Wait)
		if outcome != nil && outcome.Job != nil {
			summary.JobID = outcome.Job.ID
		}
		if err != nil {
			return summary, err
		}
		if !outcome.Complete {
			return summary, nil
		}
		collected = outcome.Results
	}

	// an interrupted run never replaces an existing table
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	return summary, p.save(ctx, loc, collected, summary)
}

// Resume waits for a previously submitted job and writes its result table.
func (p *Pipeline) Resume(ctx context.Context, jobID, output string) (*Summary, error) {
	if p.Bulk == nil {
		return nil, ErrBulkUnsupported
	}

	loc, err := outputLocation(output)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Mode: ModeBulk, JobID: jobID}

	job, err := p.Bulk.Wait(ctx, types.BulkJob{ID: jobID})
	if err != nil {
		return summary, err
	}

	collected, err := p.Bulk.Fetch(ctx, job)
	if err != nil {
		return summary, err
	}
	p.observe(collected)

	return summary, p.save(ctx, loc, collected, summary)
}

// Import builds the result table from a previously downloaded output file.
func (p *Pipeline) Import(ctx context.Context, input, output string) (*Summary, error) {
	inLoc, err := storage.ParseLocation(input)
	if err != nil {
		return nil, err
	}
	loc, err := outputLocation(output)
	if err != nil {
		return nil, err
	}

	provider, err := p.Storage(inLoc)
	if err != nil {
		return nil, fmt.Errorf("error opening storage for %s: %w", inLoc, err)
	}
	data, err := provider.GetObject(ctx, inLoc.Bucket, inLoc.Key)
	if err != nil {
		return nil, err
	}

	parsed, err := batch.ParseResults(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	for model, usage := range parsed.Usage {
		p.Metrics.ObserveUsage(model, usage.PromptTokens, usage.CompletionTokens)
	}

	p.observe(parsed.Results)

	summary := &Summary{Mode: ModeBulk}
	return summary, p.save(ctx, loc, parsed.Results, summary)
}

func (p *Pipeline) save(ctx context.Context, loc storage.Location, collected []types.Result, summary *Summary) error {
	table := results.NewTable(collected)
	summary.Images = len(table.Rows)
	summary.Failures = table.Failures()

	provider, err := p.Storage(loc)
	if err != nil {
		return fmt.Errorf("error opening storage for %s: %w", loc, err)
	}
	if err := results.Save(ctx, provider, loc, table); err != nil {
		return err
	}

	summary.Output = loc.String()
	return nil
}

func (p *Pipeline) observe(collected []types.Result) {
	for _, res := range collected {
		p.Metrics.ObserveResult(string(ModeBulk), res)
	}
}

// outputLocation is checked before any work starts so a bad path never costs
// a classification run.
func outputLocation(output string) (storage.Location, error) {
	loc, err := storage.ParseLocation(output)
	if err != nil {
		return storage.Location{}, fmt.Errorf("invalid output: %w", err)
	}
	if _, err := results.FormatFor(loc); err != nil {
		return storage.Location{}, err
	}
	return loc, nil
}
