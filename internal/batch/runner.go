package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"garment-classifier/internal/core/types"
	"garment-classifier/internal/metrics"
	"garment-classifier/internal/storage"
)

const ModeBulk = "bulk"

var ErrJobFailed = errors.New("bulk job did not complete")

// Sleeper pauses between polls. It returns early with ctx.Err() when the
// context is cancelled.
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Options struct {
	PollInterval     time.Duration
	CompletionWindow string

	// MaxPollErrors is the number of consecutive failed polls tolerated
	// before giving up on the job.
	MaxPollErrors int

	Sleep Sleeper
}

func (o *Options) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.CompletionWindow == "" {
		o.CompletionWindow = "24h"
	}
	if o.MaxPollErrors <= 0 {
		o.MaxPollErrors = 5
	}
	if o.Sleep == nil {
		o.Sleep = SleepContext
	}
}

type Submission struct {
	// Job is nil when no image could be encoded and nothing was submitted.
	Job      *types.BulkJob
	Manifest *Manifest
}

type Outcome struct {
	Job     *types.BulkJob
	Results []types.Result

	// Complete is false for fire-and-forget runs, results are then retrieved
	// later by job id.
	Complete bool
}

// Runner drives one bulk job through build, submit, poll and fetch.
type Runner struct {
	jobs     JobService
	manifest *ManifestBuilder
	opts     Options
	metrics  *metrics.Recorder

	archive    storage.Provider
	archiveLoc storage.Location
}

func NewRunner(jobs JobService, manifest *ManifestBuilder, opts Options, recorder *metrics.Recorder) *Runner {
	opts.setDefaults()
	return &Runner{
		jobs:     jobs,
		manifest: manifest,
		opts:     opts,
		metrics:  recorder,
	}
}

// WithArchive keeps a copy of every downloaded result file next to loc.
func (r *Runner) WithArchive(provider storage.Provider, loc storage.Location) *Runner {
	r.archive = provider
	r.archiveLoc = loc
	return r
}

func (r *Runner) Submit(ctx context.Context, refs []types.ImageRef) (*Submission, error) {
	manifest, err := r.manifest.Build(refs)
	if err != nil {
		return nil, fmt.Errorf("error building manifest: %w", err)
	}

	if len(manifest.Refs) == 0 {
		slog.Warn("no image could be encoded, not submitting a bulk job", "rejected", len(manifest.Rejected))
		return &Submission{Manifest: manifest}, nil
	}

	fileID, err := r.jobs.UploadManifest(ctx, manifest.Path)
	if err != nil {
		return nil, fmt.Errorf("error uploading manifest: %w", err)
	}
	slog.Info("uploaded bulk manifest", "file_id", fileID, "run_id", manifest.RunID)

	job, err := r.jobs.CreateJob(ctx, fileID, r.opts.CompletionWindow)
	if err != nil {
		return nil, fmt.Errorf("error creating bulk job: %w", err)
	}
	if job.Status == "" {
		job.Status = types.JobQueued
	}
	slog.Info("submitted bulk job", "job_id", job.ID, "status", job.Status, "requests", len(manifest.Refs))

	return &Submission{Job: &job, Manifest: manifest}, nil
}

// Wait polls until the job reaches a terminal status. Polling begins
// immediately. Snapshots that would move the job backwards are ignored.
func (r *Runner) Wait(ctx context.Context, job types.BulkJob) (types.BulkJob, error) {
	pollErrors := 0
	for {
		snapshot, err := r.jobs.GetJob(ctx, job.ID)
		switch {
		case err != nil && ctx.Err() != nil:
			slog.Warn("stopped waiting for bulk job, it keeps running remotely", "job_id", job.ID)
			return job, ctx.Err()
		case err != nil:
			pollErrors++
			if pollErrors > r.opts.MaxPollErrors {
				return job, fmt.Errorf("giving up on job %s after %d failed polls: %w", job.ID, pollErrors, err)
			}
			slog.Warn("error polling bulk job", "job_id", job.ID, "attempt", pollErrors, "error", err)
		default:
			pollErrors = 0
			r.metrics.ObservePoll(snapshot.Status)

			prev := job.Status
			if err := job.Advance(snapshot); err != nil {
				slog.Warn("ignoring job snapshot", "job_id", job.ID, "error", err)
			} else if job.Status != prev {
				slog.Info("bulk job status changed", "job_id", job.ID, "status", job.Status,
					"completed", job.Counts.Completed, "failed", job.Counts.Failed, "total", job.Counts.Total)
			}

			if job.Status.Terminal() {
				if job.Status == types.JobCompleted {
					return job, nil
				}
				detail := string(job.Status)
				if len(job.Errors) > 0 {
					detail += ": " + strings.Join(job.Errors, "; ")
				}
				return job, fmt.Errorf("%w: job %s %s", ErrJobFailed, job.ID, detail)
			}
		}

		if err := r.opts.Sleep(ctx, r.opts.PollInterval); err != nil {
			slog.Warn("stopped waiting for bulk job, it keeps running remotely", "job_id", job.ID)
			return job, err
		}
	}
}

// Fetch downloads and parses the output and error files of a completed job.
func (r *Runner) Fetch(ctx context.Context, job types.BulkJob) ([]types.Result, error) {
	if job.Status != types.JobCompleted {
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobFailed, job.ID, job.Status)
	}

	var results []types.Result
	for _, file := range []struct {
		id   string
		kind string
	}{
		{id: job.OutputFileID, kind: "output"},
		{id: job.ErrorFileID, kind: "errors"},
	} {
		if file.id == "" {
			continue
		}

		data, err := r.download(ctx, file.id)
		if err != nil {
			return nil, err
		}
		r.archiveFile(ctx, fmt.Sprintf("%s_%s.jsonl", job.ID, file.kind), data)

		parsed, err := ParseResults(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("error parsing %s file %s: %w", file.kind, file.id, err)
		}
		for model, usage := range parsed.Usage {
			r.metrics.ObserveUsage(model, usage.PromptTokens, usage.CompletionTokens)
		}
		if parsed.Skipped > 0 {
			slog.Warn("some result lines could not be correlated", "file_id", file.id, "skipped", parsed.Skipped)
		}
		results = append(results, parsed.Results...)
	}

	if job.OutputFileID == "" && job.ErrorFileID == "" {
		slog.Warn("completed bulk job has no result files", "job_id", job.ID)
	}
	return results, nil
}

func (r *Runner) download(ctx context.Context, fileID string) ([]byte, error) {
	body, err := r.jobs.DownloadFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("error downloading file %s: %w", fileID, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", fileID, err)
	}
	return data, nil
}

// archiveFile is best effort, results are still returned when the copy fails.
func (r *Runner) archiveFile(ctx context.Context, name string, data []byte) {
	if r.archive == nil {
		return
	}
	loc := r.archiveLoc.Sibling(name)
	if err := r.archive.PutObject(ctx, loc.Bucket, loc.Key, bytes.NewReader(data)); err != nil {
		slog.Error("error saving raw results", "location", loc, "error", err)
		return
	}
	slog.Info("saved raw results", "location", loc)
}

// Run submits refs as one bulk job. With wait unset it returns right after
// submission. Otherwise every ref gets exactly one result, including images
// rejected while building the manifest.
func (r *Runner) Run(ctx context.Context, refs []types.ImageRef, wait bool) (*Outcome, error) {
	sub, err := r.Submit(ctx, refs)
	if err != nil {
		return nil, err
	}

	if sub.Job == nil {
		r.observe(sub.Manifest.Rejected)
		return &Outcome{Results: sub.Manifest.Rejected, Complete: true}, nil
	}

	if !wait {
		slog.Info("not waiting for bulk job, retrieve results later by job id", "job_id", sub.Job.ID)
		return &Outcome{Job: sub.Job}, nil
	}

	job, err := r.Wait(ctx, *sub.Job)
	if err != nil {
		return &Outcome{Job: &job}, err
	}

	fetched, err := r.Fetch(ctx, job)
	if err != nil {
		return &Outcome{Job: &job}, err
	}

	results := append(Reconcile(sub.Manifest.Refs, fetched), sub.Manifest.Rejected...)
	r.observe(results)

	return &Outcome{Job: &job, Results: results, Complete: true}, nil
}

func (r *Runner) observe(results []types.Result) {
	for _, res := range results {
		r.metrics.ObserveResult(ModeBulk, res)
	}
}
