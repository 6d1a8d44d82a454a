package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"garment-classifier/internal/core/types"
)

// JobService is the provider side of a bulk job: file storage plus the
// asynchronous job lifecycle.
type JobService interface {
	UploadManifest(ctx context.Context, path string) (string, error)
	CreateJob(ctx context.Context, inputFileID, completionWindow string) (types.BulkJob, error)
	GetJob(ctx context.Context, jobID string) (types.BulkJob, error)
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error)
}

type OpenAIJobService struct {
	client openai.Client
}

var _ JobService = (*OpenAIJobService)(nil)

func NewOpenAIJobService(opts ...option.RequestOption) *OpenAIJobService {
	return &OpenAIJobService{client: openai.NewClient(opts...)}
}

func (s *OpenAIJobService) UploadManifest(ctx context.Context, path string) (string, error) {
	// an *os.File keeps its name in the multipart upload, the provider needs
	// the .jsonl extension
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening manifest %s: %w", path, err)
	}
	defer file.Close()

	uploaded, err := s.client.Files.New(ctx, openai.FileNewParams{
		File:    file,
		Purpose: openai.FilePurposeBatch,
	})
	if err != nil {
		return "", fmt.Errorf("openai error: uploading manifest failed: %w", err)
	}
	return uploaded.ID, nil
}

func (s *OpenAIJobService) CreateJob(ctx context.Context, inputFileID, completionWindow string) (types.BulkJob, error) {
	batch, err := s.client.Batches.New(ctx, openai.BatchNewParams{
		InputFileID:      inputFileID,
		Endpoint:         openai.BatchNewParamsEndpointV1ChatCompletions,
		CompletionWindow: openai.BatchNewParamsCompletionWindow(completionWindow),
	})
	if err != nil {
		return types.BulkJob{}, fmt.Errorf("openai error: creating batch failed: %w", err)
	}
	return convertBatch(batch), nil
}

func (s *OpenAIJobService) GetJob(ctx context.Context, jobID string) (types.BulkJob, error) {
	batch, err := s.client.Batches.Get(ctx, jobID)
	if err != nil {
		return types.BulkJob{}, fmt.Errorf("openai error: retrieving batch %s failed: %w", jobID, err)
	}
	return convertBatch(batch), nil
}

func (s *OpenAIJobService) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	res, err := s.client.Files.Content(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("openai error: downloading file %s failed: %w", fileID, err)
	}
	return res.Body, nil
}

func convertBatch(b *openai.Batch) types.BulkJob {
	job := types.BulkJob{
		ID:           b.ID,
		Status:       convertStatus(string(b.Status)),
		InputFileID:  b.InputFileID,
		OutputFileID: b.OutputFileID,
		ErrorFileID:  b.ErrorFileID,
		Counts: types.RequestCounts{
			Total:     b.RequestCounts.Total,
			Completed: b.RequestCounts.Completed,
			Failed:    b.RequestCounts.Failed,
		},
		UpdatedAt: time.Now(),
	}
	for _, e := range b.Errors.Data {
		job.Errors = append(job.Errors, fmt.Sprintf("%s: %s", e.Code, e.Message))
	}
	return job
}

// convertStatus folds the provider's transitional states into the job model.
func convertStatus(status string) types.JobStatus {
	switch status {
	case "validating":
		return types.JobQueued
	case "in_progress", "finalizing", "cancelling":
		return types.JobInProgress
	default:
		return types.JobStatus(status)
	}
}
