package types

import (
	"fmt"
	"time"
)

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobExpired    JobStatus = "expired"
	JobCancelled  JobStatus = "cancelled"
)

func (s JobStatus) rank() int {
	switch s {
	case JobQueued:
		return 0
	case JobInProgress:
		return 1
	case JobCompleted, JobFailed, JobExpired, JobCancelled:
		return 2
	default:
		return -1
	}
}

func (s JobStatus) Terminal() bool {
	return s.rank() == 2
}

type RequestCounts struct {
	Total     int64
	Completed int64
	Failed    int64
}

// BulkJob tracks one asynchronous provider-side batch.
type BulkJob struct {
	ID           string
	Status       JobStatus
	InputFileID  string
	OutputFileID string
	ErrorFileID  string
	Counts       RequestCounts
	Errors       []string
	UpdatedAt    time.Time
}

// Advance applies a freshly polled snapshot. Status never moves backwards and
// a terminal job never changes status again.
func (j *BulkJob) Advance(next BulkJob) error {
	if next.ID != "" && j.ID != "" && next.ID != j.ID {
		return fmt.Errorf("job id mismatch: tracking %s, got %s", j.ID, next.ID)
	}
	if next.Status.rank() < 0 {
		return fmt.Errorf("job %s reported unknown status %q", j.ID, next.Status)
	}
	if j.Status.Terminal() && next.Status != j.Status {
		return fmt.Errorf("job %s is already %s, cannot become %s", j.ID, j.Status, next.Status)
	}
	if next.Status.rank() < j.Status.rank() {
		return fmt.Errorf("job %s status regressed from %s to %s", j.ID, j.Status, next.Status)
	}

	id := j.ID
	*j = next
	if j.ID == "" {
		j.ID = id
	}
	return nil
}
