package batch

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/schollz/progressbar/v3"

	"garment-classifier/internal/core/classify"
	"garment-classifier/internal/core/types"
	"garment-classifier/internal/core/utils"
)

const (
	ChatCompletionsURL = "/v1/chat/completions"

	// Provider limits for a single batch input file.
	MaxManifestLines = 50_000
	MaxManifestBytes = 200 << 20

	encodeChunkSize = 256
)

var ErrManifestTooLarge = errors.New("manifest exceeds bulk job limits")

type Encoder interface {
	Encode(ref types.ImageRef) (types.EncodedImage, error)
}

// TaskLine is one request in a bulk job input file. The ref doubles as the
// custom_id used to correlate output lines.
type TaskLine struct {
	CustomID string                         `json:"custom_id"`
	Method   string                         `json:"method"`
	URL      string                         `json:"url"`
	Body     openai.ChatCompletionNewParams `json:"body"`
}

func NewTaskLine(settings classify.Settings, img types.EncodedImage) TaskLine {
	return TaskLine{
		CustomID: img.Ref.String(),
		Method:   "POST",
		URL:      ChatCompletionsURL,
		Body:     classify.NewRequest(settings, img),
	}
}

type Manifest struct {
	RunID string
	Path  string
	Bytes int64

	// Refs are the images present in the file, in file order.
	Refs []types.ImageRef

	// Rejected holds images that could not be encoded and were left out.
	Rejected []types.Result
}

type ManifestBuilder struct {
	Encoder     Encoder
	Settings    classify.Settings
	Dir         string
	Concurrency int
	Progress    io.Writer

	// MaxBytes overrides MaxManifestBytes when set.
	MaxBytes int64
}

func (b *ManifestBuilder) maxBytes() int64 {
	if b.MaxBytes > 0 {
		return b.MaxBytes
	}
	return MaxManifestBytes
}

// Build encodes refs and writes the JSONL input file into b.Dir. Encoding runs
// on the worker pool in chunks so only a bounded number of payloads are held
// in memory at once.
func (b *ManifestBuilder) Build(refs []types.ImageRef) (*Manifest, error) {
	if len(refs) > MaxManifestLines {
		return nil, fmt.Errorf("%w: %d images, at most %d per job", ErrManifestTooLarge, len(refs), MaxManifestLines)
	}

	if err := os.MkdirAll(b.Dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("error creating manifest directory %s: %w", b.Dir, err)
	}

	runID := uuid.New().String()
	path := filepath.Join(b.Dir, fmt.Sprintf("batch_input_%s.jsonl", runID))

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("error creating manifest file: %w", err)
	}
	defer file.Close()

	progress := b.Progress
	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(len(refs),
		progressbar.OptionSetDescription("📦 building manifest"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionClearOnFinish(),
	)

	manifest := &Manifest{RunID: runID, Path: path}
	out := bufio.NewWriter(file)

	for start := 0; start < len(refs); start += encodeChunkSize {
		chunk := refs[start:min(start+encodeChunkSize, len(refs))]

		encoded := make(map[types.ImageRef]utils.CompletedTask[types.ImageRef, types.EncodedImage], len(chunk))
		for _, task := range utils.Collect(chunk, b.Encoder.Encode, b.Concurrency) {
			encoded[task.Input] = task
		}

		// write in input order so the file is deterministic
		for _, ref := range chunk {
			task := encoded[ref]
			_ = bar.Add(1)

			if task.Error != nil {
				slog.Warn("skipping unreadable image", "image", ref, "error", task.Error)
				manifest.Rejected = append(manifest.Rejected, types.Failed(ref, types.FailureUnreadableImage, task.Error))
				continue
			}

			line, err := json.Marshal(NewTaskLine(b.Settings, task.Result))
			if err != nil {
				return nil, fmt.Errorf("error serializing request for %s: %w", ref, err)
			}
			line = append(line, '\n')

			// stop before encoding the rest once the file can no longer be submitted
			if manifest.Bytes+int64(len(line)) > b.maxBytes() {
				return nil, fmt.Errorf("%w: adding %s would exceed %d bytes per job", ErrManifestTooLarge, ref, b.maxBytes())
			}
			if _, err := out.Write(line); err != nil {
				return nil, fmt.Errorf("error writing manifest: %w", err)
			}
			manifest.Bytes += int64(len(line))
			manifest.Refs = append(manifest.Refs, ref)
		}
	}

	if err := out.Flush(); err != nil {
		return nil, fmt.Errorf("error writing manifest: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("error closing manifest: %w", err)
	}

	slog.Info("built bulk manifest", "path", path, "requests", len(manifest.Refs), "rejected", len(manifest.Rejected), "bytes", manifest.Bytes)
	return manifest, nil
}
