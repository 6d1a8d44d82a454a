package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/openai/openai-go/option"

	"garment-classifier/internal/batch"
	"garment-classifier/internal/config"
	"garment-classifier/internal/core/classify"
	"garment-classifier/internal/core/garment"
	"garment-classifier/internal/core/images"
	"garment-classifier/internal/metrics"
	"garment-classifier/internal/pipeline"
	"garment-classifier/internal/runner"
	"garment-classifier/internal/storage"
)

// LoadConfig reads the optional env file and validates the configuration. It
// also checks the garment schema so a broken build fails before any image is
// read.
func LoadConfig(envPath string) *config.Config {
	if err := config.LoadEnvFile(envPath); err != nil {
		log.Fatalf("%v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if err := garment.CheckSchema(); err != nil {
		log.Fatalf("garment schema is inconsistent: %v", err)
	}

	return cfg
}

// SetupLogging tees the standard logger into LOG_FILE when it is set.
func SetupLogging(cfg *config.Config) func() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.LogFile == "" {
		return func() {}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), os.ModePerm); err != nil {
		log.Fatalf("error creating directory for log file: %v", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}

	log.SetOutput(io.MultiWriter(f, os.Stderr))
	return func() { f.Close() }
}

// SignalContext is cancelled on SIGINT/SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func S3Config(cfg *config.Config) storage.S3ClientConfig {
	return storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	}
}

func settings(cfg *config.Config) classify.Settings {
	return classify.Settings{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		ImageDetail: cfg.ImageDetail,
	}
}

func openAIOptions(cfg *config.Config) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey()),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return opts
}

// NewPipeline wires classifiers, runners and storage for the configured
// provider. Bulk mode is only available with OpenAI. Raw result files from
// bulk jobs are archived next to output.
func NewPipeline(cfg *config.Config, recorder *metrics.Recorder, output, completionWindow string) (*pipeline.Pipeline, error) {
	s3cfg := S3Config(cfg)
	p := &pipeline.Pipeline{
		Metrics: recorder,
		Storage: func(loc storage.Location) (storage.Provider, error) {
			return storage.ForLocation(loc, s3cfg)
		},
	}

	encoder := images.NewEncoder(cfg.ImageMaxSide, cfg.ImageQuality)

	var classifier classify.Classifier
	switch cfg.Provider {
	case config.ProviderOpenRouter:
		classifier = classify.NewOpenRouterClassifier(cfg.APIKey(), cfg.BaseURL, settings(cfg), cfg.Timeout, cfg.MaxRetries, recorder)
	default:
		classifier = classify.NewOpenAIClassifier(settings(cfg), cfg.Timeout, recorder, openAIOptions(cfg)...)
	}
	p.Online = runner.NewOnlineRunner(encoder, classifier, cfg.Concurrency, recorder)

	if cfg.Provider != config.ProviderOpenAI {
		return p, nil
	}

	builder := &batch.ManifestBuilder{
		Encoder:     encoder,
		Settings:    settings(cfg),
		Dir:         filepath.Join(cfg.WorkDir, "batches"),
		Concurrency: cfg.Concurrency,
		Progress:    os.Stderr,
	}
	bulk := batch.NewRunner(batch.NewOpenAIJobService(openAIOptions(cfg)...), builder, batch.Options{
		PollInterval:     cfg.PollInterval,
		CompletionWindow: completionWindow,
	}, recorder)

	if output != "" {
		loc, err := storage.ParseLocation(output)
		if err != nil {
			return nil, fmt.Errorf("invalid output: %w", err)
		}
		archive, err := storage.ForLocation(loc, s3cfg)
		if err != nil {
			return nil, fmt.Errorf("error opening storage for %s: %w", loc, err)
		}
		bulk.WithArchive(archive, loc)
	}
	p.Bulk = bulk

	return p, nil
}

// Finish logs the run summary and token usage and exports metrics.
func Finish(cfg *config.Config, recorder *metrics.Recorder, summary *pipeline.Summary) {
	if summary != nil {
		slog.Info("run finished", "mode", summary.Mode, "images", summary.Images, "failures", summary.Failures,
			"job_id", summary.JobID, "output", summary.Output)
	}
	for model, usage := range recorder.Usage() {
		slog.Info("token usage", "model", model, "prompt_tokens", usage.PromptTokens,
			"completion_tokens", usage.CompletionTokens, "total_tokens", usage.TotalTokens)
	}

	if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
		slog.Error("error writing metrics file", "path", cfg.MetricsFile, "error", err)
	}
}
