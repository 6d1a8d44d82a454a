package main

import (
	"flag"
	"fmt"
	"log"

	"garment-classifier/cmd"
	"garment-classifier/internal/metrics"
	"garment-classifier/internal/pipeline"
)

// Retrieves the results of a bulk job that was submitted without waiting, or
// converts an already downloaded output file into a result table.
func main() {
	var (
		envPath string
		jobID   string
		input   string
		output  string
	)

	flag.StringVar(&envPath, "env", "", "path to load env from")
	flag.StringVar(&jobID, "job-id", "", "bulk job to wait for and download")
	flag.StringVar(&input, "input", "", "downloaded output file (.jsonl), local path or s3://bucket/key")
	flag.StringVar(&output, "o", "labels.csv", "output table, .csv or .parquet, local path or s3://bucket/key")
	flag.Parse()

	if (jobID == "") == (input == "") {
		log.Fatalf("exactly one of -job-id or -input must be given")
	}

	cfg := cmd.LoadConfig(envPath)
	defer cmd.SetupLogging(cfg)()

	recorder := metrics.NewRecorder()

	p, err := cmd.NewPipeline(cfg, recorder, output, "")
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := cmd.SignalContext()
	defer stop()

	var summary *pipeline.Summary
	if jobID != "" {
		summary, err = p.Resume(ctx, jobID, output)
	} else {
		summary, err = p.Import(ctx, input, output)
	}
	cmd.Finish(cfg, recorder, summary)
	if err != nil {
		log.Fatalf("retrieving results failed: %v", err)
	}

	fmt.Printf("wrote %d rows (%d failed) to %s\n", summary.Images, summary.Failures, summary.Output)
}
