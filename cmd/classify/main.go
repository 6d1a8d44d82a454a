package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"garment-classifier/cmd"
	"garment-classifier/internal/metrics"
	"garment-classifier/internal/pipeline"
)

func main() {
	var (
		envPath          string
		recursive        bool
		output           string
		mode             string
		batchThreshold   int
		completionWindow string
		noWait           bool
	)

	flag.StringVar(&envPath, "env", "", "path to load env from")
	flag.BoolVar(&recursive, "r", false, "recurse into sub-directories")
	flag.StringVar(&output, "o", "labels.csv", "output table, .csv or .parquet, local path or s3://bucket/key")
	flag.StringVar(&mode, "mode", string(pipeline.ModeAuto), "online, bulk or auto")
	flag.IntVar(&batchThreshold, "batch-threshold", pipeline.DefaultBatchThreshold, "image count at which auto mode switches to a bulk job")
	flag.StringVar(&completionWindow, "completion-window", "24h", "completion window requested for bulk jobs")
	flag.BoolVar(&noWait, "no-wait", false, "submit the bulk job and exit without waiting for results")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <image or directory>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	runMode, err := pipeline.ParseMode(mode)
	if err != nil {
		log.Fatalf("%v", err)
	}

	cfg := cmd.LoadConfig(envPath)
	defer cmd.SetupLogging(cfg)()

	recorder := metrics.NewRecorder()

	p, err := cmd.NewPipeline(cfg, recorder, output, completionWindow)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := cmd.SignalContext()
	defer stop()

	start := time.Now()
	summary, err := p.Run(ctx, pipeline.Options{
		Inputs:         flag.Args(),
		Recursive:      recursive,
		Output:         output,
		Mode:           runMode,
		BatchThreshold: batchThreshold,
		Wait:           !noWait,
	})
	cmd.Finish(cfg, recorder, summary)
	if err != nil {
		if summary != nil && summary.JobID != "" {
			log.Printf("bulk job %s: retrieve results later with batch-results -job-id %s", summary.JobID, summary.JobID)
		}
		log.Fatalf("classification failed: %v", err)
	}

	if summary.Output == "" && summary.JobID != "" {
		fmt.Printf("submitted bulk job %s\n", summary.JobID)
		return
	}
	fmt.Printf("classified %d images (%d failed) in %s, results in %s\n",
		summary.Images, summary.Failures, time.Since(start).Round(time.Millisecond), summary.Output)
}
