package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/openai/openai-go"

	"garment-classifier/internal/core/classify"
	"garment-classifier/internal/core/types"
	"garment-classifier/internal/metrics"
)

const maxLineSize = 16 << 20

type outputLine struct {
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int             `json:"status_code"`
		Body       json.RawMessage `json:"body"`
	} `json:"response"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Parsed is the content of one or more downloaded result files.
type Parsed struct {
	Results []types.Result
	Usage   map[string]metrics.TokenUsage

	// Skipped counts lines without a usable correlation key.
	Skipped int
}

// ParseResults reads a JSONL output or error file. Every line with a
// custom_id yields exactly one result; a malformed line only affects its own
// image.
func ParseResults(r io.Reader) (*Parsed, error) {
	parsed := &Parsed{Usage: make(map[string]metrics.TokenUsage)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var line outputLine
		if err := json.Unmarshal(raw, &line); err != nil || line.CustomID == "" {
			slog.Warn("skipping result line without correlation key", "line", lineNo, "error", err)
			parsed.Skipped++
			continue
		}

		ref := types.ImageRef(line.CustomID)
		res, completion := parseLine(ref, line)
		if completion != nil && completion.Model != "" {
			usage := parsed.Usage[completion.Model]
			usage.PromptTokens += completion.Usage.PromptTokens
			usage.CompletionTokens += completion.Usage.CompletionTokens
			usage.TotalTokens += completion.Usage.TotalTokens
			parsed.Usage[completion.Model] = usage
		}
		parsed.Results = append(parsed.Results, res)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading results after line %d: %w", lineNo, err)
	}

	return parsed, nil
}

func parseLine(ref types.ImageRef, line outputLine) (types.Result, *openai.ChatCompletion) {
	if line.Error != nil {
		return types.Failed(ref, types.FailureRequestFailed, fmt.Errorf("%s: %s", line.Error.Code, line.Error.Message)), nil
	}
	if line.Response == nil {
		return types.Failed(ref, types.FailureInvalidResponse, fmt.Errorf("line has neither response nor error")), nil
	}

	if line.Response.StatusCode != 200 {
		var body errorBody
		msg := string(line.Response.Body)
		if err := json.Unmarshal(line.Response.Body, &body); err == nil && body.Error.Message != "" {
			msg = body.Error.Message
		}
		return types.Failed(ref, types.FailureRequestFailed, fmt.Errorf("status %d: %s", line.Response.StatusCode, msg)), nil
	}

	var completion openai.ChatCompletion
	if err := json.Unmarshal(line.Response.Body, &completion); err != nil {
		return types.Failed(ref, types.FailureInvalidResponse, fmt.Errorf("error decoding response body: %w", err)), nil
	}

	return classify.InterpretCompletion(ref, &completion), &completion
}

// Reconcile returns one result for every submitted ref. Refs without a result
// line become missing_result failures; lines for refs that were never
// submitted are dropped.
func Reconcile(submitted []types.ImageRef, results []types.Result) []types.Result {
	expected := make(map[types.ImageRef]bool, len(submitted))
	for _, ref := range submitted {
		expected[ref] = false
	}

	out := make([]types.Result, 0, len(submitted))
	for _, res := range results {
		if _, ok := expected[res.Ref]; !ok {
			slog.Warn("dropping result for image that was not submitted", "image", res.Ref)
			continue
		}
		expected[res.Ref] = true
		out = append(out, res)
	}

	for _, ref := range submitted {
		if !expected[ref] {
			out = append(out, types.Failed(ref, types.FailureMissingResult, fmt.Errorf("no result line for image")))
		}
	}
	return out
}
