package types

import (
	"fmt"

	"garment-classifier/internal/core/garment"
)

type FailureKind string

const (
	FailureUnreadableImage FailureKind = "unreadable_image"
	FailureAuth            FailureKind = "auth"
	FailureRateLimited     FailureKind = "rate_limited"
	FailureTransport       FailureKind = "transport"
	FailureInvalidResponse FailureKind = "invalid_response"
	FailureSchemaViolation FailureKind = "schema_violation"
	FailureRefusal         FailureKind = "refusal"
	FailureRequestFailed   FailureKind = "request_failed"
	FailureMissingResult   FailureKind = "missing_result"
)

type Failure struct {
	Kind   FailureKind
	Detail string
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// Result is the terminal outcome for one image: exactly one of Analysis or
// Failure is set.
type Result struct {
	Ref      ImageRef
	Analysis *garment.Analysis
	Failure  *Failure
}

func Succeeded(ref ImageRef, a garment.Analysis) Result {
	return Result{Ref: ref, Analysis: &a}
}

func Failed(ref ImageRef, kind FailureKind, err error) Result {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return Result{Ref: ref, Failure: &Failure{Kind: kind, Detail: detail}}
}

func (r Result) Ok() bool {
	return r.Analysis != nil && r.Failure == nil
}
