package garment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformed       = errors.New("malformed garment analysis")
	ErrSchemaViolation = errors.New("garment analysis violates schema")
)

// Analysis is the structured classification of a single garment image.
type Analysis struct {
	Color    Color    `json:"color"`
	Trend    Trend    `json:"trend"`
	Category Category `json:"category"`
	Price    Price    `json:"price"`
}

func (a Analysis) Validate() error {
	var errs []error
	if !a.Color.Valid() {
		errs = append(errs, fmt.Errorf("color %q not in vocabulary", a.Color))
	}
	if !a.Trend.Valid() {
		errs = append(errs, fmt.Errorf("trend %q not in vocabulary", a.Trend))
	}
	if !a.Category.Valid() {
		errs = append(errs, fmt.Errorf("category %q not in vocabulary", a.Category))
	}
	if !a.Price.Valid() {
		errs = append(errs, fmt.Errorf("price %q not in vocabulary", a.Price))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, errors.Join(errs...))
	}
	return nil
}

// ParseAnalysis decodes the JSON content returned by the model. Unknown keys,
// missing keys and values outside the vocabularies are rejected.
func ParseAnalysis(content string) (Analysis, error) {
	if len(bytes.TrimSpace([]byte(content))) == 0 {
		return Analysis{}, fmt.Errorf("%w: empty content", ErrMalformed)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Analysis{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	for key := range raw {
		if _, err := allowedValues(key); err != nil {
			return Analysis{}, fmt.Errorf("%w: unexpected key %q", ErrSchemaViolation, key)
		}
	}
	for _, field := range Fields {
		if _, ok := raw[field]; !ok {
			return Analysis{}, fmt.Errorf("%w: missing key %q", ErrSchemaViolation, field)
		}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.DisallowUnknownFields()

	var a Analysis
	if err := dec.Decode(&a); err != nil {
		return Analysis{}, fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	if err := a.Validate(); err != nil {
		return Analysis{}, err
	}
	return a, nil
}
