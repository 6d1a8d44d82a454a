package garment

import (
	"fmt"
	"slices"
	"strings"
)

const (
	SchemaName        = "GarmentAnalysis"
	SchemaDescription = "Structured classification of a single garment image."

	UserPrompt = "Analyse this garment."
)

var fieldDescriptions = map[string]string{
	FieldColor:    "Primary color of the garment",
	FieldTrend:    "Style trend category",
	FieldCategory: "Target demographic",
	FieldPrice:    "Estimated price range",
}

// Schema returns the strict JSON schema sent with every classification request.
func Schema() map[string]any {
	properties := make(map[string]any, len(Fields))
	for _, field := range Fields {
		values, _ := allowedValues(field)
		properties[field] = map[string]any{
			"type":        "string",
			"description": fieldDescriptions[field],
			"enum":        values,
		}
	}

	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             slices.Clone(Fields),
		"additionalProperties": false,
	}
}

// CheckSchema verifies that the declared schema and the vocabularies used for
// validation agree. A mismatch is a configuration defect.
func CheckSchema() error {
	schema := Schema()

	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return fmt.Errorf("schema properties is not an object")
	}
	if len(properties) != len(Fields) {
		return fmt.Errorf("schema declares %d properties, analysis has %d fields", len(properties), len(Fields))
	}

	for _, field := range Fields {
		prop, ok := properties[field].(map[string]any)
		if !ok {
			return fmt.Errorf("schema is missing property %q", field)
		}
		enum, ok := prop["enum"].([]string)
		if !ok || len(enum) == 0 {
			return fmt.Errorf("schema property %q has no enum", field)
		}
		want, err := allowedValues(field)
		if err != nil {
			return err
		}
		if !slices.Equal(enum, want) {
			return fmt.Errorf("schema enum for %q does not match vocabulary", field)
		}
	}

	required, ok := schema["required"].([]string)
	if !ok || !slices.Equal(required, Fields) {
		return fmt.Errorf("schema required keys do not match analysis fields")
	}

	return nil
}

// SystemPrompt lists the controlled vocabularies the model must pick from.
func SystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are a senior fashion merchandiser.\n")
	sb.WriteString("Classify the garment in the image into **exactly** the controlled vocabularies below. ")
	sb.WriteString("Return *only* a JSON object with the keys `color`, `trend`, `category`, `price`. ")
	sb.WriteString("Do **not** include any additional keys or explanatory text.\n\n")
	sb.WriteString("Controlled vocabularies:\n")
	for i, field := range Fields {
		values, _ := allowedValues(field)
		fmt.Fprintf(&sb, "- %s: {%s}", field, strings.Join(values, ", "))
		if i < len(Fields)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
