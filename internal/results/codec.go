package results

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/parquet-go/parquet-go"

	"garment-classifier/internal/storage"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

var ErrUnknownFormat = errors.New("unknown output format")

// FormatFor picks the encoding from the file extension.
func FormatFor(loc storage.Location) (Format, error) {
	switch loc.Ext() {
	case ".csv":
		return FormatCSV, nil
	case ".parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: %q, use .csv or .parquet", ErrUnknownFormat, loc.Ext())
	}
}

// Encode writes the table. Output depends only on the table contents.
func Encode(w io.Writer, format Format, t *Table) error {
	switch format {
	case FormatCSV:
		return encodeCSV(w, t)
	case FormatParquet:
		return encodeParquet(w, t)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func encodeCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("error writing csv header: %w", err)
	}
	for _, row := range t.Rows {
		record := []string{row.Image, deref(row.Color), deref(row.Trend), deref(row.Category), deref(row.Price), deref(row.Error)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("error writing csv row for %s: %w", row.Image, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeParquet(w io.Writer, t *Table) error {
	pw := parquet.NewGenericWriter[Row](w)
	if _, err := pw.Write(t.Rows); err != nil {
		_ = pw.Close()
		return fmt.Errorf("error writing parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("error closing parquet writer: %w", err)
	}
	return nil
}

func Decode(data []byte, format Format) (*Table, error) {
	switch format {
	case FormatCSV:
		return decodeCSV(data)
	case FormatParquet:
		rows, err := parquet.Read[Row](bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("error reading parquet rows: %w", err)
		}
		return &Table{Rows: rows}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func decodeCSV(data []byte) (*Table, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = len(Columns)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header")
	}

	t := &Table{Rows: make([]Row, 0, len(records)-1)}
	for _, record := range records[1:] {
		t.Rows = append(t.Rows, Row{
			Image:    record[0],
			Color:    nullable(record[1]),
			Trend:    nullable(record[2]),
			Category: nullable(record[3]),
			Price:    nullable(record[4]),
			Error:    nullable(record[5]),
		})
	}
	return t, nil
}

// Save encodes the table in the format implied by loc and stores it in one
// write.
func Save(ctx context.Context, provider storage.Provider, loc storage.Location, t *Table) error {
	format, err := FormatFor(loc)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, format, t); err != nil {
		return err
	}

	if err := provider.PutObject(ctx, loc.Bucket, loc.Key, &buf); err != nil {
		return fmt.Errorf("error saving results to %s: %w", loc, err)
	}

	slog.Info("saved results", "location", loc, "rows", len(t.Rows), "failures", t.Failures())
	return nil
}

func Load(ctx context.Context, provider storage.Provider, loc storage.Location) (*Table, error) {
	format, err := FormatFor(loc)
	if err != nil {
		return nil, err
	}

	data, err := provider.GetObject(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, fmt.Errorf("error loading results from %s: %w", loc, err)
	}
	return Decode(data, format)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
