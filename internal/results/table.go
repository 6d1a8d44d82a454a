package results

import (
	"slices"
	"strings"

	"garment-classifier/internal/core/types"
)

var Columns = []string{"image", "color", "trend", "category", "price", "error"}

// Row is one image in the persisted table. Classification columns are nil for
// failed images, Error is nil for classified ones.
type Row struct {
	Image    string  `parquet:"image"`
	Color    *string `parquet:"color,optional"`
	Trend    *string `parquet:"trend,optional"`
	Category *string `parquet:"category,optional"`
	Price    *string `parquet:"price,optional"`
	Error    *string `parquet:"error,optional"`
}

type Table struct {
	Rows []Row
}

// NewTable builds one row per image sorted by path. When an image has several
// results the first success wins, otherwise the first result seen.
func NewTable(results []types.Result) *Table {
	chosen := make(map[types.ImageRef]types.Result, len(results))
	for _, res := range results {
		prev, ok := chosen[res.Ref]
		if !ok || (!prev.Ok() && res.Ok()) {
			chosen[res.Ref] = res
		}
	}

	rows := make([]Row, 0, len(chosen))
	for _, res := range chosen {
		rows = append(rows, newRow(res))
	}
	slices.SortFunc(rows, func(a, b Row) int {
		return strings.Compare(a.Image, b.Image)
	})

	return &Table{Rows: rows}
}

func newRow(res types.Result) Row {
	row := Row{Image: res.Ref.String()}
	if res.Ok() {
		a := res.Analysis
		row.Color = ptr(string(a.Color))
		row.Trend = ptr(string(a.Trend))
		row.Category = ptr(string(a.Category))
		row.Price = ptr(string(a.Price))
		return row
	}

	msg := "unknown error"
	if res.Failure != nil {
		msg = res.Failure.Error()
	}
	row.Error = &msg
	return row
}

func (t *Table) Failures() int {
	n := 0
	for _, row := range t.Rows {
		if row.Error != nil {
			n++
		}
	}
	return n
}

func ptr(s string) *string {
	return &s
}
