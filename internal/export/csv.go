// Package export writes extracted service lines as a CSV table.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
)

// Schema returns the sorted union of keys over records. It is the CSV header.
func Schema[R ~map[string]string](records []R) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Rows aligns every record to columns, leaving missing keys empty.
func Rows[R ~map[string]string](columns []string, records []R) [][]string {
	out := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = r[c]
		}
		out = append(out, row)
	}
	return out
}

// WriteCSV writes the header followed by one row per record, in record order,
// with CRLF line endings. Nothing but the header is written for zero records.
func WriteCSV[R ~map[string]string](w io.Writer, records []R) error {
	columns := Schema(records)
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(Rows(columns, records)); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}
