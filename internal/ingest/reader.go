package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// recordReader reads delimited records with the tolerance of a
// hand-written spreadsheet export: stray quotes are accepted and rows may
// have any number of fields.
type recordReader struct {
	f     *os.File
	r     *csv.Reader
	first bool
}

func openRecords(path string, delim rune) (*recordReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	r := csv.NewReader(f)
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	return &recordReader{f: f, r: r, first: true}, nil
}

// next returns the next record, or io.EOF.
func (rr *recordReader) next() ([]string, error) {
	for {
		rec, err := rr.r.Read()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		if rr.first {
			rr.first = false
			if len(rec) > 0 {
				rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
			}
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		return rec, nil
	}
}

func (rr *recordReader) Close() error {
	return rr.f.Close()
}
