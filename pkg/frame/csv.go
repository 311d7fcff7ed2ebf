package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadCSV builds a frame from CSV with a header row. Every column is typed
// "text" and empty fields become NULL.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv input is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns := make([]Column, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("csv column %d has an empty name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("csv column %q appears more than once", name)
		}
		seen[name] = true
		columns[i] = Column{Name: name, Type: "text"}
	}

	var rows [][]any
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		row := make([]any, len(record))
		for i, field := range record {
			if field == "" {
				continue
			}
			row[i] = field
		}
		rows = append(rows, row)
	}

	return New(columns, rows)
}

// ReadCSVFile reads a CSV file with ReadCSV.
func ReadCSVFile(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer file.Close()
	return ReadCSV(file)
}
