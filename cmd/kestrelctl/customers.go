package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// readCustomerDocuments reads store documents from a JSON array or a CSV file
// whose header row uses the store column names.
func readCustomerDocuments(path string, limit int) ([]map[string]any, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var docs []map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		docs, err = readCSVDocuments(file, limit)
	default:
		err = json.NewDecoder(file).Decode(&docs)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func readCSVDocuments(r io.Reader, limit int) ([]map[string]any, error) {
	reader := csv.NewReader(r)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var docs []map[string]any
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		doc := make(map[string]any, len(header))
		for i, col := range header {
			if i >= len(row) || row[i] == "" {
				continue
			}
			doc[col] = csvValue(col, row[i])
		}
		docs = append(docs, doc)

		if limit > 0 && len(docs) >= limit {
			break
		}
	}
	return docs, nil
}

// textColumns stay strings even when they look numeric.
var textColumns = map[string]bool{
	domain.ColumnPhone:      true,
	domain.ColumnPincode:    true,
	domain.ColumnCustomerID: true,
}

func csvValue(col, raw string) any {
	raw = strings.TrimSpace(raw)
	if textColumns[col] {
		return raw
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
