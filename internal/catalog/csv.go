package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// CSVSource reads the dataset from one CSV file holding either or both tables.
type CSVSource struct {
	Path string
}

func (s CSVSource) Load(ctx context.Context) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDatasetUnavailable, s.Path, err)
	}
	defer f.Close()

	return decodeCSV(f, s.Path)
}

func decodeCSV(r io.Reader, name string) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse csv %s: %v", ErrInvalidDataset, name, err)
	}

	c := New()
	if err := decodeTable(c, name, rows); err != nil {
		return nil, err
	}
	return c, nil
}
