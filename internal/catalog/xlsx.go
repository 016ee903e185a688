package catalog

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXSource reads the dataset from a workbook on local disk. Every sheet is
// scanned, so the material and MOQ tables may share a sheet or not.
type XLSXSource struct {
	Path string
}

func (s XLSXSource) Load(ctx context.Context) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook %s: %v", ErrDatasetUnavailable, s.Path, err)
	}
	defer f.Close()

	return decodeWorkbook(f)
}

func decodeXLSX(r io.Reader) (*Catalog, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read workbook: %v", ErrInvalidDataset, err)
	}
	defer f.Close()

	return decodeWorkbook(f)
}

func decodeWorkbook(f *excelize.File) (*Catalog, error) {
	c := New()
	for _, sheet := range f.GetSheetList() {
		// Raw values: number formats only affect display.
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: read sheet %s: %v", ErrInvalidDataset, sheet, err)
		}
		if err := decodeTable(c, sheet, rows); err != nil {
			return nil, err
		}
	}
	return c, nil
}
