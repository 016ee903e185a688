package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// decodeTable adds the rows of one sheet (or CSV file) to c. The header row is
// the first row naming at least one known column. A row contributes to the
// material table when its Material cell is filled and to the MOQ table when its
// MOQ cell is filled; both tables may share a sheet.
func decodeTable(c *Catalog, table string, rows [][]string) error {
	headerAt := -1
	var cols map[string]int
	for i, row := range rows {
		cols = columnIndex(row)
		if len(cols) > 0 {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil
	}

	_, hasMaterial := cols[ColumnMaterial]
	_, hasMOQ := cols[ColumnMOQ]

	if hasMaterial {
		if err := requireColumns(cols, table, ColumnDensity, ColumnCost); err != nil {
			return err
		}
	}
	if hasMOQ {
		if err := requireColumns(cols, table, ColumnWastage); err != nil {
			return err
		}
	}

	for i := headerAt + 1; i < len(rows); i++ {
		row := rows[i]
		line := i + 1

		if hasMaterial {
			if name := cell(row, cols[ColumnMaterial]); name != "" {
				density, err := parseNumber(cell(row, cols[ColumnDensity]), table, line, ColumnDensity)
				if err != nil {
					return err
				}
				cost, err := parseNumber(cell(row, cols[ColumnCost]), table, line, ColumnCost)
				if err != nil {
					return err
				}
				c.AddMaterial(Material{Name: name, Density: density, CostPerKg: cost})
			}
		}

		if hasMOQ {
			if raw := cell(row, cols[ColumnMOQ]); raw != "" {
				moq, err := parseMOQ(raw, table, line)
				if err != nil {
					return err
				}
				percent, err := parseNumber(cell(row, cols[ColumnWastage]), table, line, ColumnWastage)
				if err != nil {
					return err
				}
				c.AddWastage(Wastage{MOQ: moq, Percent: percent})
			}
		}
	}

	return nil
}

func columnIndex(header []string) map[string]int {
	known := []string{ColumnMaterial, ColumnDensity, ColumnCost, ColumnMOQ, ColumnWastage}
	cols := make(map[string]int)
	for i, h := range header {
		h = strings.TrimSpace(h)
		for _, k := range known {
			if h == k {
				if _, seen := cols[k]; !seen {
					cols[k] = i
				}
			}
		}
	}
	return cols
}

func requireColumns(cols map[string]int, table string, names ...string) error {
	for _, n := range names {
		if _, ok := cols[n]; !ok {
			return fmt.Errorf("%w: %s: missing column %q", ErrInvalidDataset, table, n)
		}
	}
	return nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseNumber(raw, table string, line int, column string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s row %d: %s %q is not numeric", ErrInvalidDataset, table, line, column, raw)
	}
	return v, nil
}

func parseMOQ(raw, table string, line int) (int, error) {
	v, err := parseNumber(raw, table, line, ColumnMOQ)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || v < 0 {
		return 0, fmt.Errorf("%w: %s row %d: MOQ %q is not a whole quantity", ErrInvalidDataset, table, line, raw)
	}
	return int(v), nil
}
