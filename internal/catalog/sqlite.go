package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteSource reads the dataset from the materials and moq_wastage tables.
type SQLiteSource struct {
	DB *sql.DB
}

func (s SQLiteSource) Load(ctx context.Context) (*Catalog, error) {
	c := New()

	rows, err := s.DB.QueryContext(ctx, `
		SELECT name, density_g_cm3, cost_per_kg
		FROM materials
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query materials: %v", ErrDatasetUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.Name, &m.Density, &m.CostPerKg); err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		c.AddMaterial(m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate materials: %w", err)
	}

	wrows, err := s.DB.QueryContext(ctx, `
		SELECT moq, wastage_percent
		FROM moq_wastage
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query moq_wastage: %v", ErrDatasetUnavailable, err)
	}
	defer wrows.Close()

	for wrows.Next() {
		var w Wastage
		if err := wrows.Scan(&w.MOQ, &w.Percent); err != nil {
			return nil, fmt.Errorf("scan moq wastage: %w", err)
		}
		c.AddWastage(w)
	}
	if err := wrows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moq wastage: %w", err)
	}

	return c, nil
}
