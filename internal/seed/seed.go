package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Simplici0/costcalc/internal/catalog"
)

// Data is the reference data written by Run.
type Data struct {
	Materials []catalog.Material
	Wastage   []catalog.Wastage
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Defaults returns starter rows for every selectable material and MOQ tier.
// Values are indicative and meant to be replaced by a real dataset import.
func Defaults() Data {
	return Data{
		Materials: []catalog.Material{
			{Name: "LDPE", Density: 0.92, CostPerKg: 110},
			{Name: "PVC", Density: 1.38, CostPerKg: 95},
			{Name: "ABS", Density: 1.05, CostPerKg: 180},
			{Name: "HDPE", Density: 0.95, CostPerKg: 115},
			{Name: "PU", Density: 1.2, CostPerKg: 260},
		},
		Wastage: []catalog.Wastage{
			{MOQ: 10, Percent: 15},
			{MOQ: 100, Percent: 10},
			{MOQ: 1000, Percent: 7},
			{MOQ: 10000, Percent: 5},
		},
	}
}

// FromCatalog flattens a loaded catalog so it can be imported with Run.
func FromCatalog(c *catalog.Catalog) Data {
	var d Data
	for _, name := range c.Materials() {
		m, _ := c.Material(name)
		d.Materials = append(d.Materials, m)
	}
	for _, moq := range c.MOQs() {
		w, _ := c.Wastage(moq)
		d.Wastage = append(d.Wastage, w)
	}
	return d
}

// Run writes data in one transaction. Missing rows are inserted and rows whose
// values differ are updated, so repeated runs converge to zero changes.
func Run(ctx context.Context, db *sql.DB, data Data) (Stats, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	for _, m := range data.Materials {
		if err := ensureMaterial(ctx, tx, m, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}
	for _, w := range data.Wastage {
		if err := ensureWastage(ctx, tx, w, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureMaterial(ctx context.Context, tx *sql.Tx, m catalog.Material, stats *Stats) error {
	var density, cost float64
	err := tx.QueryRowContext(ctx, `
		SELECT density_g_cm3, cost_per_kg FROM materials WHERE name = ?
	`, m.Name).Scan(&density, &cost)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO materials (name, density_g_cm3, cost_per_kg)
			VALUES (?, ?, ?)
		`, m.Name, m.Density, m.CostPerKg); err != nil {
			return fmt.Errorf("insert material %s: %w", m.Name, err)
		}
		stats.Inserts++
		return nil
	case err != nil:
		return fmt.Errorf("check material %s: %w", m.Name, err)
	}

	if density == m.Density && cost == m.CostPerKg {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE materials
		SET density_g_cm3 = ?, cost_per_kg = ?, updated_at = CURRENT_TIMESTAMP
		WHERE name = ?
	`, m.Density, m.CostPerKg, m.Name); err != nil {
		return fmt.Errorf("update material %s: %w", m.Name, err)
	}
	stats.Updates++
	return nil
}

func ensureWastage(ctx context.Context, tx *sql.Tx, w catalog.Wastage, stats *Stats) error {
	var percent float64
	err := tx.QueryRowContext(ctx, `
		SELECT wastage_percent FROM moq_wastage WHERE moq = ?
	`, w.MOQ).Scan(&percent)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO moq_wastage (moq, wastage_percent)
			VALUES (?, ?)
		`, w.MOQ, w.Percent); err != nil {
			return fmt.Errorf("insert moq %d: %w", w.MOQ, err)
		}
		stats.Inserts++
		return nil
	case err != nil:
		return fmt.Errorf("check moq %d: %w", w.MOQ, err)
	}

	if percent == w.Percent {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE moq_wastage
		SET wastage_percent = ?, updated_at = CURRENT_TIMESTAMP
		WHERE moq = ?
	`, w.Percent, w.MOQ); err != nil {
		return fmt.Errorf("update moq %d: %w", w.MOQ, err)
	}
	stats.Updates++
	return nil
}
