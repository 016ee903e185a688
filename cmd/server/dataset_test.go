package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Simplici0/costcalc/internal/catalog"
	"github.com/Simplici0/costcalc/internal/config"
	"github.com/Simplici0/costcalc/internal/geometry"
	"github.com/Simplici0/costcalc/internal/geometry/step"
)

func TestSQLiteSourceImportsDataset(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "material.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testDatasetCSV), 0o600))

	cfg := config.Config{
		AppEnv:        "prod",
		DatasetDriver: "sqlite",
		DatasetPath:   csvPath,
		DBPath:        filepath.Join(dir, "ref.db"),
	}
	src, closeFn, err := newDatasetSource(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()

	c, err := src.Load(context.Background())
	require.NoError(t, err)
	m, w, err := c.Lookup("ABS", 1000)
	require.NoError(t, err)
	assert.Equal(t, 1.05, m.Density)
	assert.Equal(t, 180.0, m.CostPerKg)
	assert.Equal(t, 5.0, w.Percent)

	_, err = c.Material("PU")
	assert.ErrorIs(t, err, catalog.ErrMaterialNotFound)
}

func TestSQLiteSourceSeedsDefaultsInDev(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		AppEnv:        "dev",
		DatasetDriver: "sqlite",
		DatasetPath:   filepath.Join(dir, "missing.xlsx"),
		DBPath:        filepath.Join(dir, "ref.db"),
	}
	src, closeFn, err := newDatasetSource(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()

	c, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, catalog.MaterialOptions, c.Materials())
	assert.Equal(t, catalog.MOQOptions, c.MOQs())
}

func TestFileSources(t *testing.T) {
	for driver, want := range map[string]catalog.Source{
		"xlsx": catalog.XLSXSource{Path: "material.xlsx"},
		"csv":  catalog.CSVSource{Path: "material.xlsx"},
	} {
		src, closeFn, err := newDatasetSource(context.Background(), config.Config{DatasetDriver: driver, DatasetPath: "material.xlsx"}, zap.NewNop())
		require.NoError(t, err)
		assert.NoError(t, closeFn())
		assert.Equal(t, want, src)
	}

	_, _, err := newDatasetSource(context.Background(), config.Config{DatasetDriver: "mongo"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewGeometryReader(t *testing.T) {
	assert.Equal(t, step.NewReader(), newGeometryReader(config.Config{GeometryReader: "native"}))
	assert.Equal(t,
		geometry.CommandReader{Command: "occ-volume {path}"},
		newGeometryReader(config.Config{GeometryReader: "command", GeometryCommand: "occ-volume {path}"}),
	)
}
