package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"
)

const datasetCSV = `Material,Density (g/cm3),Cost/kg INR,MOQ,Wastage_percentage
LDPE,0.92,100,10,15
PVC,1.38,90,100,10
ABS,1.05,180,1000,7
HDPE,0.95,110,10000,5
PU,1.2,250,,
`

func writeWorkbook(t *testing.T, sheets map[string][][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cellRef, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			r := row
			require.NoError(t, f.SetSheetRow(name, cellRef, &r))
		}
	}

	path := filepath.Join(t.TempDir(), "material.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestXLSXSource_SeparateSheets(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"Materials": {
			{"Material", "Density (g/cm3)", "Cost/kg INR"},
			{"LDPE", 0.92, 100},
			{"ABS", 1.05, 180},
		},
		"MOQ": {
			{"MOQ", "Wastage_percentage"},
			{10, 15},
			{100, 10},
		},
	})

	c, err := XLSXSource{Path: path}.Load(context.Background())
	require.NoError(t, err)

	m, w, err := c.Lookup("LDPE", 100)
	require.NoError(t, err)
	assert.Equal(t, 0.92, m.Density)
	assert.Equal(t, 100.0, m.CostPerKg)
	assert.Equal(t, 10.0, w.Percent)
}

func TestXLSXSource_MissingFile(t *testing.T) {
	_, err := XLSXSource{Path: filepath.Join(t.TempDir(), "nope.xlsx")}.Load(context.Background())
	assert.ErrorIs(t, err, ErrDatasetUnavailable)
}

func TestCSVSource_AllEnumeratedPairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "material.csv")
	require.NoError(t, os.WriteFile(path, []byte(datasetCSV), 0o600))

	c, err := CSVSource{Path: path}.Load(context.Background())
	require.NoError(t, err)

	want := map[string][2]float64{
		"LDPE": {0.92, 100},
		"PVC":  {1.38, 90},
		"ABS":  {1.05, 180},
		"HDPE": {0.95, 110},
		"PU":   {1.2, 250},
	}
	wantWastage := map[int]float64{10: 15, 100: 10, 1000: 7, 10000: 5}

	for _, name := range MaterialOptions {
		for _, moq := range MOQOptions {
			m, w, err := c.Lookup(name, moq)
			require.NoError(t, err, "%s/%d", name, moq)
			assert.Equal(t, want[name][0], m.Density)
			assert.Equal(t, want[name][1], m.CostPerKg)
			assert.Equal(t, wantWastage[moq], w.Percent)
		}
	}
}

func TestXLSXSource_IgnoresNumberFormats(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]any{
		{"Material", "Density (g/cm3)", "Cost/kg INR", "MOQ", "Wastage_percentage"},
		{"PU", 0.925, 1250.5, 1000, 7.25},
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cellRef, &r))
	}

	twoDecimals, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	require.NoError(t, err)
	thousands, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B2", twoDecimals))
	require.NoError(t, f.SetCellStyle("Sheet1", "C2", "C2", thousands))
	require.NoError(t, f.SetCellStyle("Sheet1", "D2", "D2", thousands))
	require.NoError(t, f.SetCellStyle("Sheet1", "E2", "E2", thousands))

	path := filepath.Join(t.TempDir(), "styled.xlsx")
	require.NoError(t, f.SaveAs(path))

	c, err := XLSXSource{Path: path}.Load(context.Background())
	require.NoError(t, err)

	m, w, err := c.Lookup("PU", 1000)
	require.NoError(t, err)
	assert.Equal(t, 0.925, m.Density)
	assert.Equal(t, 1250.5, m.CostPerKg)
	assert.Equal(t, 7.25, w.Percent)
}

func TestCSVSource_MissingFile(t *testing.T) {
	_, err := CSVSource{Path: filepath.Join(t.TempDir(), "nope.csv")}.Load(context.Background())
	assert.ErrorIs(t, err, ErrDatasetUnavailable)
}

func TestSQLiteSource_Load(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE materials (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			density_g_cm3 NUMERIC NOT NULL,
			cost_per_kg NUMERIC NOT NULL
		);
		CREATE TABLE moq_wastage (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			moq INTEGER NOT NULL,
			wastage_percent NUMERIC NOT NULL
		);
		INSERT INTO materials (name, density_g_cm3, cost_per_kg) VALUES ('HDPE', 0.95, 110), ('HDPE', 2, 2);
		INSERT INTO moq_wastage (moq, wastage_percent) VALUES (1000, 7);
	`)
	require.NoError(t, err)

	c, err := SQLiteSource{DB: db}.Load(context.Background())
	require.NoError(t, err)

	m, w, err := c.Lookup("HDPE", 1000)
	require.NoError(t, err)
	assert.Equal(t, 0.95, m.Density)
	assert.Equal(t, 7.0, w.Percent)
	assert.Len(t, c.Duplicates(), 1)
}

func TestSQLiteSource_MissingTables(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = SQLiteSource{DB: db}.Load(context.Background())
	assert.ErrorIs(t, err, ErrDatasetUnavailable)
}

type fakeGetter struct {
	body []byte
	err  error
	keys []string
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.keys = append(f.keys, *in.Key)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.body))}, nil
}

func TestS3Source_DecodesCSVOnEveryLoad(t *testing.T) {
	getter := &fakeGetter{body: []byte(datasetCSV)}
	src := NewS3SourceWithClient(getter, "datasets", "costing/material.csv")

	for i := 0; i < 2; i++ {
		c, err := src.Load(context.Background())
		require.NoError(t, err)
		_, err = c.Material("ABS")
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"costing/material.csv", "costing/material.csv"}, getter.keys)
}

func TestS3Source_Errors(t *testing.T) {
	_, err := NewS3SourceWithClient(&fakeGetter{err: errors.New("no such bucket")}, "b", "k.csv").Load(context.Background())
	assert.ErrorIs(t, err, ErrDatasetUnavailable)

	_, err = NewS3SourceWithClient(&fakeGetter{body: []byte("x")}, "b", "k.json").Load(context.Background())
	assert.ErrorIs(t, err, ErrInvalidDataset)

	_, err = NewS3SourceWithClient(&fakeGetter{body: []byte(strings.Repeat("x", 10))}, "b", "k.xlsx").Load(context.Background())
	assert.ErrorIs(t, err, ErrInvalidDataset)
}
