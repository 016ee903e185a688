package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so a developer .env never leaks in.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	for _, key := range []string{
		"APP_ENV", "PORT", "DATASET_DRIVER", "DATASET_PATH", "GEOMETRY_READER",
		"GEOMETRY_PARSE_TIMEOUT", "UPLOAD_DIR", "UPLOAD_MAX_BYTES", "S3_REGION",
	} {
		unsetForTest(t, key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "xlsx", cfg.DatasetDriver)
	assert.Equal(t, "./material.xlsx", cfg.DatasetPath)
	assert.Equal(t, "native", cfg.GeometryReader)
	assert.Equal(t, 30*time.Second, cfg.GeometryParseTimeout)
	assert.Equal(t, os.TempDir(), cfg.UploadDir)
	assert.Equal(t, int64(32<<20), cfg.UploadMaxBytes)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.True(t, cfg.IsDev())
}

func TestLoad_RejectsInvalidCombinations(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown dataset driver", env: map[string]string{"DATASET_DRIVER": "parquet"}},
		{name: "s3 without bucket", env: map[string]string{"DATASET_DRIVER": "s3", "S3_BUCKET": "", "S3_KEY": "material.xlsx"}},
		{name: "command reader without command", env: map[string]string{"GEOMETRY_READER": "command", "GEOMETRY_COMMAND": ""}},
		{name: "unknown reader", env: map[string]string{"GEOMETRY_READER": "iges"}},
		{name: "zero timeout", env: map[string]string{"GEOMETRY_PARSE_TIMEOUT": "0s"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chdirTemp(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
		})
	}
}
