package opendb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opendb-io/opendb/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opendb.yaml")
	yaml := "vector_dimension: 768\nkv_cache_size: 2000\nrecord_cache_size: 1000\nvector_preset: high_accuracy\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	opts, err := LoadOptionsFile(path)
	require.NoError(t, err)
	assert.Equal(t, 768, opts.VectorDimension)
	assert.Equal(t, 2000, opts.KVCacheSize)
	assert.Equal(t, 1000, opts.RecordCacheSize)
	assert.Equal(t, vector.HighAccuracy, opts.VectorPreset)
}

func TestLoadOptionsFile_MissingFile(t *testing.T) {
	_, err := LoadOptionsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
