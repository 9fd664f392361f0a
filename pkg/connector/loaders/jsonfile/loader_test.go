package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/errors"
	"github.com/datafreight/freight/pkg/models"
)

func TestLoadArrayFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	loader, err := NewLoader("sink", config.Params{"file_path": path}, nil)
	require.NoError(t, err)

	in := []*models.Batch{
		models.NewBatch("a", []models.Record{{"id": 1}}),
		models.NewBatch("b", []models.Record{{"id": 2}}),
	}
	require.NoError(t, loader.Load(context.Background(), in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2, "batches are flattened into one array")
	assert.Equal(t, float64(1), decoded[0]["id"])
	assert.Contains(t, string(data), "\n  ", "array output is indented")
}

func TestLoadLinesFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")

	loader, err := NewLoader("sink", config.Params{"file_path": path, "format": "lines"}, nil)
	require.NoError(t, err)

	in := []*models.Batch{models.NewBatch("a", []models.Record{{"id": 1}, {"id": 2}, {"id": 3}})}
	require.NoError(t, loader.Load(context.Background(), in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	}
}

func TestLoadEmptyInputWritesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	loader, err := NewLoader("sink", config.Params{"file_path": path, "indent": 0}, nil)
	require.NoError(t, err)

	require.NoError(t, loader.Load(context.Background(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestValidateDestinationCreatesDirsByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")

	loader, err := NewLoader("sink", config.Params{"file_path": path}, nil)
	require.NoError(t, err)

	require.NoError(t, loader.ValidateDestination(context.Background()))
	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}

func TestNewLoaderValidation(t *testing.T) {
	_, err := NewLoader("sink", config.Params{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewLoader("sink", config.Params{"file_path": "x.json", "format": "xml"}, nil)
	require.Error(t, err)
}
