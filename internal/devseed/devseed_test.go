package devseed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentSeedJSON(t *testing.T) {
	entries, err := ParseDocumentSeed([]byte(`[{"key":"k1","html":"<p>hi</p>","updated_at":"2024-01-01"}]`))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k1", entries[0].Key)
	assert.Equal(t, "<p>hi</p>", entries[0].HTML)
	assert.Equal(t, "2024-01-01", entries[0].UpdatedAt)
}

func TestLoadDocumentSeedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	body := "- key: staffride_main\n  html: |\n    <h1>Ride</h1>\n  updated_by: ops\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	entries, err := LoadDocumentSeed(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "<h1>Ride</h1>\n", entries[0].HTML)
	assert.Equal(t, "ops", entries[0].UpdatedBy)
}

func TestParseDocumentSeedRejectsMissingKey(t *testing.T) {
	_, err := ParseDocumentSeed([]byte(`[{"html":"x"}]`))
	assert.ErrorContains(t, err, "missing key")
}
