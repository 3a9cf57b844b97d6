package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smbt-dev/inspectgo/internal/config"
	"github.com/smbt-dev/inspectgo/internal/database"
	"github.com/smbt-dev/inspectgo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
)

// useSQLite points openDB at a sqlite file that survives across commands
func useSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.db")
	prev := openDB
	openDB = func(*config.Config, *zap.Logger) (*database.DB, error) {
		return database.New(sqlite.Open(path), 5*time.Second, zap.NewNop())
	}
	t.Cleanup(func() { openDB = prev })

	t.Setenv("PHOTO_BASE_URL", "uploads")
	t.Setenv("UPLOADS_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd, cleanup := newRootCmd()
	defer cleanup()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSeedThenAggregate(t *testing.T) {
	useSQLite(t)

	out, err := execute(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 5 categories")

	out, err = execute(t, "aggregate", "17")
	require.NoError(t, err)
	var buckets []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &buckets))
	require.Len(t, buckets, 5)
	assert.Equal(t, "image_group", buckets[0]["kind"])
}

func TestSeedFromFile(t *testing.T) {
	useSQLite(t)
	file := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`categories:
  - id: 1
    title: Only
    kind: flat
`), 0644))

	out, err := execute(t, "seed", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 1 categories")
}

func TestRender(t *testing.T) {
	path := useSQLite(t)
	_, err := execute(t, "seed")
	require.NoError(t, err)

	db, err := database.New(sqlite.Open(path), time.Second, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Request{ID: 3, Address: "1 Main St", Status: models.StatusCompleted}).Error)
	require.NoError(t, db.Create(&models.Report{RequestID: 3, Rooms: 1}).Error)
	require.NoError(t, db.Close())

	output := filepath.Join(t.TempDir(), "out.pdf")
	out, err := execute(t, "render", "3", "-o", output)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	pdf, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
}

func TestRenderMissingReport(t *testing.T) {
	useSQLite(t)
	_, err := execute(t, "seed")
	require.NoError(t, err)

	_, err = execute(t, "render", "99")
	assert.Error(t, err)
}

func TestInvalidID(t *testing.T) {
	useSQLite(t)
	_, err := execute(t, "aggregate", "abc")
	assert.Error(t, err)
}
