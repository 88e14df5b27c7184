package locator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/bitingest/internal/common/ingesterrors"
	"github.com/G-Research/bitingest/internal/ingester/domain"
)

const testManifest = `
files:
  - id: reports/2022.pdf
    size: 1024
    checksum: 9e107d9d372bb6826bd81d3542a419d6
  - id: images/logo.png
    url: https://cdn.example.com/logo.png
  - url: orphan.txt
  - id: notes.txt
    url: /archive/notes.txt
    size: 0
`

func TestManifestLocator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testManifest), 0o644))

	manifest, err := LoadManifest(path)
	require.NoError(t, err)
	locator := NewManifestLocator(manifest, "https://files.example.com/")

	ctx := context.Background()
	file, err := locator.NextFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, &domain.File{
		Id:       "reports/2022.pdf",
		Url:      "https://files.example.com/reports/2022.pdf",
		Size:     1024,
		Checksum: "9e107d9d372bb6826bd81d3542a419d6",
	}, file)

	file, err = locator.NextFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/logo.png", file.Url)
	assert.Equal(t, domain.DefaultFileSize, file.Size)

	// The entry without an id is an error for that entry only.
	_, err = locator.NextFile(ctx)
	var invalid *ingesterrors.ErrInvalidArgument
	assert.True(t, errors.As(err, &invalid))

	file, err = locator.NextFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/archive/notes.txt", file.Url)

	_, err = locator.NextFile(ctx)
	assert.ErrorIs(t, err, domain.ErrNoMoreFiles)
}

func TestManifestLocator_NoBaseUrl(t *testing.T) {
	locator := NewManifestLocator(&Manifest{Files: []ManifestEntry{{Id: "a", Url: "relative/a"}}}, "")
	file, err := locator.NextFile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "relative/a", file.Url)
}

func TestLoadManifest_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("files:\n  - id: a\n    colour: blue\n"), 0o644))

	_, err := LoadManifest(path)
	assert.Error(t, err)

	_, err = LoadManifest(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestManifestLocator_MissingLocalFile(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.txt")
	require.NoError(t, os.WriteFile(present, []byte("here"), 0o644))

	locator := NewManifestLocator(&Manifest{Files: []ManifestEntry{
		{Id: "gone", Url: "file://" + filepath.ToSlash(filepath.Join(dir, "gone.txt"))},
		{Id: "present", Url: "file://" + filepath.ToSlash(present)},
	}}, "")
	ctx := context.Background()

	_, err := locator.NextFile(ctx)
	var notFound *ingesterrors.ErrNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "gone", notFound.Value)

	file, err := locator.NextFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "present", file.Id)

	_, err = locator.NextFile(ctx)
	assert.ErrorIs(t, err, domain.ErrNoMoreFiles)
}
