package locator

import (
	"context"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/G-Research/bitingest/internal/common/ingesterrors"
	"github.com/G-Research/bitingest/internal/ingester/domain"
)

// Manifest lists files to ingest, e.g.
//
//	files:
//	  - id: reports/2022.pdf
//	    url: reports/2022.pdf
//	    size: 1024
//	    checksum: 9e107d9d372bb6826bd81d3542a419d6
type Manifest struct {
	Files []ManifestEntry `yaml:"files"`
}

type ManifestEntry struct {
	Id       string `yaml:"id"`
	Url      string `yaml:"url"`
	Size     *int64 `yaml:"size"`
	Checksum string `yaml:"checksum"`
}

// ManifestLocator yields the entries of a Manifest in order. Relative urls are resolved against baseUrl.
// An entry without an id, or whose file:// url names a missing file, is reported as an error and skipped.
type ManifestLocator struct {
	entries []ManifestEntry
	baseUrl string

	mu   sync.Mutex
	next int
}

func NewManifestLocator(manifest *Manifest, baseUrl string) *ManifestLocator {
	return &ManifestLocator{
		entries: manifest.Files,
		baseUrl: strings.TrimSuffix(baseUrl, "/"),
	}
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	manifest := &Manifest{}
	if err := yaml.UnmarshalStrict(data, manifest); err != nil {
		return nil, errors.Wrapf(err, "failed to parse manifest %s", path)
	}
	return manifest, nil
}

func (l *ManifestLocator) NextFile(ctx context.Context) (*domain.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if l.next >= len(l.entries) {
		return nil, domain.ErrNoMoreFiles
	}
	index := l.next
	entry := l.entries[index]
	l.next++

	if entry.Id == "" {
		return nil, errors.WithStack(&ingesterrors.ErrInvalidArgument{
			Name:    "id",
			Value:   index,
			Message: "manifest entry has no id",
		})
	}
	location := entry.Url
	if location == "" {
		location = entry.Id
	}
	location = l.resolve(location)
	if err := checkLocalFile(entry.Id, location); err != nil {
		return nil, err
	}
	size := domain.DefaultFileSize
	if entry.Size != nil {
		size = *entry.Size
	}
	return &domain.File{
		Id:       entry.Id,
		Url:      location,
		Size:     size,
		Checksum: entry.Checksum,
	}, nil
}

func (l *ManifestLocator) resolve(location string) string {
	if l.baseUrl == "" || strings.Contains(location, "://") {
		return location
	}
	return l.baseUrl + "/" + strings.TrimPrefix(location, "/")
}

// checkLocalFile fails with ErrNotFound when location is a file:// url naming something that does not exist.
// Remote urls are left for the storage service to fetch.
func checkLocalFile(id, location string) error {
	u, err := url.Parse(location)
	if err != nil || u.Scheme != "file" {
		return nil
	}
	if _, err := os.Stat(u.Path); os.IsNotExist(err) {
		return errors.WithStack(&ingesterrors.ErrNotFound{
			Type:    "file",
			Value:   id,
			Message: "manifest lists " + u.Path,
		})
	}
	return nil
}
