package locator

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mattn/go-zglob"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/bitingest/internal/common/ingesterrors"
	"github.com/G-Research/bitingest/internal/ingester/domain"
)

const matchEverything = "**/*"

// TreeLocator yields every regular file under a directory whose path relative to that directory matches one
// of the include patterns and none of the exclude patterns. Ids are the relative, slash separated, paths.
type TreeLocator struct {
	root      string
	include   []string
	exclude   []string
	checksums bool
	baseUrl   string

	mu    sync.Mutex
	paths []string
	next  int
}

func NewTreeLocator(root string, include, exclude []string, checksums bool, baseUrl string) (*TreeLocator, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !info.IsDir() {
		return nil, errors.WithStack(&ingesterrors.ErrInvalidArgument{
			Name:    "root",
			Value:   root,
			Message: "not a directory",
		})
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(include) == 0 {
		include = []string{matchEverything}
	}
	return &TreeLocator{
		root:      abs,
		include:   include,
		exclude:   exclude,
		checksums: checksums,
		baseUrl:   strings.TrimSuffix(baseUrl, "/"),
	}, nil
}

func (l *TreeLocator) NextFile(ctx context.Context) (*domain.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if l.paths == nil {
		paths, err := l.find()
		if err != nil {
			return nil, err
		}
		l.paths = paths
	}
	if l.next >= len(l.paths) {
		return nil, domain.ErrNoMoreFiles
	}
	relative := l.paths[l.next]
	l.next++
	return l.describe(relative)
}

// find globs every include pattern under root, dropping directories and excluded paths.
func (l *TreeLocator) find() ([]string, error) {
	seen := map[string]bool{}
	paths := []string{}
	for _, pattern := range l.include {
		matches, err := zglob.Glob(filepath.Join(l.root, pattern))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "failed to glob %s under %s", pattern, l.root)
		}
		for _, match := range matches {
			relative, err := filepath.Rel(l.root, match)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			relative = filepath.ToSlash(relative)
			if seen[relative] {
				continue
			}
			seen[relative] = true

			excluded, err := l.excluded(relative)
			if err != nil {
				return nil, err
			}
			if excluded {
				continue
			}
			info, err := os.Stat(match)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			paths = append(paths, relative)
		}
	}
	sort.Strings(paths)
	log.Infof("Found %d files to ingest under %s", len(paths), l.root)
	return paths, nil
}

func (l *TreeLocator) excluded(relative string) (bool, error) {
	for _, pattern := range l.exclude {
		matched, err := zglob.Match(pattern, relative)
		if err != nil {
			return false, errors.Wrapf(err, "bad exclude pattern %s", pattern)
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

func (l *TreeLocator) describe(relative string) (*domain.File, error) {
	path := filepath.Join(l.root, filepath.FromSlash(relative))
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	file := &domain.File{
		Id:   relative,
		Url:  l.urlFor(relative, path),
		Size: info.Size(),
	}
	if l.checksums {
		checksum, err := md5Of(path)
		if err != nil {
			return nil, err
		}
		file.Checksum = checksum
	}
	return file, nil
}

func (l *TreeLocator) urlFor(relative, path string) string {
	if l.baseUrl != "" {
		return l.baseUrl + "/" + relative
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

func md5Of(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()
	hash := md5.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", errors.Wrapf(err, "failed to read %s", path)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
