package transfer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/G-Research/bitingest/internal/common/ingesterrors"
	"github.com/G-Research/bitingest/internal/ingester/domain"
)

// LocalClient stores files by copying file:// urls into targetDir/<collection>/<file id>, at most workers
// copies at a time. Outcomes are delivered on the goroutine that did the copy.
type LocalClient struct {
	targetDir string
	workers   *semaphore.Weighted
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *log.Entry
}

func NewLocalClient(targetDir string, workers int) (*LocalClient, error) {
	if workers <= 0 {
		return nil, errors.WithStack(&ingesterrors.ErrInvalidArgument{
			Name:    "workers",
			Value:   workers,
			Message: "must be positive",
		})
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalClient{
		targetDir: targetDir,
		workers:   semaphore.NewWeighted(int64(workers)),
		ctx:       ctx,
		cancel:    cancel,
		logger:    log.WithField("component", "LocalClient"),
	}, nil
}

// PutFile rejects anything that is not a local file:// url; everything else is copied in the background.
func (c *LocalClient) PutFile(ctx context.Context, request *domain.PutFileRequest, handler domain.EventHandler) error {
	source, err := localPath(request.Url)
	if err != nil {
		return err
	}
	if err := c.ctx.Err(); err != nil {
		return errors.New("local client is closed")
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.workers.Acquire(c.ctx, 1); err != nil {
			handler.HandleEvent(c.event(request, domain.EventTypeFailed, "cancelled before the copy started"))
			return
		}
		defer c.workers.Release(1)

		handler.HandleEvent(c.event(request, domain.EventTypeProgress, "copying"))
		if err := c.copy(source, request); err != nil {
			c.logger.WithError(err).Warnf("Failed to store %s", request.FileId)
			handler.HandleEvent(c.event(request, domain.EventTypeFailed, err.Error()))
			return
		}
		handler.HandleEvent(c.event(request, domain.EventTypeComplete, ""))
	}()
	return nil
}

func (c *LocalClient) copy(source string, request *domain.PutFileRequest) error {
	target := filepath.Join(c.targetDir, request.CollectionId, filepath.FromSlash(request.FileId))
	if !strings.HasPrefix(target, filepath.Clean(c.targetDir)+string(filepath.Separator)) {
		return errors.Errorf("file id %s escapes the target directory", request.FileId)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.WithStack(err)
	}

	in, err := os.Open(source)
	if err != nil {
		return errors.WithStack(err)
	}
	defer in.Close()
	out, err := os.Create(target)
	if err != nil {
		return errors.WithStack(err)
	}
	hash := md5.New()
	written, copyErr := io.Copy(io.MultiWriter(out, hash), in)
	closeErr := out.Close()
	if copyErr != nil {
		return errors.WithStack(copyErr)
	}
	if closeErr != nil {
		return errors.WithStack(closeErr)
	}

	if request.Size > 0 && written != request.Size {
		return errors.Errorf("size mismatch: expected %d bytes, copied %d", request.Size, written)
	}
	if request.Checksum != "" {
		if actual := hex.EncodeToString(hash.Sum(nil)); !strings.EqualFold(actual, request.Checksum) {
			return errors.Errorf("checksum mismatch: expected %s, got %s", request.Checksum, actual)
		}
	}
	return nil
}

func (c *LocalClient) event(request *domain.PutFileRequest, eventType domain.OperationEventType, info string) *domain.OperationEvent {
	return &domain.OperationEvent{
		Type:         eventType,
		FileId:       request.FileId,
		CollectionId: request.CollectionId,
		RequestId:    request.RequestId,
		Info:         info,
	}
}

// Close stops copies that have not started yet, failing them, and waits for the rest to finish.
func (c *LocalClient) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}

func localPath(rawUrl string) (string, error) {
	u, err := url.Parse(rawUrl)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if u.Scheme != "file" {
		return "", errors.WithStack(&ingesterrors.ErrInvalidArgument{
			Name:    "url",
			Value:   rawUrl,
			Message: "only file:// urls can be stored locally",
		})
	}
	return filepath.FromSlash(u.Path), nil
}
