package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// CreateContextWithShutdown returns a context that is cancelled on the first SIGINT or SIGTERM.
// Outstanding operations then get the remainder of the drain window, or none at all, as the caller decides.
func CreateContextWithShutdown() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		select {
		case sig := <-c:
			log.Warnf("Caught %s, stopping ingest", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
