package transfer

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	commonconfig "github.com/G-Research/bitingest/internal/common/config"
	"github.com/G-Research/bitingest/internal/common/logging"
	"github.com/G-Research/bitingest/internal/ingester/domain"
)

// NatsClient publishes put requests on a NATS subject and listens for operation events on another.
type NatsClient struct {
	conn           *nats.Conn
	subscription   *nats.Subscription
	requestSubject string
	pending        *pendingRequests
	logger         *log.Entry
}

func NewNatsClient(config commonconfig.NatsConfig, pendingTtl time.Duration) (*NatsClient, error) {
	options := []nats.Option{nats.Name(config.ClientName)}
	if config.ConnTimeout > 0 {
		options = append(options, nats.Timeout(config.ConnTimeout))
	}
	conn, err := nats.Connect(strings.Join(config.Servers, ","), options...)
	if err != nil {
		return nil, errors.Wrapf(err, "error connecting to nats servers %v", config.Servers)
	}
	c := &NatsClient{
		conn:           conn,
		requestSubject: config.RequestSubject,
		pending:        newPendingRequests(pendingTtl),
		logger:         log.WithField("component", "NatsClient"),
	}
	if config.QueueGroup != "" {
		c.subscription, err = conn.QueueSubscribe(config.EventSubject, config.QueueGroup, c.handleMessage)
	} else {
		c.subscription, err = conn.Subscribe(config.EventSubject, c.handleMessage)
	}
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "error subscribing to nats subject %s", config.EventSubject)
	}
	// Make sure the subscription is live before any request can be answered.
	if err := conn.Flush(); err != nil {
		conn.Close()
		return nil, errors.WithStack(err)
	}
	return c, nil
}

func (c *NatsClient) PutFile(ctx context.Context, request *domain.PutFileRequest, handler domain.EventHandler) error {
	payload, err := encodeRequest(request)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}
	msg := nats.NewMsg(c.requestSubject)
	msg.Data = payload
	msg.Header.Set(propertyCollectionId, request.CollectionId)
	msg.Header.Set(propertyRequestId, request.RequestId)

	c.pending.add(request, handler)
	if err := c.conn.PublishMsg(msg); err != nil {
		c.pending.forget(request.RequestId)
		return errors.Wrapf(err, "error publishing put request for %s", request.FileId)
	}
	return nil
}

func (c *NatsClient) handleMessage(msg *nats.Msg) {
	event, err := decodeEvent(msg.Data)
	if err != nil {
		logging.WithStacktrace(c.logger, err).Warn("Ignoring malformed operation event")
		return
	}
	if !c.pending.dispatch(event) {
		c.logger.Debugf("Ignoring %s for a request this ingester is not waiting on", event)
	}
}

// Close unsubscribes and closes the connection. Requests still awaiting an outcome are abandoned.
func (c *NatsClient) Close() error {
	if n := c.pending.len(); n > 0 {
		c.logger.Warnf("Closing with %d requests still awaiting an outcome", n)
	}
	if err := c.subscription.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		c.logger.WithError(err).Warn("Failed to unsubscribe from operation events")
	}
	c.conn.Close()
	return nil
}
