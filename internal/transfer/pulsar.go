package transfer

import (
	"context"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	commonconfig "github.com/G-Research/bitingest/internal/common/config"
	"github.com/G-Research/bitingest/internal/common/logging"
	"github.com/G-Research/bitingest/internal/common/pulsarutils"
	"github.com/G-Research/bitingest/internal/ingester/domain"
)

const (
	defaultReceiveTimeout = 10 * time.Second
	defaultBackoffTime    = time.Second
)

type asyncSender interface {
	SendAsync(ctx context.Context, msg *pulsar.ProducerMessage, callback func(pulsar.MessageID, *pulsar.ProducerMessage, error))
}

// PulsarClient publishes put requests to a Pulsar topic and consumes the storage service's operation events
// from another, dispatching each to the handler of the request it concerns.
type PulsarClient struct {
	client   pulsar.Client
	producer pulsar.Producer
	consumer pulsar.Consumer
	sender   asyncSender
	pending  *pendingRequests
	cancel   context.CancelFunc
	done     chan struct{}
	logger   *log.Entry
}

func NewPulsarClient(config commonconfig.PulsarConfig, pendingTtl time.Duration) (*PulsarClient, error) {
	client, err := pulsarutils.NewPulsarClient(&config)
	if err != nil {
		return nil, err
	}
	producer, err := client.CreateProducer(pulsar.ProducerOptions{
		Topic:            config.RequestTopic,
		CompressionType:  config.CompressionType,
		CompressionLevel: config.CompressionLevel,
	})
	if err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "error creating pulsar producer for topic %s", config.RequestTopic)
	}
	consumer, err := client.Subscribe(pulsar.ConsumerOptions{
		Topic:            config.EventTopic,
		SubscriptionName: config.EventSubscription,
		Type:             pulsar.Shared,
	})
	if err != nil {
		producer.Close()
		client.Close()
		return nil, errors.Wrapf(err, "error subscribing to pulsar topic %s", config.EventTopic)
	}

	c := &PulsarClient{
		client:   client,
		producer: producer,
		consumer: consumer,
		sender:   producer,
		pending:  newPendingRequests(pendingTtl),
		done:     make(chan struct{}),
		logger:   log.WithField("component", "PulsarClient"),
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.receive(ctx, nonZero(config.ReceiveTimeout, defaultReceiveTimeout), nonZero(config.BackoffTime, defaultBackoffTime))
	return c, nil
}

// PutFile publishes request asynchronously. A publish failure reported after PutFile has returned is
// delivered to handler as a FAILED event.
func (c *PulsarClient) PutFile(ctx context.Context, request *domain.PutFileRequest, handler domain.EventHandler) error {
	payload, err := encodeRequest(request)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}
	c.pending.add(request, handler)
	c.sender.SendAsync(ctx, &pulsar.ProducerMessage{
		Payload: payload,
		Key:     request.FileId,
		Properties: map[string]string{
			propertyCollectionId: request.CollectionId,
			propertyRequestId:    request.RequestId,
		},
	}, func(_ pulsar.MessageID, _ *pulsar.ProducerMessage, err error) {
		if err != nil {
			logging.WithStacktrace(c.logger, err).Warnf("Failed to publish put request for %s", request.FileId)
			c.pending.fail(request.RequestId, "failed to publish put request: "+err.Error())
		}
	})
	return nil
}

func (c *PulsarClient) receive(ctx context.Context, receiveTimeout, backoff time.Duration) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		receiveCtx, cancel := context.WithTimeout(ctx, receiveTimeout)
		msg, err := c.consumer.Receive(receiveCtx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			continue
		}
		if err != nil {
			logging.WithStacktrace(c.logger, err).Warnf("Pulsar receive failed; backing off for %s", backoff)
			time.Sleep(backoff)
			continue
		}
		c.handleMessage(msg.Payload())
		c.consumer.Ack(msg)
	}
}

// handleMessage dispatches a single event payload. Malformed or unknown events are logged and dropped.
func (c *PulsarClient) handleMessage(payload []byte) {
	event, err := decodeEvent(payload)
	if err != nil {
		logging.WithStacktrace(c.logger, err).Warn("Ignoring malformed operation event")
		return
	}
	if !c.pending.dispatch(event) {
		c.logger.Debugf("Ignoring %s for a request this ingester is not waiting on", event)
	}
}

// Close stops consuming events and releases the Pulsar session. Requests still awaiting an outcome are
// abandoned.
func (c *PulsarClient) Close() error {
	c.cancel()
	<-c.done
	if n := c.pending.len(); n > 0 {
		c.logger.Warnf("Closing with %d requests still awaiting an outcome", n)
	}
	if err := c.producer.Flush(); err != nil {
		c.logger.WithError(err).Warn("Failed to flush pulsar producer")
	}
	c.producer.Close()
	c.consumer.Close()
	c.client.Close()
	return nil
}

func nonZero(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
