package app

import (
	"context"
	"io"

	"github.com/go-redis/redis"
	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/bitingest/internal/common/database"
	"github.com/G-Research/bitingest/internal/common/ingesterrors"
	"github.com/G-Research/bitingest/internal/common/util"
	"github.com/G-Research/bitingest/internal/ingester"
	"github.com/G-Research/bitingest/internal/ingester/configuration"
	"github.com/G-Research/bitingest/internal/ingester/domain"
	"github.com/G-Research/bitingest/internal/locator"
	"github.com/G-Research/bitingest/internal/results"
	"github.com/G-Research/bitingest/internal/transfer"
)

// App is an ingest run assembled from configuration.
type App struct {
	Config   configuration.IngesterConfiguration
	Ingester *ingester.Ingester
	// Every failure of the run, for the summary printed at the end.
	Failures *results.Collector

	// Connections owned by the app rather than by any one collaborator.
	resources []io.Closer
}

// New checks config and builds everything a run needs. Metrics are registered on registerer.
func New(ctx context.Context, config configuration.IngesterConfiguration, registerer prometheus.Registerer) (*App, error) {
	if err := configuration.CheckConfig(config); err != nil {
		return nil, err
	}
	a := &App{Config: config, Failures: results.NewCollector(config.CollectionId)}

	loc, err := NewLocator(config.Locator)
	if err != nil {
		return nil, err
	}
	sink, err := a.newResultSink(ctx)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	client, err := NewTransferClient(config.Transfer)
	if err != nil {
		_ = sink.Close()
		a.closeResources()
		return nil, err
	}

	ing, err := newIngester(ingester.Params{
		CollectionId:                config.CollectionId,
		MaxParallelOperations:       config.MaxParallelOperations,
		DrainTimeout:                config.DrainTimeout,
		DrainPollInterval:           config.DrainPollInterval,
		MaxConsecutiveLocatorErrors: config.MaxConsecutiveLocatorErrors,
		Source:                      config.Results.Source,
	}, loc, client, sink)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.Ingester = ing.WithMetrics(ingester.NewMetrics(registerer))
	return a, nil
}

// newIngester builds the ingester, closing the collaborators it would have owned if that fails.
func newIngester(
	params ingester.Params,
	loc domain.Locator,
	client domain.TransferClient,
	sink domain.ResultSink,
) (*ingester.Ingester, error) {
	ing, err := ingester.NewIngester(params, loc, client, sink)
	if err != nil {
		resources := []struct {
			name     string
			resource interface{}
		}{
			{"transfer client", client},
			{"result sink", sink},
			{"locator", loc},
		}
		for _, r := range resources {
			if closer, ok := r.resource.(io.Closer); ok {
				util.CloseResource(r.name, closer)
			}
		}
		return nil, err
	}
	return ing, nil
}

func (a *App) Run(ctx context.Context) (*ingester.RunSummary, error) {
	return a.Ingester.Run(ctx)
}

// Shutdown closes the transport, flushes result sinks and closes any database connections.
func (a *App) Shutdown() error {
	var result *multierror.Error
	if a.Ingester != nil {
		if err := a.Ingester.Shutdown(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := a.closeResources(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (a *App) closeResources() error {
	var result *multierror.Error
	for i := len(a.resources) - 1; i >= 0; i-- {
		if err := a.resources[i].Close(); err != nil {
			result = multierror.Append(result, errors.WithStack(err))
		}
	}
	a.resources = nil
	return result.ErrorOrNil()
}

func (a *App) newResultSink(ctx context.Context) (results.MultiSink, error) {
	config := a.Config.Results
	sink := results.MultiSink{a.Failures}
	if config.Log {
		sink = append(sink, results.NewLogSink(a.Config.CollectionId))
	}
	if config.Redis.Enabled {
		db := redis.NewUniversalClient(&config.Redis.Redis)
		if err := db.Ping().Err(); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "error connecting to redis")
		}
		a.resources = append(a.resources, db)
		sink = append(sink, results.NewRedisSink(db, a.Config.CollectionId, config.Redis.Expiry))
	}
	if config.Postgres.Enabled {
		pool, err := database.OpenPgxPool(ctx, config.Postgres.Postgres)
		if err != nil {
			_ = sink.Close()
			return nil, err
		}
		a.resources = append(a.resources, poolCloser{pool})
		if err := results.EnsureSchema(ctx, pool); err != nil {
			_ = sink.Close()
			return nil, err
		}
		sink = append(sink, results.NewPostgresSink(pool, a.Config.CollectionId, config.Postgres.BatchSize, config.Postgres.FlushInterval))
	}
	return sink, nil
}

func NewLocator(config configuration.LocatorConfig) (domain.Locator, error) {
	switch config.Type {
	case configuration.LocatorTree:
		return locator.NewTreeLocator(config.Root, config.Include, config.Exclude, config.Checksums, config.BaseUrl)
	case configuration.LocatorManifest:
		manifest, err := locator.LoadManifest(config.Manifest)
		if err != nil {
			return nil, err
		}
		return locator.NewManifestLocator(manifest, config.BaseUrl), nil
	default:
		return nil, errors.WithStack(&ingesterrors.ErrInvalidArgument{
			Name:    "Locator.Type",
			Value:   config.Type,
			Message: "unknown locator",
		})
	}
}

func NewTransferClient(config configuration.TransferConfig) (domain.TransferClient, error) {
	switch config.Type {
	case configuration.TransferLocal:
		return transfer.NewLocalClient(config.Local.TargetDir, config.Local.Workers)
	case configuration.TransferPulsar:
		log.Infof("Connecting to pulsar at %s", config.Pulsar.URL)
		return transfer.NewPulsarClient(config.Pulsar, config.PendingRequestTtl)
	case configuration.TransferNats:
		log.Infof("Connecting to nats at %v", config.Nats.Servers)
		return transfer.NewNatsClient(config.Nats, config.PendingRequestTtl)
	default:
		return nil, errors.WithStack(&ingesterrors.ErrInvalidArgument{
			Name:    "Transfer.Type",
			Value:   config.Type,
			Message: "unknown transfer",
		})
	}
}

type poolCloser struct {
	pool *pgxpool.Pool
}

func (p poolCloser) Close() error {
	p.pool.Close()
	return nil
}
