package configuration

import (
	"time"

	"github.com/go-redis/redis"

	commonconfig "github.com/G-Research/bitingest/internal/common/config"
)

const (
	LocatorTree     = "tree"
	LocatorManifest = "manifest"

	TransferLocal  = "local"
	TransferPulsar = "pulsar"
	TransferNats   = "nats"
)

type IngesterConfiguration struct {
	// Collection every file is put into
	CollectionId string `validate:"required"`
	// Upper bound on put operations in flight at once
	MaxParallelOperations int `validate:"gt=0"`
	// How long to wait for outstanding operations once every file has been submitted
	DrainTimeout time.Duration `validate:"gte=0"`
	// How often outstanding operations are checked while draining
	DrainPollInterval time.Duration
	// Stop looking for files after this many locator errors in a row; zero means never stop
	MaxConsecutiveLocatorErrors int `validate:"gte=0"`
	// Metrics configuration
	MetricsPort uint16
	LogLevel    string
	Locator     LocatorConfig
	Transfer    TransferConfig
	Results     ResultsConfig
}

type LocatorConfig struct {
	// One of "tree" or "manifest"
	Type string `validate:"oneof=tree manifest"`
	// Directory walked by the tree locator
	Root string
	// Glob patterns, relative to Root, a file must match one of to be ingested. Empty matches everything.
	Include []string
	// Glob patterns, relative to Root, excluding files that would otherwise be included
	Exclude []string
	// Compute md5 checksums while walking
	Checksums bool
	// Path of the yaml manifest read by the manifest locator
	Manifest string
	// Prefix for relative urls in the manifest, and for tree locator urls when set
	BaseUrl string
}

type TransferConfig struct {
	// One of "local", "pulsar" or "nats"
	Type   string `validate:"oneof=local pulsar nats"`
	Local  LocalTransferConfig
	Pulsar commonconfig.PulsarConfig
	Nats   commonconfig.NatsConfig
	// How long a submitted request is remembered while waiting for its outcome
	PendingRequestTtl time.Duration
}

type LocalTransferConfig struct {
	// Directory each collection is copied into
	TargetDir string
	// Number of copies performed at once
	Workers int
}

type ResultsConfig struct {
	// Reported as the source of every failure
	Source string
	// Log every failure
	Log      bool
	Redis    RedisResultsConfig
	Postgres PostgresResultsConfig
}

type RedisResultsConfig struct {
	Enabled bool
	Redis   redis.UniversalOptions
	// Failures are kept for this long
	Expiry time.Duration
}

type PostgresResultsConfig struct {
	Enabled  bool
	Postgres commonconfig.PostgresConfig
	// Failures are buffered until this many are waiting or FlushInterval passes
	BatchSize     int
	FlushInterval time.Duration
}
