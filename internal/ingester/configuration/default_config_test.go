package configuration

import (
	"testing"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/bitingest/internal/common"
)

func TestDefaultConfig(t *testing.T) {
	var config IngesterConfiguration
	_, err := common.ReadConfig(&config, "../../../config/bitingest", nil)
	require.NoError(t, err)

	// The shipped defaults leave the collection to the operator.
	assert.Error(t, CheckConfig(config))
	config.CollectionId = "books"
	require.NoError(t, CheckConfig(config))

	assert.Equal(t, 16, config.MaxParallelOperations)
	assert.Equal(t, 5*time.Minute, config.DrainTimeout)
	assert.Zero(t, config.MaxConsecutiveLocatorErrors)
	assert.Equal(t, LocatorTree, config.Locator.Type)
	assert.Equal(t, TransferLocal, config.Transfer.Type)
	assert.Equal(t, 24*time.Hour, config.Transfer.PendingRequestTtl)
	assert.Equal(t, pulsar.ZLib, config.Transfer.Pulsar.CompressionType)
	assert.Equal(t, []string{"nats://localhost:4222"}, config.Transfer.Nats.Servers)
	assert.Equal(t, "localhost", config.Results.Postgres.Postgres.Connection["host"])
}

func TestDefaultConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BITINGEST_COLLECTIONID", "films")
	t.Setenv("BITINGEST_TRANSFER_LOCAL_WORKERS", "7")

	var config IngesterConfiguration
	_, err := common.ReadConfig(&config, "../../../config/bitingest", nil)
	require.NoError(t, err)

	assert.Equal(t, "films", config.CollectionId)
	assert.Equal(t, 7, config.Transfer.Local.Workers)
}
