package configuration

import (
	"testing"
	"time"

	"github.com/go-redis/redis"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonconfig "github.com/G-Research/bitingest/internal/common/config"
	"github.com/G-Research/bitingest/internal/common/ingesterrors"
)

func validConfig() IngesterConfiguration {
	return IngesterConfiguration{
		CollectionId:          "books",
		MaxParallelOperations: 10,
		DrainTimeout:          time.Minute,
		Locator:               LocatorConfig{Type: LocatorTree, Root: "/data"},
		Transfer: TransferConfig{
			Type:  TransferLocal,
			Local: LocalTransferConfig{TargetDir: "/target", Workers: 4},
		},
	}
}

func TestCheckConfig_Valid(t *testing.T) {
	assert.NoError(t, CheckConfig(validConfig()))
}

func TestCheckConfig_Invalid(t *testing.T) {
	tests := map[string]struct {
		modify        func(c *IngesterConfiguration)
		expectedNames []string
	}{
		"no collection": {
			modify:        func(c *IngesterConfiguration) { c.CollectionId = "" },
			expectedNames: []string{"IngesterConfiguration.CollectionId"},
		},
		"zero parallelism": {
			modify:        func(c *IngesterConfiguration) { c.MaxParallelOperations = 0 },
			expectedNames: []string{"IngesterConfiguration.MaxParallelOperations"},
		},
		"negative drain timeout": {
			modify:        func(c *IngesterConfiguration) { c.DrainTimeout = -time.Second },
			expectedNames: []string{"IngesterConfiguration.DrainTimeout"},
		},
		"unknown locator": {
			modify:        func(c *IngesterConfiguration) { c.Locator.Type = "s3" },
			expectedNames: []string{"IngesterConfiguration.Locator.Type"},
		},
		"tree without root": {
			modify:        func(c *IngesterConfiguration) { c.Locator.Root = "" },
			expectedNames: []string{"Locator.Root"},
		},
		"manifest without file": {
			modify:        func(c *IngesterConfiguration) { c.Locator.Type = LocatorManifest },
			expectedNames: []string{"Locator.Manifest"},
		},
		"local without target or workers": {
			modify: func(c *IngesterConfiguration) {
				c.Transfer.Local = LocalTransferConfig{}
			},
			expectedNames: []string{"Transfer.Local.TargetDir", "Transfer.Local.Workers"},
		},
		"pulsar without topics": {
			modify: func(c *IngesterConfiguration) {
				c.Transfer.Type = TransferPulsar
				c.Transfer.Pulsar = commonconfig.PulsarConfig{URL: "pulsar://localhost:6650"}
			},
			expectedNames: []string{"Transfer.Pulsar"},
		},
		"nats without servers": {
			modify: func(c *IngesterConfiguration) {
				c.Transfer.Type = TransferNats
				c.Transfer.Nats = commonconfig.NatsConfig{RequestSubject: "put", EventSubject: "events"}
			},
			expectedNames: []string{"Transfer.Nats.Servers"},
		},
		"redis results without address": {
			modify: func(c *IngesterConfiguration) {
				c.Results.Redis = RedisResultsConfig{Enabled: true, Redis: redis.UniversalOptions{}}
			},
			expectedNames: []string{"Results.Redis.Redis.Addrs"},
		},
		"postgres results without connection": {
			modify:        func(c *IngesterConfiguration) { c.Results.Postgres.Enabled = true },
			expectedNames: []string{"Results.Postgres.Postgres.Connection"},
		},
		"several problems": {
			modify: func(c *IngesterConfiguration) {
				c.CollectionId = ""
				c.Locator.Root = ""
			},
			expectedNames: []string{"IngesterConfiguration.CollectionId", "Locator.Root"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			config := validConfig()
			tc.modify(&config)

			err := CheckConfig(config)
			require.Error(t, err)
			assert.Equal(t, ingesterrors.ExitCodeInvalidArgument, ingesterrors.ExitCodeFromError(err))

			var merr *multierror.Error
			require.True(t, errors.As(err, &merr))
			var names []string
			for _, e := range merr.Errors {
				var invalid *ingesterrors.ErrInvalidArgument
				require.True(t, errors.As(e, &invalid))
				names = append(names, invalid.Name)
			}
			assert.Equal(t, tc.expectedNames, names)
		})
	}
}
