package pulsarutils

import (
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	commonconfig "github.com/G-Research/bitingest/internal/common/config"
	"github.com/G-Research/bitingest/internal/common/ingesterrors"
)

func TestCreatePulsarClientHappyPath(t *testing.T) {
	cwd, _ := os.Executable() // Need a valid file for tokens and certs

	config := &commonconfig.PulsarConfig{
		URL:                        "pulsar://pulsarhost:50000",
		TLSTrustCertsFilePath:      cwd,
		TLSAllowInsecureConnection: true,
		TLSValidateHostname:        true,
		MaxConnectionsPerBroker:    100,
		AuthenticationEnabled:      true,
		AuthenticationType:         "JWT",
		JwtTokenPath:               cwd,
	}
	client, err := NewPulsarClient(config)
	assert.NoError(t, err)
	client.Close()

	client, err = NewPulsarClient(&commonconfig.PulsarConfig{
		URL:                     "pulsar://pulsarhost:50000",
		MaxConnectionsPerBroker: 100,
	})
	assert.NoError(t, err)
	client.Close()
}

func TestCreatePulsarClientInvalidAuth(t *testing.T) {
	tests := map[string]*commonconfig.PulsarConfig{
		"no auth type":      {AuthenticationEnabled: true},
		"invalid auth type": {AuthenticationEnabled: true, AuthenticationType: "INVALID"},
		"no token":          {AuthenticationEnabled: true, AuthenticationType: "JWT"},
	}
	for name, config := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewPulsarClient(config)
			var e *ingesterrors.ErrInvalidArgument
			assert.True(t, errors.As(err, &e))
		})
	}
}
