package configuration

import (
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/G-Research/bitingest/internal/common/ingesterrors"
)

func (c IngesterConfiguration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// CheckConfig validates c, returning every problem found rather than just the first.
func CheckConfig(c IngesterConfiguration) error {
	var result *multierror.Error

	var validationErrors validator.ValidationErrors
	if err := c.Validate(); errors.As(err, &validationErrors) {
		for _, fieldErr := range validationErrors {
			result = multierror.Append(result, &ingesterrors.ErrInvalidArgument{
				Name:    fieldErr.Namespace(),
				Value:   fieldErr.Value(),
				Message: "failed " + fieldErr.Tag() + " validation",
			})
		}
	} else if err != nil {
		result = multierror.Append(result, err)
	}

	invalid := func(name string, value interface{}, message string) {
		result = multierror.Append(result, &ingesterrors.ErrInvalidArgument{Name: name, Value: value, Message: message})
	}

	switch c.Locator.Type {
	case LocatorTree:
		if c.Locator.Root == "" {
			invalid("Locator.Root", c.Locator.Root, "the tree locator needs a root directory")
		}
	case LocatorManifest:
		if c.Locator.Manifest == "" {
			invalid("Locator.Manifest", c.Locator.Manifest, "the manifest locator needs a manifest file")
		}
	}

	switch c.Transfer.Type {
	case TransferLocal:
		if c.Transfer.Local.TargetDir == "" {
			invalid("Transfer.Local.TargetDir", c.Transfer.Local.TargetDir, "the local transfer needs a target directory")
		}
		if c.Transfer.Local.Workers <= 0 {
			invalid("Transfer.Local.Workers", c.Transfer.Local.Workers, "must be positive")
		}
	case TransferPulsar:
		if c.Transfer.Pulsar.URL == "" {
			invalid("Transfer.Pulsar.URL", c.Transfer.Pulsar.URL, "pulsar needs a broker url")
		}
		if c.Transfer.Pulsar.RequestTopic == "" || c.Transfer.Pulsar.EventTopic == "" {
			invalid("Transfer.Pulsar", c.Transfer.Pulsar.RequestTopic, "pulsar needs both a request and an event topic")
		}
	case TransferNats:
		if len(c.Transfer.Nats.Servers) == 0 {
			invalid("Transfer.Nats.Servers", c.Transfer.Nats.Servers, "nats needs at least one server")
		}
		if c.Transfer.Nats.RequestSubject == "" || c.Transfer.Nats.EventSubject == "" {
			invalid("Transfer.Nats", c.Transfer.Nats.RequestSubject, "nats needs both a request and an event subject")
		}
	}

	if c.Results.Postgres.Enabled && len(c.Results.Postgres.Postgres.Connection) == 0 {
		invalid("Results.Postgres.Postgres.Connection", nil, "postgres results need connection settings")
	}
	if c.Results.Redis.Enabled && len(c.Results.Redis.Redis.Addrs) == 0 {
		invalid("Results.Redis.Redis.Addrs", nil, "redis results need at least one address")
	}

	return result.ErrorOrNil()
}
