package config

import "time"

type NatsConfig struct {
	// Comma separated server urls, e.g. nats://localhost:4222
	Servers []string
	// Client name reported to the server
	ClientName string
	// Subject put requests are published to
	RequestSubject string
	// Subject operation events are received on
	EventSubject string
	// Optional queue group, so several ingesters can share one event subject
	QueueGroup  string
	ConnTimeout time.Duration
}
