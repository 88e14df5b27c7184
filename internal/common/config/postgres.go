package config

import "time"

type PostgresConfig struct {
	MaxOpenConns    int
	MaxConnLifetime time.Duration
	// libpq style key/values, e.g. host, port, user, password, dbname, sslmode
	Connection map[string]string
}
