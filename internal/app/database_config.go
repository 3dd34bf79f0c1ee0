package app

import "github.com/rbigger/aiamp/internal/database"

// DatabaseSettings converts DatabaseConfig into the database package representation.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	cfg := database.Config{
		Driver: c.Driver,
		Path:   c.Path,
		DSN:    c.DSN,
	}

	switch {
	case c.Postgres.Enabled:
		cfg.Host = c.Postgres.Host
		cfg.Port = c.Postgres.Port
		cfg.User = c.Postgres.Username
		cfg.Password = c.Postgres.Password
		cfg.Name = c.Postgres.Database
	case c.MySQL.Enabled:
		cfg.Host = c.MySQL.Host
		cfg.Port = c.MySQL.Port
		cfg.User = c.MySQL.Username
		cfg.Password = c.MySQL.Password
		cfg.Name = c.MySQL.Database
	}

	return cfg
}
