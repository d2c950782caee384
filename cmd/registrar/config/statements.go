package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/duration"

	"github.com/go-oidfed/registrar/statements"
	"github.com/go-oidfed/registrar/storage"
)

// statementsConf configures issued and fetched entity statements
//
//	statements:
//	  lifetime: 1d
//	  fetch_timeout: 10s
//	  cache: badger
//	  badger_dir: /var/lib/registrar/statements
//	  purge_interval: 1h
type statementsConf struct {
	Lifetime      duration.DurationOption       `yaml:"lifetime"`
	FetchTimeout  duration.DurationOption       `yaml:"fetch_timeout"`
	Cache         storage.StatementCacheBackend `yaml:"cache"`
	BadgerDir     string                        `yaml:"badger_dir"`
	PurgeInterval duration.DurationOption       `yaml:"purge_interval"`
}

var defaultStatementsConf = statementsConf{
	Lifetime:      duration.DurationOption(statements.DefaultLifetime),
	FetchTimeout:  duration.DurationOption(statements.DefaultFetchTimeout),
	Cache:         storage.StatementCacheDB,
	PurgeInterval: duration.DurationOption(time.Hour),
}

func (c *statementsConf) validate() error {
	if c.Lifetime.Duration() < time.Second {
		return errors.New("lifetime must be at least one second")
	}
	switch c.Cache {
	case storage.StatementCacheDB:
	case storage.StatementCacheBadger:
		if c.BadgerDir == "" {
			return errors.New("badger_dir must be set for the badger cache")
		}
	default:
		return errors.Errorf("unknown statement cache '%s'", c.Cache)
	}
	return nil
}
