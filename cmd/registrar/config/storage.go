package config

import (
	"github.com/pkg/errors"

	"github.com/go-oidfed/registrar/storage"
)

type storageConf struct {
	Driver  storage.DriverType `yaml:"driver"`
	DataDir string             `yaml:"data_dir"`
	DSN     string             `yaml:"dsn"`

	storage.DSNConf `yaml:",inline"`

	Debug bool `yaml:"debug"`
}

func (c *storageConf) validate() error {
	if c.Driver == storage.DriverSQLite {
		if c.DataDir == "" && c.DSN == "" {
			return errors.New("data_dir must be specified")
		}
		return nil
	}
	var err error
	if c.DSN == "" {
		c.DSN, err = storage.DSN(c.Driver, c.DSNConf)
	}
	return err
}

var defaultStorageConf = storageConf{
	Driver: storage.DriverSQLite,
	DSNConf: storage.DSNConf{
		User: "registrar",
		Host: "localhost",
		DB:   "registrar",
	},
	Debug: false,
}

// StorageConfig assembles the storage.Config from the storage, statements,
// and api sections
func (conf Config) StorageConfig() storage.Config {
	return storage.Config{
		Driver:         conf.Storage.Driver,
		DSN:            conf.Storage.DSN,
		DataDir:        conf.Storage.DataDir,
		Debug:          conf.Storage.Debug,
		UsersHash:      conf.API.Admin.Argon2idParams,
		StatementCache: conf.Statements.Cache,
		BadgerDir:      conf.Statements.BadgerDir,
	}
}
