package config

import (
	"github.com/go-oidfed/registrar/api/adminapi"
	"github.com/go-oidfed/registrar/storage"
)

// apiConf holds API-related configuration
type apiConf struct {
	Admin adminAPIConf `yaml:"admin"`
}

type adminAPIConf struct {
	Enabled        bool                   `yaml:"enabled"`
	UsersEnabled   bool                   `yaml:"users_enabled"`
	Argon2idParams storage.Argon2idParams `yaml:"password_hashing"`
}

var defaultAPIConf = apiConf{
	Admin: adminAPIConf{
		Enabled:      true,
		UsersEnabled: true,
		Argon2idParams: storage.Argon2idParams{
			Time:        1,
			MemoryKiB:   64 * 1024,
			Parallelism: 4,
			KeyLen:      64,
			SaltLen:     32,
		},
	},
}

// Options returns the adminapi.Options or nil if the admin api is disabled
func (c adminAPIConf) Options() *adminapi.Options {
	if !c.Enabled {
		return nil
	}
	return &adminapi.Options{UsersEnabled: c.UsersEnabled}
}
