// Package config loads the yaml configuration of the registrar.
package config

import (
	"os"
	"path/filepath"
	"reflect"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"
	"gopkg.in/yaml.v3"

	"github.com/go-oidfed/registrar"
)

// Config holds the configuration of the registrar
type Config struct {
	Server     registrar.ServerConf `yaml:"server"`
	Federation federationConf       `yaml:"federation"`
	Endpoints  Endpoints            `yaml:"endpoints"`
	Signing    SigningConf          `yaml:"signing"`
	Statements statementsConf       `yaml:"statements"`
	Storage    storageConf          `yaml:"storage"`
	Caching    cachingConf          `yaml:"caching"`
	Logging    loggingConf          `yaml:"logging"`
	API        apiConf              `yaml:"api"`
}

type configValidator interface {
	validate() error
}

var c Config

var possibleConfigLocations = []string{
	".",
	"config",
	"/config",
	"/etc/registrar",
}

// Get returns the loaded Config
func Get() Config {
	return c
}

func defaultConfig() Config {
	return Config{
		Server: registrar.ServerConf{
			Port: 7672,
		},
		Signing:    defaultSigningConf,
		Statements: defaultStatementsConf,
		Storage:    defaultStorageConf,
		Logging:    defaultLoggingConf,
		API:        defaultAPIConf,
	}
}

// Load reads the config file and populates the Config; it exits if no valid
// config could be loaded
func Load(filename string) {
	if err := load(filename); err != nil {
		log.WithError(err).Fatal("could not load config")
	}
}

func load(filename string) error {
	if filename == "" {
		for _, dir := range possibleConfigLocations {
			if candidate := filepath.Join(dir, "config.yaml"); fileutils.FileExists(candidate) {
				filename = candidate
				break
			}
		}
		if filename == "" {
			return errors.New("could not find config.yaml in any of the possible locations")
		}
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	log.WithField("file", filename).Debug("reading config file")
	conf, err := parse(data)
	if err != nil {
		return err
	}
	c = conf
	return nil
}

func parse(data []byte) (Config, error) {
	conf := defaultConfig()
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return Config{}, errors.Wrap(err, "could not parse config file")
	}
	if err := conf.validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

// validate calls validate on all config sections that implement
// configValidator
func (conf *Config) validate() error {
	v := reflect.ValueOf(conf).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fieldVal := v.Field(i)
		if !fieldVal.CanAddr() {
			continue
		}
		if validator, ok := fieldVal.Addr().Interface().(configValidator); ok {
			if err := validator.validate(); err != nil {
				return errors.Errorf("invalid config in section '%s': %s", t.Field(i).Tag.Get("yaml"), err.Error())
			}
		}
	}
	conf.Endpoints.resolve(conf.Federation.EntityID)
	return nil
}

// RegistrarConfig assembles the registrar.Config from the loaded sections;
// the access log is left for the caller to set
func (conf Config) RegistrarConfig() registrar.Config {
	return registrar.Config{
		EntityID:              conf.Federation.EntityID,
		OrganizationName:      conf.Federation.OrganizationName,
		FederationEntityExtra: conf.Federation.Extra,
		Endpoints:             conf.Endpoints.RegistrarEndpoints(),
		Signing:               conf.Signing.KeysConfig(),
		StatementLifetime:     conf.Statements.Lifetime.Duration(),
		FetchTimeout:          conf.Statements.FetchTimeout.Duration(),
		AdminAPI:              conf.API.Admin.Options(),
	}
}
