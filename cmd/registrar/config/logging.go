package config

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"

	"github.com/go-oidfed/registrar/internal/logger"
)

// loggingConf holds all logging-related configuration under the `logging` key.
//
// YAML example:
//
//	logging:
//	  access:
//	    dir: /var/log/registrar
//	    stderr: false
//	  internal:
//	    dir: /var/log/registrar
//	    stderr: false
//	    level: INFO
//	  banner:
//	    version: true
type loggingConf struct {
	Access   logger.Conf        `yaml:"access"`
	Internal internalLoggerConf `yaml:"internal"`
	Banner   bannerConf         `yaml:"banner"`
}

// bannerConf controls whether the version banner is printed on startup
type bannerConf struct {
	Version bool `yaml:"version"`
}

// internalLoggerConf is the registrar's own log; level is a logrus level
// name, case-insensitive
type internalLoggerConf struct {
	logger.Conf `yaml:",inline"`
	Level       string `yaml:"level"`
}

func (conf *loggingConf) validate() error {
	for name, dir := range map[string]string{
		"access":   conf.Access.Dir,
		"internal": conf.Internal.Dir,
	} {
		if dir != "" && !fileutils.FileExists(dir) {
			return errors.Errorf("%s log directory '%s' does not exist", name, dir)
		}
	}
	if _, err := log.ParseLevel(conf.Internal.Level); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

var defaultLoggingConf = loggingConf{
	Banner: bannerConf{
		Version: true,
	},
	Internal: internalLoggerConf{
		Level: "INFO",
	},
}
