package main

import (
	"fmt"
	"io"
	"os"

	"github.com/go-oidfed/lib/cache"
	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar"
	"github.com/go-oidfed/registrar/cmd/registrar/config"
	"github.com/go-oidfed/registrar/internal/logger"
	"github.com/go-oidfed/registrar/internal/version"
	"github.com/go-oidfed/registrar/storage"
)

func main() {
	var configFile string
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}
	config.Load(configFile)
	c := config.Get()
	if err := logger.Init(c.Logging.Internal.Conf, c.Logging.Internal.Level); err != nil {
		log.WithError(err).Fatal("could not init logging")
	}
	if c.Logging.Banner.Version {
		fmt.Fprint(os.Stderr, version.Banner(60))
	}
	log.WithField("version", version.VERSION).Info("Loaded Config")

	if redisOptions := c.Caching.RedisOptions(); redisOptions != nil {
		if err := cache.UseRedisCache(redisOptions); err != nil {
			log.WithError(err).Fatal("could not init redis cache")
		}
		log.Info("Loaded Redis Cache")
	}

	backs, err := storage.LoadStorageBackends(c.StorageConfig())
	if err != nil {
		log.WithError(err).Fatal("could not load storage backends")
	}
	if closer, ok := backs.Statements.(io.Closer); ok {
		defer closer.Close()
	}
	log.Info("Loaded storage backend")

	accessLog, err := logger.AccessLogWriter(c.Logging.Access)
	if err != nil {
		log.WithError(err).Fatal("could not open access log")
	}
	registrarConf := c.RegistrarConfig()
	registrarConf.AccessLog = accessLog
	r, err := registrar.New(c.Server, registrarConf, backs)
	if err != nil {
		log.WithError(err).Fatal("could not create registrar")
	}
	if err = r.Init(); err != nil {
		log.WithError(err).Fatal("could not load signing key")
	}
	log.Info("Initialized Registrar")

	if interval := c.Statements.PurgeInterval.Duration(); interval > 0 {
		stop := make(chan struct{})
		defer close(stop)
		go r.PurgeEvery(interval, stop)
	}

	r.Start()
}
