package main

import (
	"encoding/json"
	"io"

	"github.com/go-oidfed/lib/cache"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/go-oidfed/registrar"
	"github.com/go-oidfed/registrar/cmd/registrar/config"
	"github.com/go-oidfed/registrar/storage"
	"github.com/go-oidfed/registrar/storage/model"
)

var rootCmd = &cobra.Command{
	Use:               "regcli",
	Short:             "regcli can help you manage your registrar",
	Long:              "regcli manages validation rules, entities, signing keys, and users of a registrar directly on its storage",
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
}

var configFile string
var verbose bool

var backs model.Backends
var reg *registrar.Registrar

func loadConfig(_ *cobra.Command, _ []string) error {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	config.Load(configFile)
	log.Debug("Loaded Config")
	c := config.Get()

	if redisOptions := c.Caching.RedisOptions(); redisOptions != nil {
		if err := cache.UseRedisCache(redisOptions); err != nil {
			return errors.WithMessage(err, "could not init redis cache")
		}
	}
	var err error
	backs, err = storage.LoadStorageBackends(c.StorageConfig())
	if err != nil {
		return err
	}
	conf := c.RegistrarConfig()
	conf.AdminAPI = nil
	conf.AccessLog = io.Discard
	reg, err = registrar.New(c.Server, conf, backs)
	return err
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return errors.WithStack(enc.Encode(v))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "the config file to use")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.AddCommand(rulesCmd(), entitiesCmd(), keysCmd(), statementsCmd(), usersCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
