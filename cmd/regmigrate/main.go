package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar/cmd/registrar/config"
	"github.com/go-oidfed/registrar/storage"
)

func usage() {
	_, _ = fmt.Fprintf(os.Stderr, "regmigrate: migrate a legacy registrar database to the current storage\n")
	_, _ = fmt.Fprintf(os.Stderr, "\n")
	_, _ = fmt.Fprintf(os.Stderr, "Subcommands:\n")
	_, _ = fmt.Fprintf(os.Stderr, "  db       Import signing keys, entities, and validation rules from a legacy sqlite database\n")
	_, _ = fmt.Fprintf(os.Stderr, "\n")
	_, _ = fmt.Fprintf(os.Stderr, "Use 'regmigrate <subcommand> -h' for help on a subcommand.\n")
}

func dbCmd(args []string) int {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	var (
		src     = fs.String("src", "", "Path to the legacy sqlite database file")
		conf    = fs.String("c", "", "Path to the registrar config file; its storage section is the destination")
		dryRun  = fs.Bool("dry-run", false, "Read and check the legacy data without writing to the destination")
		promote = fs.Bool("promote", false, "Make the legacy active key the active key even if the destination has one")
		v       = fs.Bool("v", false, "Verbose logging")
	)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(
			os.Stderr, "Usage: regmigrate db -src <legacy.db> [-c <config.yaml>] [-dry-run] [-promote] [-v]\n",
		)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *v {
		log.SetLevel(log.DebugLevel)
	}
	if *src == "" {
		_, _ = fmt.Fprintln(os.Stderr, "-src is required")
		fs.Usage()
		return 2
	}
	config.Load(*conf)
	storageConf := config.Get().StorageConfig()
	log.WithFields(
		log.Fields{
			"src":     *src,
			"driver":  storageConf.Driver,
			"dry-run": *dryRun,
			"promote": *promote,
		},
	).Info("migrating legacy database")

	legacy, err := openLegacyDB(*src)
	if err != nil {
		log.WithError(err).Error("failed to open legacy database")
		return 1
	}
	defer legacy.Close()
	dst, err := storage.NewStorage(storageConf)
	if err != nil {
		log.WithError(err).Error("failed to open destination storage")
		return 1
	}

	m := &migrator{
		src:     legacy,
		dst:     dst,
		dryRun:  *dryRun,
		promote: *promote,
	}
	reports, err := m.run()
	if err != nil {
		log.WithError(err).Error("legacy database migration failed")
		return 1
	}
	for _, r := range reports {
		if r.Failed > 0 {
			log.Warn("some legacy rows could not be migrated, see warnings above")
			return 3
		}
	}
	log.Info("legacy database migration completed")
	return 0
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	var code int
	switch sub {
	case "db":
		code = dbCmd(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		code = 0
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n\n", sub)
		usage()
		code = 2
	}
	os.Exit(code)
}
