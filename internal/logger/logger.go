// Package logger sets up the internal and access logs.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	internalLogFile = "registrar.log"
	accessLogFile   = "access.log"
)

// Conf configures a log output. Without a dir the log goes to stderr.
type Conf struct {
	Dir    string `yaml:"dir"`
	StdErr bool   `yaml:"stderr"`
}

func openLogFile(dir, name string) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o640)
	return f, errors.WithStack(err)
}

// output returns the writer for the passed Conf
func output(conf Conf, name string) (io.Writer, error) {
	if conf.Dir == "" {
		return os.Stderr, nil
	}
	f, err := openLogFile(conf.Dir, name)
	if err != nil {
		return nil, err
	}
	if conf.StdErr {
		return io.MultiWriter(f, os.Stderr), nil
	}
	return f, nil
}

// Init configures the logrus standard logger
func Init(conf Conf, level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.WithStack(err)
	}
	out, err := output(conf, internalLogFile)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	log.SetOutput(out)
	log.SetFormatter(
		&log.TextFormatter{
			FullTimestamp: true,
		},
	)
	log.SetReportCaller(lvl >= log.DebugLevel)
	return nil
}

// AccessLogWriter returns the writer for the http access log
func AccessLogWriter(conf Conf) (io.Writer, error) {
	return output(conf, accessLogFile)
}
