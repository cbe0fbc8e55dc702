// Package logging configures the logrus logger shared by the services.
package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// New returns a JSON logger at the given level, tagged with the service name.
// Unknown levels fall back to info.
func New(service, level string) *log.Entry {
	logger := log.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&log.JSONFormatter{})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)

	entry := logger.WithField("service", service)
	if err != nil {
		entry.WithField("level", level).Warn("Unknown log level, using info")
	}
	return entry
}
