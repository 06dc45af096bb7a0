// Package common holds small helpers shared by the routegraph commands:
// logger construction and help formatting.
package common

import (
	"io"

	"github.com/hashicorp/go-hclog"
)

// CreateLogger builds the root logger every component hangs off of.
// Components receive named sub-loggers via logger.Named.
func CreateLogger(output io.Writer, logLevel string, asJSON bool, name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Level:           hclog.LevelFromString(logLevel),
		Output:          output,
		JSONFormat:      asJSON,
		IncludeLocation: true,
	}).Named(name)
}
