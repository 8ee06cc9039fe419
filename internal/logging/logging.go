// SPDX-License-Identifier: EPL-2.0

// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Setup applies level ("debug", "info", ...) and format ("text" or "json")
// to the standard logger and directs it to out.
func Setup(level, format string, out io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to set log level: %w", err)
	}

	var f logrus.Formatter
	switch format {
	case "", "text":
		f = &logrus.TextFormatter{FullTimestamp: true}
	case "json":
		f = &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	logrus.SetLevel(lvl)
	logrus.SetFormatter(f)
	logrus.SetOutput(out)

	return nil
}
