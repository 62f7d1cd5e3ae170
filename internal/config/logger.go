package config

import (
	"io"
	"strings"

	"code.cloudfoundry.org/lager/v3"
	"github.com/pkg/errors"
)

var logLevels = map[string]lager.LogLevel{
	"DEBUG": lager.DEBUG,
	"INFO":  lager.INFO,
	"ERROR": lager.ERROR,
	"FATAL": lager.FATAL,
}

func NewLogger(component, level string, w io.Writer) (lager.Logger, error) {
	lagerLevel, ok := logLevels[strings.ToUpper(level)]
	if !ok {
		return nil, errors.Errorf("invalid log level: %s", level)
	}

	logger := lager.NewLogger(component)
	logger.RegisterSink(lager.NewWriterSink(w, lagerLevel))
	return logger, nil
}
