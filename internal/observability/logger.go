// Package observability sets up the process logger and trace export.
package observability

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	ServiceName    = "billdesk"
	ServiceVersion = "0.1.0"
)

// NewLogger returns a development console logger when dev is true and a JSON
// production logger otherwise. Every entry carries the service name.
func NewLogger(dev bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger.With(zap.String("service.name", ServiceName)), nil
}
