package composables

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/constants"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/logging"
)

// UseLogger returns the request-scoped logger, or a discarding one outside a request.
func UseLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry); ok {
		return logger
	}
	return logging.Discard()
}

// UseRequestStart returns when the current request started.
func UseRequestStart(ctx context.Context) (time.Time, bool) {
	start, ok := ctx.Value(constants.RequestStart).(time.Time)
	return start, ok
}
