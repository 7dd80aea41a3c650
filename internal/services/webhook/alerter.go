package webhook

import (
	"context"

	"go.uber.org/zap"
)

// LogAlerter writes escalations to the structured log. Deployments that
// page operators replace it behind the Alerter interface.
type LogAlerter struct {
	logger *zap.Logger
}

// NewLogAlerter creates the default alerter.
func NewLogAlerter(logger *zap.Logger) *LogAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogAlerter{logger: logger.Named("alerts")}
}

func (a *LogAlerter) Alert(_ context.Context, message string, fields map[string]interface{}) {
	zfields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zfields = append(zfields, zap.Any(k, v))
	}
	a.logger.Error(message, zfields...)
}
