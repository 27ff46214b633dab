package transport

import (
	"encoding/json"

	applog "audiomap/internal/log"
)

// LoggingTransport writes every message to the debug log.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("transport: using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs a one-line summary of data. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	if m, ok := data.(Message); ok {
		devices := 0
		if m.Snapshot != nil {
			devices = len(m.Snapshot.Devices)
		}
		attrs := []any{"type", m.Type, "generation", m.Generation, "devices", devices}
		if m.Error != "" {
			attrs = append(attrs, "error", m.Error)
		}
		applog.Logger().Debug("transport: message", attrs...)
		return nil
	}

	b, err := json.Marshal(data)
	if err != nil {
		applog.Debugf("transport: %T: %+v (marshal error: %v)", data, data, err)
		return nil
	}
	applog.Debugf("transport: %s", b)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
