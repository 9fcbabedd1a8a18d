package events

import (
	"log/slog"
	"strings"
)

// LoggingObserver logs all events for debugging purposes.
type LoggingObserver struct {
	name    string
	verbose bool
	logger  *slog.Logger
}

// NewLoggingObserver creates a new observer that logs events at debug level.
// When verbose is set the payload is logged too.
func NewLoggingObserver(logger *slog.Logger, verbose bool) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{
		name:    "LoggingObserver",
		verbose: verbose,
		logger:  logger,
	}
}

// OnEvent logs the event details.
func (o *LoggingObserver) OnEvent(event Event) error {
	if o.verbose {
		o.logger.Debug("event", "type", event.Type, "payload", event.Payload)
	} else {
		o.logger.Debug("event", "type", event.Type)
	}
	return nil
}

// GetName returns the observer's name.
func (o *LoggingObserver) GetName() string {
	return o.name
}

// ShouldHandle returns true for all events (logs everything).
func (o *LoggingObserver) ShouldHandle(eventType string) bool {
	return true
}

// FuncObserver adapts a function to the Observer interface. Prefixes limits
// it to event types starting with one of them; no prefixes means everything.
type FuncObserver struct {
	Name     string
	Prefixes []string
	Fn       func(Event) error
}

// OnEvent calls Fn.
func (o *FuncObserver) OnEvent(event Event) error {
	return o.Fn(event)
}

// GetName returns the observer's name.
func (o *FuncObserver) GetName() string {
	return o.Name
}

// ShouldHandle matches eventType against Prefixes.
func (o *FuncObserver) ShouldHandle(eventType string) bool {
	if len(o.Prefixes) == 0 {
		return true
	}
	for _, p := range o.Prefixes {
		if strings.HasPrefix(eventType, p) {
			return true
		}
	}
	return false
}
