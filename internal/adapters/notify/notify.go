// Package notify delivers reconciliation events to downstream consumers.
package notify

import (
	"context"
	"log/slog"
)

// Event describes one reconciled payout
type Event struct {
	Bank           string  `json:"bank"`
	AccountID      string  `json:"account_id"`
	UserID         string  `json:"user_id,omitempty"`
	RecordID       int64   `json:"record_id"`
	BaseAmount     float64 `json:"base_amount"`
	ReceivedAmount float64 `json:"received_amount"`
	Note           string  `json:"note,omitempty"`
}

// Sink receives reconciliation events. Delivery is best-effort: a sink
// failure must never fail the run that produced the events.
type Sink interface {
	Notify(ctx context.Context, events []Event) error
	Close() error
}

// LogSink writes events to the logger. Used when no broker is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs each event
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With(slog.String("system", "notify"))}
}

// Notify logs each event at info level
func (s *LogSink) Notify(ctx context.Context, events []Event) error {
	for _, ev := range events {
		s.logger.Info("payout reconciled",
			slog.String("bank", ev.Bank),
			slog.Int64("record_id", ev.RecordID),
			slog.Float64("base_amount", ev.BaseAmount),
			slog.Float64("received_amount", ev.ReceivedAmount),
		)
	}
	return nil
}

// Close is a no-op for the log sink
func (s *LogSink) Close() error {
	return nil
}
