// Package alert delivers relevant items to their consumers. Sinks are
// fire-and-forget; a slow or full consumer never stalls a cycle.
package alert

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/launchradar/launchradar/internal/domain"
)

// LogSink writes each alert as one structured log line.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink on the global logger.
func NewLogSink() *LogSink {
	return &LogSink{logger: log.Logger}
}

// Emit logs the alert with its score breakdown summary.
func (s *LogSink) Emit(_ context.Context, item domain.ScoredItem) {
	s.logger.Info().
		Str("source", item.Item.SourceID).
		Str("url", item.Item.URL).
		Str("title", item.Item.Title).
		Float64("confidence", item.Confidence).
		Float64("threshold", item.Threshold).
		Strs("entities", item.MatchedEntities).
		Msg("launch mention")
}

// ChannelSink hands alerts to an in-process consumer. Emit drops when the
// buffer is full rather than block the cycle.
type ChannelSink struct {
	ch chan domain.ScoredItem
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan domain.ScoredItem, buffer)}
}

// Emit enqueues the alert, dropping it when the consumer is behind.
func (s *ChannelSink) Emit(_ context.Context, item domain.ScoredItem) {
	select {
	case s.ch <- item:
	default:
		log.Warn().Str("url", item.Item.URL).Msg("alert dropped, consumer behind")
	}
}

// Alerts exposes the consumer side of the channel.
func (s *ChannelSink) Alerts() <-chan domain.ScoredItem {
	return s.ch
}

// Fanout delivers each alert to every wrapped sink in order.
type Fanout struct {
	sinks []Sink
}

// Sink is the delivery surface shared by all alert sinks.
type Sink interface {
	Emit(ctx context.Context, item domain.ScoredItem)
}

// NewFanout wraps the given sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Emit forwards the alert to every sink.
func (f *Fanout) Emit(ctx context.Context, item domain.ScoredItem) {
	for _, sink := range f.sinks {
		sink.Emit(ctx, item)
	}
}
