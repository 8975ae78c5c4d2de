/**
 * @description
 * This file defines the event sink the issuer emits its audit trail through.
 * The issuer only depends on this narrow interface; the daemon composes the
 * concrete sinks (Postgres repository, RabbitMQ producer) at bootstrap.
 */

package app

import (
	"context"
	"log"

	"github.com/tari-project/stable-coin/internal/domain"
)

// EventSink receives every audit event the issuer emits.
type EventSink interface {
	Publish(ctx context.Context, event domain.Event) error
}

// LogSink writes events to the process log. It is the sink of last resort and
// is also composed in front of the durable sinks so every event is greppable.
type LogSink struct{}

// Publish logs the event in logfmt style.
func (LogSink) Publish(_ context.Context, event domain.Event) error {
	log.Printf("level=info component=issuer msg=\"event emitted\" event=%s fields=%v", event.Name, event.Fields)
	return nil
}

// MultiSink fans one event out to every configured sink. A failing sink is
// logged and does not fail the emitting call; the in-memory ledger remains the
// source of truth.
type MultiSink struct {
	Sinks []EventSink
}

// Publish delivers the event to each sink in order.
func (m MultiSink) Publish(ctx context.Context, event domain.Event) error {
	for _, sink := range m.Sinks {
		if err := sink.Publish(ctx, event); err != nil {
			log.Printf("level=warn component=issuer msg=\"event sink failed\" event=%s err=%v", event.Name, err)
		}
	}
	return nil
}
