// dlq-sink consumes the dead-letter topic and stores each event in dead_letters for inspection.
// Set LOKI_URL and/or OTEL_EXPORTER_OTLP_ENDPOINT to also forward events to Loki or OTel logs.
package main

import (
	"database/sql"
	"log"

	"omnichannel-support/internal/bus"
	"omnichannel-support/internal/config"
	"omnichannel-support/internal/sink"
	"omnichannel-support/internal/sink/worker"
	"omnichannel-support/internal/telemetry"
)

func main() {
	err := worker.Run(worker.Definition{
		Name:  "support-dlq-sink",
		Topic: func(cfg *config.Config) string { return cfg.TopicDLQ },
		Handler: func(conn *sql.DB, f telemetry.Forwarder) bus.Handler {
			return sink.NewDeadLetters(sink.NewPostgresStore(conn), f).Handle
		},
	})
	if err != nil {
		log.Fatalf("dlq-sink: %v", err)
	}
}
