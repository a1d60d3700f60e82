// metrics-sink consumes the metrics topic and appends each event to agent_metrics.
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
		Name:  "support-metrics-sink",
		Topic: func(cfg *config.Config) string { return cfg.TopicMetrics },
		Handler: func(conn *sql.DB, f telemetry.Forwarder) bus.Handler {
			return sink.NewMetrics(sink.NewPostgresStore(conn), f).Handle
		},
	})
	if err != nil {
		log.Fatalf("metrics-sink: %v", err)
	}
}
