// Package worker runs one sink consumer: config, OTel providers, database, forwarders and the
// consumer-group loop, with graceful shutdown on SIGINT/SIGTERM.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"omnichannel-support/internal/bus"
	"omnichannel-support/internal/config"
	"omnichannel-support/internal/db"
	"omnichannel-support/internal/telemetry"
	"omnichannel-support/internal/telemetry/loki"
	otelsetup "omnichannel-support/internal/telemetry/otel"
)

// Definition describes one sink binary.
type Definition struct {
	// Name prefixes log lines and is the default group id and service name.
	Name string
	// Topic picks the consumed topic from config.
	Topic func(cfg *config.Config) string
	// Handler builds the bus handler from the pool and the forwarder (nil when none is configured).
	Handler func(conn *sql.DB, f telemetry.Forwarder) bus.Handler
}

// Run blocks until the consumer stops.
func Run(def Definition) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New(def.Name + ": DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = def.Name
	}
	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	providers.SetGlobal()
	defer func() {
		// Let in-flight forwards finish before the log exporter shuts down.
		time.Sleep(telemetry.ShutdownDrainDuration)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("%s: otel shutdown: %v", def.Name, err)
		}
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	dialer, err := bus.NewDialer(bus.SecurityFromConfig(cfg))
	if err != nil {
		return err
	}
	topic := def.Topic(cfg)
	groupID := cfg.GroupID(def.Name)
	consumer, err := bus.NewConsumer(cfg.BrokerList(), []string{topic}, groupID, dialer)
	if err != nil {
		return err
	}
	defer consumer.Close()

	fwd := Forwarders(cfg, providers)
	log.Printf("%s: consuming from %s (group %s), forwarding=%v", def.Name, topic, groupID, fwd != nil)
	return consumer.Run(ctx, def.Handler(conn, fwd))
}

// Forwarders returns the configured forwarders: Loki when LOKI_URL is set and OTel logs when an
// OTLP endpoint is set. Nil when neither is.
func Forwarders(cfg *config.Config, providers *otelsetup.Providers) telemetry.Forwarder {
	var out telemetry.Multi
	if cfg.LokiURL != "" {
		out = append(out, loki.New(cfg.LokiURL))
	}
	if cfg.OTLPEndpoint != "" && providers != nil {
		out = append(out, otelsetup.NewEventForwarder(providers.LoggerProvider))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
