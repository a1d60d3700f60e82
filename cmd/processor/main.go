// processor is the Message Processor worker: it consumes the incoming topic, answers each
// customer message and publishes metric or dead-letter events. Requires DATABASE_URL and
// KAFKA_BOOTSTRAP_SERVERS; see internal/config for the rest.
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"omnichannel-support/internal/bus"
	"omnichannel-support/internal/config"
	convrepo "omnichannel-support/internal/conversation/repository"
	custrepo "omnichannel-support/internal/customer/repository"
	"omnichannel-support/internal/db"
	"omnichannel-support/internal/knowledge"
	msgrepo "omnichannel-support/internal/message/repository"
	"omnichannel-support/internal/processor"
	"omnichannel-support/internal/resolver"
	"omnichannel-support/internal/response"
	"omnichannel-support/internal/server"
	otelsetup "omnichannel-support/internal/telemetry/otel"
	ticketrepo "omnichannel-support/internal/ticket/repository"
)

const (
	defaultGroupID     = "support-processor"
	defaultServiceName = "support-processor"
	shutdownTimeout    = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("processor: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("processor: otel shutdown: %v", err)
		}
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	rule, policy, err := newEvaluator(ctx, cfg)
	if err != nil {
		return err
	}
	instruments, err := otelsetup.NewInstruments(providers.MeterProvider.Meter("omnichannel-support/processor"))
	if err != nil {
		return err
	}

	sec := bus.SecurityFromConfig(cfg)
	transport, err := bus.NewTransport(sec)
	if err != nil {
		return err
	}
	pub, err := bus.NewKafkaPublisher(cfg.BrokerList(), transport)
	if err != nil {
		return err
	}
	defer pub.Close()
	dialer, err := bus.NewDialer(sec)
	if err != nil {
		return err
	}
	groupID := cfg.GroupID(defaultGroupID)
	consumer, err := bus.NewConsumer(cfg.BrokerList(), []string{cfg.TopicIncoming}, groupID, dialer)
	if err != nil {
		return err
	}
	defer consumer.Close()

	conversations := convrepo.NewPostgresRepository(conn)
	proc, err := processor.New(processor.Deps{
		Resolver:      resolver.New(custrepo.NewPostgresRepository(conn), conversations, resolver.WithWindow(cfg.SessionWindowDuration())),
		Tickets:       ticketrepo.NewPostgresRepository(conn),
		Messages:      msgrepo.NewPostgresRepository(conn),
		Conversations: conversations,
		Knowledge:     knowledge.NewPostgresStore(conn, knowledge.DefaultLimit),
		Engine:        response.NewEngine(gen, rule, response.WithTimeout(cfg.GenerationTimeoutDuration())),
		Dispatcher:    newDispatcher(cfg),
		Notifier:      newNotifier(cfg),
		Publisher:     pub,
		Topics:        bus.Topics{Incoming: cfg.TopicIncoming, Metrics: cfg.TopicMetrics, DeadLetter: cfg.TopicDLQ},
		Instruments:   instruments,
	})
	if err != nil {
		return err
	}

	if cfg.HealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.HealthAddr)
		if err != nil {
			return err
		}
		s := server.NewGRPCServer()
		deps := server.Deps{HealthPinger: conn}
		if policy != nil {
			deps.HealthPolicyChecker = policy
		}
		server.RegisterServices(s, deps)
		go func() {
			log.Printf("processor: gRPC health listening on %s", cfg.HealthAddr)
			if err := s.Serve(lis); err != nil {
				log.Printf("processor: health server: %v", err)
			}
		}()
		defer s.GracefulStop()
	}

	log.Printf("processor: consuming %s (group %s), generation enabled=%v", cfg.TopicIncoming, groupID, gen != nil)
	return consumer.Run(ctx, proc.Handle)
}
