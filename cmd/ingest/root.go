package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"omnichannel-support/internal/bus"
	"omnichannel-support/internal/config"
)

var rootCmd = &cobra.Command{
	Use:          "ingest",
	Short:        "Publish customer messages to the support pipeline",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(serveCmd)
}

// newPublisher loads config and connects a publisher to the brokers.
func newPublisher() (*config.Config, *bus.KafkaPublisher, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	transport, err := bus.NewTransport(bus.SecurityFromConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("kafka transport: %w", err)
	}
	pub, err := bus.NewKafkaPublisher(cfg.BrokerList(), transport)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("ingest: publishing to %s on %v", cfg.TopicIncoming, cfg.BrokerList())
	return cfg, pub, nil
}
