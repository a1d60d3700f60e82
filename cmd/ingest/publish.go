package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"omnichannel-support/internal/bus"
	"omnichannel-support/internal/event"
)

var (
	ensureTopics bool
	partitions   int
	replication  int
)

var publishCmd = &cobra.Command{
	Use:   "publish [file]",
	Short: "Validate and publish InboundMessage JSON lines (stdin when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().BoolVar(&ensureTopics, "ensure-topics", false, "Create the pipeline topics before publishing")
	publishCmd.Flags().IntVar(&partitions, "partitions", 3, "Partitions per topic when creating topics")
	publishCmd.Flags().IntVar(&replication, "replication", 1, "Replication factor when creating topics")
}

func runPublish(cmd *cobra.Command, args []string) error {
	in := io.Reader(os.Stdin)
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	cfg, pub, err := newPublisher()
	if err != nil {
		return err
	}
	defer pub.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if ensureTopics {
		dialer, err := bus.NewDialer(bus.SecurityFromConfig(cfg))
		if err != nil {
			return err
		}
		if err := bus.EnsureTopics(ctx, dialer, cfg.BrokerList()[0], partitions, replication,
			cfg.TopicIncoming, cfg.TopicMetrics, cfg.TopicDLQ); err != nil {
			return err
		}
	}

	sent, rejected, err := publishLines(ctx, in, pub, cfg.TopicIncoming)
	log.Printf("ingest: %d published, %d rejected", sent, rejected)
	if err != nil {
		return err
	}
	if rejected > 0 {
		return fmt.Errorf("%d lines rejected", rejected)
	}
	return nil
}

// publishLines publishes each non-blank line of r. Invalid lines are logged and counted; a bus
// failure stops the run.
func publishLines(ctx context.Context, r io.Reader, pub bus.Publisher, topic string) (sent, rejected int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		m, err := event.DecodeInbound([]byte(raw))
		if err != nil {
			log.Printf("ingest: line %d: %v", line, err)
			rejected++
			continue
		}
		if err := pub.Publish(ctx, topic, m); err != nil {
			return sent, rejected, fmt.Errorf("line %d: %w", line, err)
		}
		sent++
	}
	return sent, rejected, sc.Err()
}
