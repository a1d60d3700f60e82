package bus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// EnsureTopics creates the given topics through the cluster controller. Existing topics are left alone.
// Intended for local setups; production clusters provision topics out of band.
func EnsureTopics(ctx context.Context, dialer *kafka.Dialer, broker string, partitions, replication int, topics ...string) error {
	if dialer == nil {
		dialer = &kafka.Dialer{Timeout: dialTimeout, DualStack: true}
	}
	conn, err := dialer.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("bus: dial %s: %w", broker, err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("bus: find controller: %w", err)
	}
	ctrl, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("bus: dial controller: %w", err)
	}
	defer ctrl.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, t := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             t,
			NumPartitions:     partitions,
			ReplicationFactor: replication,
		})
	}
	if err := ctrl.CreateTopics(configs...); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("bus: create topics: %w", err)
	}
	return nil
}
