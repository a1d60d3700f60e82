package telemetry

import (
	"context"
	"log"
	"time"
)

// forwardTimeout bounds a single async forward. ShutdownDrainDuration derives from it.
const forwardTimeout = 5 * time.Second

// ShutdownDrainDuration is how long a worker waits after its consumer stops before shutting down
// OTel providers, so in-flight forwards can finish. Must be >= forwardTimeout.
const ShutdownDrainDuration = forwardTimeout

// ForwardAsync runs Forward in a goroutine so the consumer loop is not blocked.
// f may be nil; ForwardAsync then returns without starting a goroutine.
// The goroutine uses context.Background() so consumer shutdown does not abort an in-flight forward.
func ForwardAsync(f Forwarder, rec Record) {
	if f == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
		defer cancel()
		if err := f.Forward(ctx, rec); err != nil {
			log.Printf("telemetry: forward %s failed: %v", rec.Topic, err)
		}
	}()
}
