package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockForwarder implements Forwarder for tests.
type mockForwarder struct {
	mu      sync.Mutex
	records []Record
	err     error
	delay   time.Duration
	ctxErrs []error
}

func (m *mockForwarder) Forward(ctx context.Context, rec Record) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	return m.err
}

func (m *mockForwarder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestForwardAsync_NilForwarder(t *testing.T) {
	// Should not panic
	ForwardAsync(nil, Record{Topic: "fte.metrics"})
}

func TestForwardAsync_Forwards(t *testing.T) {
	f := &mockForwarder{}
	ForwardAsync(f, Record{Topic: "fte.metrics", Key: "conv-1", Payload: []byte(`{}`)})

	waitFor(t, func() bool { return f.count() == 1 })
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records[0].Topic != "fte.metrics" || f.records[0].Key != "conv-1" {
		t.Errorf("record = %+v", f.records[0])
	}
	if f.ctxErrs[0] != nil {
		t.Errorf("forward context already done: %v", f.ctxErrs[0])
	}
}

func TestForwardAsync_ErrorDoesNotReachCaller(t *testing.T) {
	f := &mockForwarder{err: errors.New("loki: push returned 500")}
	ForwardAsync(f, Record{Topic: "fte.dlq"})
	waitFor(t, func() bool { return f.count() == 1 })
}

func TestForwardAsync_ConcurrentAccess(t *testing.T) {
	f := &mockForwarder{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ForwardAsync(f, Record{Topic: "fte.metrics"})
		}()
	}
	wg.Wait()
	waitFor(t, func() bool { return f.count() == 10 })
}

func TestMulti_AttemptsAll(t *testing.T) {
	a := &mockForwarder{err: errors.New("first")}
	b := &mockForwarder{}
	err := Multi{a, nil, b}.Forward(context.Background(), Record{Topic: "t"})
	if err == nil || err.Error() != "first" {
		t.Errorf("err = %v, want first", err)
	}
	if a.count() != 1 || b.count() != 1 {
		t.Errorf("counts = %d, %d; want 1, 1", a.count(), b.count())
	}
}

func TestShutdownDrainCoversForwardTimeout(t *testing.T) {
	if ShutdownDrainDuration < forwardTimeout {
		t.Errorf("ShutdownDrainDuration = %v, want >= %v", ShutdownDrainDuration, forwardTimeout)
	}
}
