package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"omnichannel-support/internal/telemetry"
)

func captureServer(t *testing.T, status int, got *PushRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %q, want /loki/api/v1/push", r.URL.Path)
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("decode push body: %v", err)
			}
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestForward_MetricEventLabels(t *testing.T) {
	var got PushRequest
	srv := captureServer(t, http.StatusNoContent, &got)
	payload := `{"conversation_id":"c","channel":"chat","status":"processed","delivery_status":"sent","published_at":"2026-03-01T10:00:00Z"}`

	err := New(srv.URL+"/").Forward(context.Background(), telemetry.Record{Topic: "fte.metrics", Payload: []byte(payload)})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(got.Streams))
	}
	s := got.Streams[0]
	want := map[string]string{"job": jobLabel, "topic": "fte.metrics", "channel": "chat", "status": "processed", "delivery_status": "sent"}
	for k, v := range want {
		if s.Stream[k] != v {
			t.Errorf("label %s = %q, want %q", k, s.Stream[k], v)
		}
	}
	wantTS := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).UnixNano()
	if len(s.Values) != 1 || s.Values[0][0] != jsonInt(wantTS) || s.Values[0][1] != payload {
		t.Errorf("values = %v", s.Values)
	}
}

func TestForward_DeadLetterUsesOriginalChannel(t *testing.T) {
	var got PushRequest
	srv := captureServer(t, http.StatusOK, &got)
	payload := `{"original_message":{"channel":"email"},"error":"boom","error_kind":"persistence","latency_ms":3}`

	if err := New(srv.URL).Forward(context.Background(), telemetry.Record{Topic: "fte.dlq", Payload: []byte(payload)}); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	s := got.Streams[0].Stream
	if s["channel"] != "email" || s["error_kind"] != "persistence" {
		t.Errorf("labels = %v", s)
	}
}

func TestForward_RawPayload(t *testing.T) {
	var got PushRequest
	srv := captureServer(t, http.StatusOK, &got)
	if err := New(srv.URL).Forward(context.Background(), telemetry.Record{Topic: "fte.dlq", Payload: []byte("not json")}); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(got.Streams[0].Stream) != 2 {
		t.Errorf("labels = %v, want job and topic only", got.Streams[0].Stream)
	}
}

func TestPush_Errors(t *testing.T) {
	if err := (&Client{}).Push(context.Background(), time.Now(), "x", nil); err == nil {
		t.Error("Push with empty base URL should fail")
	}
	srv := captureServer(t, http.StatusInternalServerError, nil)
	if err := New(srv.URL).Push(context.Background(), time.Now(), "x", map[string]string{"a": "b c"}); err == nil {
		t.Error("Push should fail on non-2xx")
	}
}

func TestPush_LabelNamesSanitizedValuesKept(t *testing.T) {
	var got PushRequest
	srv := captureServer(t, http.StatusOK, &got)
	labels := map[string]string{"delivery-status": "a b/c.d", "topic": " fte.dlq ", "empty": "  "}
	if err := New(srv.URL).Push(context.Background(), time.Now(), "x", labels); err != nil {
		t.Fatalf("Push: %v", err)
	}
	s := got.Streams[0].Stream
	if s["delivery_status"] != "a b/c.d" {
		t.Errorf("delivery_status = %q, want value unchanged", s["delivery_status"])
	}
	if s["topic"] != "fte.dlq" {
		t.Errorf("topic = %q, want fte.dlq", s["topic"])
	}
	if _, ok := s["empty"]; ok {
		t.Error("blank label values should be dropped")
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
