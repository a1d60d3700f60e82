// Package loki pushes consumed pipeline events to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"omnichannel-support/internal/event"
	"omnichannel-support/internal/telemetry"
)

const (
	defaultTimeout = 5 * time.Second
	jobLabel       = "omnichannel-support"
)

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // each entry is [timestamp_ns, log_line]
}

// Label names must match [a-zA-Z_][a-zA-Z0-9_]*. Values may be any string.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// eventFields picks the low-cardinality fields of metric and dead-letter events used as labels.
type eventFields struct {
	Channel         string `json:"channel"`
	Status          string `json:"status"`
	DeliveryStatus  string `json:"delivery_status"`
	ErrorKind       string `json:"error_kind"`
	PublishedAt     string `json:"published_at"`
	OriginalMessage *struct {
		Channel string `json:"channel"`
	} `json:"original_message"`
}

// Client pushes records to one Loki instance.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client for baseURL (e.g. http://localhost:3100).
func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: defaultTimeout}}
}

// Forward implements telemetry.Forwarder. The payload is pushed verbatim as the log line.
// Unparseable payloads are pushed with the current time and only the topic label.
func (c *Client) Forward(ctx context.Context, rec telemetry.Record) error {
	labels := map[string]string{"topic": rec.Topic}
	ts := time.Now().UTC()
	var f eventFields
	if err := json.Unmarshal(rec.Payload, &f); err == nil {
		channel := f.Channel
		if channel == "" && f.OriginalMessage != nil {
			channel = f.OriginalMessage.Channel
		}
		setLabel(labels, "channel", channel)
		setLabel(labels, "status", f.Status)
		setLabel(labels, "delivery_status", f.DeliveryStatus)
		setLabel(labels, "error_kind", f.ErrorKind)
		if f.PublishedAt != "" {
			if t, err := event.ParseTimestamp(f.PublishedAt); err == nil {
				ts = t
			}
		}
	}
	return c.Push(ctx, ts, string(rec.Payload), labels)
}

func setLabel(labels map[string]string, k, v string) {
	if v != "" {
		labels[k] = v
	}
}

// Push sends a single log line. Returns an error if the request fails or Loki answers non-2xx.
func (c *Client) Push(ctx context.Context, timestamp time.Time, line string, labels map[string]string) error {
	if c.BaseURL == "" {
		return fmt.Errorf("loki: base URL is empty")
	}
	streamLabels := make(map[string]string, len(labels)+1)
	streamLabels["job"] = jobLabel
	for k, v := range labels {
		name := labelSanitize.ReplaceAllString(k, "_")
		if v = strings.TrimSpace(v); name != "" && v != "" {
			streamLabels[name] = v
		}
	}
	payload, err := json.Marshal(PushRequest{
		Streams: []Stream{{
			Stream: streamLabels,
			Values: [][]string{{strconv.FormatInt(timestamp.UnixNano(), 10), line}},
		}},
	})
	if err != nil {
		return err
	}
	url := strings.TrimSuffix(c.BaseURL, "/") + "/loki/api/v1/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}
