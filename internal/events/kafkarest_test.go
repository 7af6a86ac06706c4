package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bgservice/internal/config"
)

func newTestKafkaRestSink(t *testing.T, handler http.HandlerFunc) *KafkaRestSink {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	s, err := NewKafkaRestSink(config.KafkaRestConfig{Address: server.URL, Topic: "bgservice-events"}, config.SOCKSConfig{})
	if err != nil {
		t.Fatalf("failed to create KafkaRestSink: %v", err)
	}
	s.retryDelay = time.Millisecond
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKafkaRestSink_Publish_Success(t *testing.T) {
	var path, contentType string
	var body []byte

	s := newTestKafkaRestSink(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	e := &Event{Service: "sync", Kind: KindTransition, To: "running"}
	if err := s.Publish(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if path != "/topics/bgservice-events" {
		t.Errorf("unexpected path %q", path)
	}
	if contentType != "application/vnd.kafka.json.v2+json" {
		t.Errorf("unexpected Content-Type %q", contentType)
	}

	var got struct {
		Records []struct {
			Key   string `json:"key"`
			Value Event  `json:"value"`
		} `json:"records"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("body is not a records wrapper: %v", err)
	}
	if len(got.Records) != 1 || got.Records[0].Key != "sync" || got.Records[0].Value.To != "running" {
		t.Errorf("unexpected records: %+v", got.Records)
	}
}

func TestKafkaRestSink_Publish_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	s := newTestKafkaRestSink(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := s.Publish(context.Background(), &Event{Service: "sync"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestKafkaRestSink_Publish_GivesUp(t *testing.T) {
	var calls atomic.Int32
	s := newTestKafkaRestSink(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	if err := s.Publish(context.Background(), &Event{Service: "sync"}); err == nil {
		t.Fatal("expected error after retries")
	}
	if calls.Load() != kafkaRestMaxRetries+1 {
		t.Errorf("expected %d attempts, got %d", kafkaRestMaxRetries+1, calls.Load())
	}
}

func TestEnsureHTTPScheme(t *testing.T) {
	tests := map[string]string{
		"10.0.0.1:8082":         "http://10.0.0.1:8082",
		"http://10.0.0.1:8082":  "http://10.0.0.1:8082",
		"https://10.0.0.1:8082": "https://10.0.0.1:8082",
	}
	for in, want := range tests {
		if got := ensureHTTPScheme(in); got != want {
			t.Errorf("ensureHTTPScheme(%q) = %q, want %q", in, got, want)
		}
	}
}
