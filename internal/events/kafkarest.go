package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"bgservice/internal/config"
	"bgservice/internal/logger"
	"bgservice/internal/network"
)

const (
	kafkaRestContentType = "application/vnd.kafka.json.v2+json"
	kafkaRestMaxRetries  = 2
	kafkaRestRetryDelay  = 500 * time.Millisecond
)

type kafkaRestRecord struct {
	Key   string `json:"key"`
	Value *Event `json:"value"`
}

type kafkaRestBody struct {
	Records []kafkaRestRecord `json:"records"`
}

// KafkaRestSink posts events to a topic through the KafkaRest HTTP proxy.
type KafkaRestSink struct {
	client     *http.Client
	url        string
	retryDelay time.Duration
	mu         sync.RWMutex
	closed     bool
}

// NewKafkaRestSink creates a KafkaRest HTTP sink.
func NewKafkaRestSink(cfg config.KafkaRestConfig, socksCfg config.SOCKSConfig) (*KafkaRestSink, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("kafkarest sink requires Address")
	}

	transport := &http.Transport{}
	dial, err := network.DialContextFunc(socksCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer for KafkaRest: %w", err)
	}
	if dial != nil {
		transport.DialContext = dial
	}

	return &KafkaRestSink{
		client: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		},
		url:        fmt.Sprintf("%s/topics/%s", ensureHTTPScheme(cfg.Address), cfg.Topic),
		retryDelay: kafkaRestRetryDelay,
	}, nil
}

// Publish posts e, retrying failed requests.
func (s *KafkaRestSink) Publish(ctx context.Context, e *Event) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSinkClosed
	}

	body, err := json.Marshal(kafkaRestBody{Records: []kafkaRestRecord{{Key: e.Service, Value: e}}})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	log := logger.WithComponent("kafkarest-sink")
	var lastErr error
	for attempt := 0; attempt <= kafkaRestMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}

		lastErr = s.doPost(ctx, body)
		if lastErr == nil {
			return nil
		}
		log.Warn().
			Err(lastErr).
			Int("attempt", attempt+1).
			Msg("KafkaRest publish failed, retrying")
	}

	return fmt.Errorf("KafkaRest publish failed after %d retries: %w", kafkaRestMaxRetries, lastErr)
}

// Close marks the sink closed.
func (s *KafkaRestSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.client.CloseIdleConnections()
	return nil
}

func (s *KafkaRestSink) doPost(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", kafkaRestContentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("KafkaRest returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func ensureHTTPScheme(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}
