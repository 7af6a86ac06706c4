package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"bgservice/internal/config"
	"bgservice/internal/network"
)

// StateKey returns the key holding the last known state of service.
func StateKey(service string) string {
	return "BGSERVICE_STATE:" + service
}

// EventChannel returns the pub/sub channel events for service are published on.
func EventChannel(service string) string {
	return fmt.Sprintf("bgservice:%s:events", service)
}

// RedisSink records the current state under StateKey and publishes each
// event on EventChannel.
type RedisSink struct {
	client *redis.Client
	mu     sync.RWMutex
	closed bool
}

// NewRedisSink creates a client for cfg, optionally through the SOCKS5 proxy.
func NewRedisSink(cfg config.RedisConfig, socksCfg config.SOCKSConfig) (*RedisSink, error) {
	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	dial, err := network.DialContextFunc(socksCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer for Redis: %w", err)
	}
	if dial != nil {
		opts.Dialer = dial
	}
	return &RedisSink{client: redis.NewClient(opts)}, nil
}

// Publish writes the state and publishes e in one transaction.
func (s *RedisSink) Publish(ctx context.Context, e *Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, StateKey(e.Service), e.To, 0)
		pipe.Publish(ctx, EventChannel(e.Service), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("Redis publish for %s failed: %w", e.Service, err)
	}
	return nil
}

// Close closes the client.
func (s *RedisSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
