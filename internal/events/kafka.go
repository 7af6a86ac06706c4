package events

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"hash"
	"os"
	"strings"
	"sync"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"

	"bgservice/internal/config"
	"bgservice/internal/logger"
	"bgservice/internal/network"
)

var (
	// SHA256 hash generator for SCRAM-SHA-256
	SHA256 scram.HashGeneratorFcn = func() hash.Hash { return sha256.New() }
	// SHA512 hash generator for SCRAM-SHA-512
	SHA512 scram.HashGeneratorFcn = func() hash.Hash { return sha512.New() }
)

// scramClient implements sarama.SCRAMClient on top of xdg-go/scram.
type scramClient struct {
	*scram.Client
	*scram.ClientConversation
	hashGen scram.HashGeneratorFcn
}

func (x *scramClient) Begin(userName, password, authzID string) (err error) {
	x.Client, err = x.hashGen.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	x.ClientConversation = x.Client.NewConversation()
	return nil
}

func (x *scramClient) Step(challenge string) (string, error) {
	return x.ClientConversation.Step(challenge)
}

func (x *scramClient) Done() bool {
	return x.ClientConversation.Done()
}

// KafkaSink produces events to a Kafka topic, keyed by service name.
type KafkaSink struct {
	producer sarama.AsyncProducer
	topic    string
	mu       sync.RWMutex
	closed   bool
	errDone  chan struct{}
}

// NewKafkaSink creates an async producer from cfg, optionally through the SOCKS5 proxy.
func NewKafkaSink(cfg config.KafkaConfig, socksCfg config.SOCKSConfig) (*KafkaSink, error) {
	sc, err := saramaConfig(cfg, socksCfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return newKafkaSink(producer, cfg.Topic), nil
}

func newKafkaSink(producer sarama.AsyncProducer, topic string) *KafkaSink {
	s := &KafkaSink{
		producer: producer,
		topic:    topic,
		errDone:  make(chan struct{}),
	}
	go s.handleErrors()
	return s
}

func saramaConfig(cfg config.KafkaConfig, socksCfg config.SOCKSConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()

	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true
	sc.Producer.Retry.Max = cfg.MaxRetries
	sc.Producer.Retry.Backoff = cfg.RetryBackoff
	sc.Producer.Flush.Frequency = cfg.FlushFrequency
	sc.Producer.Flush.Messages = cfg.FlushMessages

	switch strings.ToLower(cfg.Compression) {
	case "none":
		sc.Producer.Compression = sarama.CompressionNone
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		sc.Producer.Compression = sarama.CompressionZSTD
	default:
		sc.Producer.Compression = sarama.CompressionSnappy
	}

	switch cfg.RequiredAcks {
	case 0:
		sc.Producer.RequiredAcks = sarama.NoResponse
	case -1:
		sc.Producer.RequiredAcks = sarama.WaitForAll
	default:
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	}

	if cfg.Timeout > 0 {
		sc.Net.DialTimeout = cfg.Timeout
		sc.Net.ReadTimeout = cfg.Timeout
		sc.Net.WriteTimeout = cfg.Timeout
	}

	if cfg.EnableTLS {
		tlsConfig, err := createTLSConfig(cfg.TLSCertFile, cfg.TLSKeyFile, cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tlsConfig
	}

	if cfg.SASLEnabled {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User = cfg.SASLUser
		sc.Net.SASL.Password = cfg.SASLPassword

		switch strings.ToUpper(cfg.SASLMechanism) {
		case "SCRAM-SHA-256":
			sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{hashGen: SHA256}
			}
		case "SCRAM-SHA-512":
			sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{hashGen: SHA512}
			}
		default:
			sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		}
	}

	if network.Enabled(socksCfg) {
		dialer, err := network.NewSOCKS5Dialer(socksCfg)
		if err != nil {
			return nil, err
		}
		sc.Net.Proxy.Enable = true
		sc.Net.Proxy.Dialer = dialer
	}

	return sc, nil
}

// Publish queues e on the producer. Delivery errors are logged asynchronously.
func (s *KafkaSink) Publish(ctx context.Context, e *Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic:     s.topic,
		Key:       sarama.StringEncoder(e.Service),
		Value:     sarama.ByteEncoder(value),
		Timestamp: e.Timestamp,
	}

	select {
	case s.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes and closes the producer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.producer.Close()
	<-s.errDone
	return err
}

func (s *KafkaSink) handleErrors() {
	defer close(s.errDone)
	log := logger.WithComponent("kafka-sink")
	for err := range s.producer.Errors() {
		log.Error().Err(err.Err).
			Str("topic", err.Msg.Topic).
			Interface("key", err.Msg.Key).
			Msg("Failed to send event to Kafka")
	}
}

func createTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}
