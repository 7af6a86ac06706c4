package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"bgservice/internal/config"
)

func TestKafkaSink_ProducesEventJSON(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, nil)
	producer.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Service != "sync" || e.To != "running" {
			return fmt.Errorf("unexpected event %+v", e)
		}
		return nil
	})

	s := newKafkaSink(producer, "bgservice-events")
	e := &Event{Service: "sync", Kind: KindTransition, To: "running", Timestamp: time.Now()}
	if err := s.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Publish(context.Background(), e); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("expected ErrSinkClosed, got %v", err)
	}
}

func TestKafkaSink_DeliveryErrorIsLogged(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, nil)
	producer.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	s := newKafkaSink(producer, "bgservice-events")
	if err := s.Publish(context.Background(), &Event{Service: "sync"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	// the error is consumed by the sink's error handler; Close must not hang
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestSaramaConfig(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.KafkaConfig
		check func(*sarama.Config) error
	}{
		{
			name: "compression",
			cfg:  config.KafkaConfig{Compression: "zstd"},
			check: func(sc *sarama.Config) error {
				if sc.Producer.Compression != sarama.CompressionZSTD {
					return fmt.Errorf("compression = %v", sc.Producer.Compression)
				}
				return nil
			},
		},
		{
			name: "acks all",
			cfg:  config.KafkaConfig{RequiredAcks: -1},
			check: func(sc *sarama.Config) error {
				if sc.Producer.RequiredAcks != sarama.WaitForAll {
					return fmt.Errorf("acks = %v", sc.Producer.RequiredAcks)
				}
				return nil
			},
		},
		{
			name: "scram",
			cfg:  config.KafkaConfig{SASLEnabled: true, SASLMechanism: "scram-sha-512", SASLUser: "u", SASLPassword: "p"},
			check: func(sc *sarama.Config) error {
				if sc.Net.SASL.Mechanism != sarama.SASLTypeSCRAMSHA512 || sc.Net.SASL.SCRAMClientGeneratorFunc == nil {
					return fmt.Errorf("SASL not configured for SCRAM-SHA-512")
				}
				client := sc.Net.SASL.SCRAMClientGeneratorFunc()
				if err := client.Begin("u", "p", ""); err != nil {
					return fmt.Errorf("Begin: %v", err)
				}
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := saramaConfig(tt.cfg, config.SOCKSConfig{})
			if err != nil {
				t.Fatalf("saramaConfig failed: %v", err)
			}
			if err := tt.check(sc); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestSaramaConfig_SOCKS(t *testing.T) {
	sc, err := saramaConfig(config.KafkaConfig{}, config.SOCKSConfig{Host: "127.0.0.1", Port: 1080})
	if err != nil {
		t.Fatalf("saramaConfig failed: %v", err)
	}
	if !sc.Net.Proxy.Enable || sc.Net.Proxy.Dialer == nil {
		t.Error("proxy not enabled")
	}
}

func TestSaramaConfig_BadCAFile(t *testing.T) {
	_, err := saramaConfig(config.KafkaConfig{EnableTLS: true, TLSCAFile: "/nonexistent/ca.pem"}, config.SOCKSConfig{})
	if err == nil {
		t.Fatal("expected error for missing CA file")
	}
}
