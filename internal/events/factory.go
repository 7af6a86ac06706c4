package events

import (
	"fmt"
	"strings"

	"bgservice/internal/config"
	"bgservice/internal/logger"
)

// NewSink creates the Sink selected by cfg.SinkType.
func NewSink(cfg *config.Config) (Sink, error) {
	log := logger.WithComponent("sink-factory")

	sinkType := strings.ToLower(cfg.SinkType)
	if sinkType == "" {
		sinkType = config.SinkFile
	}
	log.Info().Str("sink_type", sinkType).Msg("Creating event sink")

	switch sinkType {
	case config.SinkFile:
		return NewFileSink(cfg.File)
	case config.SinkKafka:
		return NewKafkaSink(cfg.Kafka, cfg.SOCKSProxy)
	case config.SinkKafkaRest:
		return NewKafkaRestSink(cfg.KafkaRest, cfg.SOCKSProxy)
	case config.SinkRedis:
		return NewRedisSink(cfg.Redis, cfg.SOCKSProxy)
	case config.SinkNone:
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown sink type: %s (supported: file, kafka, kafkarest, redis, none)", sinkType)
	}
}
