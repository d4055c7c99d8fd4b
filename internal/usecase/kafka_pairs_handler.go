package usecase

import (
	"context"

	"AriaPull/internal/domain/models"
	pkgkafka "AriaPull/pkg/kafka"
	applogger "AriaPull/pkg/logger"
)

// RadarPairProcessor is the part of PairConsumer the Kafka handler drives.
type RadarPairProcessor interface {
	Process(ctx context.Context, pair *models.RadarPair) error
	Fail(pair *models.RadarPair, cause error) error
}

// KafkaPairsHandler feeds track pairs from Kafka into the pair pipeline.
// Every failure has already been counted by the pipeline, so it is returned
// as permanent and the consumer moves on without retrying.
type KafkaPairsHandler struct {
	topic string
	pairs RadarPairProcessor
	log   *applogger.Logger
}

func NewKafkaPairsHandler(topic string, pairs RadarPairProcessor, log *applogger.Logger) *KafkaPairsHandler {
	if log == nil {
		log = applogger.Nop()
	}
	return &KafkaPairsHandler{topic: topic, pairs: pairs, log: log}
}

func (h *KafkaPairsHandler) Topic() string { return h.topic }

func (h *KafkaPairsHandler) Handle(ctx context.Context, b []byte) error {
	pair, err := DecodePair(b)
	if err != nil {
		return pkgkafka.Permanent(h.pairs.Fail(nil, err))
	}
	if err := h.pairs.Process(ctx, pair); err != nil {
		return pkgkafka.Permanent(err)
	}
	h.log.Debug("track pair processed",
		applogger.String("pair", pair.Key()),
		applogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaPairsHandler)(nil)
