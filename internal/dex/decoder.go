package dex

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"liquidityEngine/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error)
}

// DecodeContext provides shared dependencies for decoders.
type DecodeContext struct {
	Context       context.Context
	Chain         Caller
	PoolMetaCache *PoolMetaCache
	Logger        *zap.Logger
	// IncludeLiveMeta attaches the chain pool's liquidity and price at the
	// log's block. It needs an archive node for old blocks.
	IncludeLiveMeta bool
}

// DecoderSet dispatches each log to the first decoder that accepts its topic0.
type DecoderSet []Decoder

func (s DecoderSet) CanDecode(topic0 string) bool {
	return s.find(topic0) != nil
}

func (s DecoderSet) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	d := s.find(log.Topic0())
	if d == nil {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topic0())
	}
	return d.Decode(log, ctx)
}

func (s DecoderSet) find(topic0 string) Decoder {
	for _, d := range s {
		if d.CanDecode(topic0) {
			return d
		}
	}
	return nil
}

func buildTypedEvent(log model.LogRecord, source, name string, decoded interface{}, meta model.PoolMeta) *model.TypedEvent {
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		Source:      source,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		PoolMeta:    meta,
		Raw:         &model.RawLogRef{Topic0: log.Topic0(), Data: log.Data},
	}
}
