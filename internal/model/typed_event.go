package model

import "encoding/json"

// Event sources.
const (
	SourceEngine = "engine"
	SourceV3     = "v3"
)

// TypedEvent is a decoded pool event enriched with metadata.
type TypedEvent struct {
	ChainID     uint64      `json:"chain_id"`
	BlockNumber uint64      `json:"block_number"`
	TxHash      string      `json:"tx_hash"`
	LogIndex    uint64      `json:"log_index"`
	Address     string      `json:"address"`
	Source      string      `json:"source"`
	EventName   string      `json:"event_name"`
	Timestamp   uint64      `json:"timestamp"`
	Decoded     interface{} `json:"decoded"`
	PoolMeta    PoolMeta    `json:"pool_meta"`
	Raw         *RawLogRef  `json:"raw,omitempty"`
}

// TypedEventRecord is TypedEvent as read back from JSONL; Decoded is left raw
// until the consumer knows which payload to expect.
type TypedEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	Source      string          `json:"source"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
	PoolMeta    PoolMeta        `json:"pool_meta"`
	Raw         *RawLogRef      `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}

// DecodeError records a decode failure for a log line.
type DecodeError struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Error       string `json:"error"`
}
