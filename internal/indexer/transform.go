package indexer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidityEngine/internal/model"
)

// toRecords converts one batch of logs into records in chain order. Removed
// logs and logs already seen by this runner are dropped.
func (r *Runner) toRecords(ctx context.Context, chainID uint64, logs []types.Log) ([]model.LogRecord, error) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	ingestedAt := time.Now().UTC().Format(time.RFC3339Nano)
	records := make([]model.LogRecord, 0, len(logs))
	for _, log := range logs {
		if log.Removed || r.isDuplicate(log) {
			continue
		}
		ts, err := withRetry(ctx, r, "block timestamp", func(ctx context.Context) (uint64, error) {
			return r.chain.BlockTimestamp(ctx, log.BlockNumber)
		})
		if err != nil {
			return nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
		}

		topics := make([]string, len(log.Topics))
		for i, topic := range log.Topics {
			topics[i] = topic.Hex()
		}
		records = append(records, model.LogRecord{
			ChainID:     chainID,
			BlockNumber: log.BlockNumber,
			BlockHash:   log.BlockHash.Hex(),
			TxHash:      log.TxHash.Hex(),
			TxIndex:     uint64(log.TxIndex),
			LogIndex:    uint64(log.Index),
			Address:     log.Address.Hex(),
			Topics:      topics,
			Data:        hexutil.Encode(log.Data),
			Timestamp:   ts,
			IngestedAt:  ingestedAt,
		})
	}
	return records, nil
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
