package model

import "time"

// PoolWindowMetrics stores aggregated activity for one pool window.
type PoolWindowMetrics struct {
	ChainID        uint64
	PoolAddress    string
	Source         string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	VolumeA        string
	VolumeB        string
	TicksCrossed   uint64
	LiquidityAdds  uint64
	Withdrawals    uint64
	OpenSqrtPrice  *string
	CloseSqrtPrice *string
	OpenTick       *int32
	CloseTick      *int32
	ReserveA       *string
	ReserveB       *string
}
