package model

// PoolMeta is the pool context attached to every typed event.
type PoolMeta struct {
	MintA       string `json:"mint_a"`
	MintB       string `json:"mint_b"`
	TickSpacing int32  `json:"tick_spacing"`
	// Fee is the fee tier of a mirrored chain pool; engine pools charge none.
	Fee       uint32     `json:"fee,omitempty"`
	Liquidity string     `json:"liquidity,omitempty"`
	State     *PoolState `json:"state,omitempty"`
}

// PoolState is a point-in-time price of a pool.
type PoolState struct {
	SqrtPrice string `json:"sqrt_price"`
	Tick      int32  `json:"tick"`
}
