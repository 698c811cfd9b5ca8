package model

// Pool is the persisted snapshot of one engine pool.
type Pool struct {
	Address         string `json:"address"`
	MintA           string `json:"mint_a"`
	MintB           string `json:"mint_b"`
	VaultA          string `json:"vault_a"`
	VaultB          string `json:"vault_b"`
	LPMint          string `json:"lp_mint"`
	Authority       string `json:"authority"`
	SqrtPrice       string `json:"sqrt_price"`
	CurrentTick     int32  `json:"current_tick"`
	ActiveLiquidity string `json:"active_liquidity"`
	TotalLPIssued   uint64 `json:"total_lp_issued"`
	TickSpacing     uint16 `json:"tick_spacing"`
	Ticks           []Tick `json:"ticks"`
}

// Tick is one initialized tick of a pool.
type Tick struct {
	Index        int32  `json:"index"`
	SqrtPrice    string `json:"sqrt_price"`
	LiquidityNet string `json:"liquidity_net"`
}
