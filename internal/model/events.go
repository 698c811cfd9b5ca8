package model

// Event names shared by the encoder, decoders and the aggregator.
const (
	EventPoolInitialized    = "PoolInitialized"
	EventLiquidityAdded     = "LiquidityAdded"
	EventLiquidityWithdrawn = "LiquidityWithdrawn"
	EventSwap               = "Swap"
	EventMint               = "Mint"
	EventBurn               = "Burn"
)

// Big values are carried as decimal strings so JSON consumers never lose precision.

// PoolInitializedData is emitted once per pool.
type PoolInitializedData struct {
	MintA       string `json:"mint_a"`
	MintB       string `json:"mint_b"`
	TickSpacing uint16 `json:"tick_spacing"`
	SqrtPrice   string `json:"sqrt_price"`
	Tick        int32  `json:"tick"`
}

// LiquidityEventData is the payload of LiquidityAdded and LiquidityWithdrawn.
type LiquidityEventData struct {
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Liquidity string `json:"liquidity"`
	AmountA   string `json:"amount_a"`
	AmountB   string `json:"amount_b"`
	Shares    string `json:"shares"`
	ReserveA  string `json:"reserve_a"`
	ReserveB  string `json:"reserve_b"`
}

// EngineSwapData is the payload of an engine Swap.
type EngineSwapData struct {
	Trader       string `json:"trader"`
	AToB         bool   `json:"a_to_b"`
	AmountIn     string `json:"amount_in"`
	AmountOut    string `json:"amount_out"`
	SqrtPrice    string `json:"sqrt_price"`
	Tick         int32  `json:"tick"`
	Liquidity    string `json:"liquidity"`
	TicksCrossed uint32 `json:"ticks_crossed"`
	ReserveA     string `json:"reserve_a"`
	ReserveB     string `json:"reserve_b"`
}

// SwapEventData is a decoded Uniswap-V3 style Swap.
type SwapEventData struct {
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Tick         int32  `json:"tick"`
}

// MintEventData is a decoded Uniswap-V3 style Mint.
type MintEventData struct {
	Sender    string `json:"sender"`
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// BurnEventData is a decoded Uniswap-V3 style Burn.
type BurnEventData struct {
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}
