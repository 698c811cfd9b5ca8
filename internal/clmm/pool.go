package clmm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Direction is the side of a trade.
type Direction uint8

const (
	// AToB sells asset A for asset B and moves the price down.
	AToB Direction = iota
	// BToA sells asset B for asset A and moves the price up.
	BToA
)

func (d Direction) String() string {
	switch d {
	case AToB:
		return "a-to-b"
	case BToA:
		return "b-to-a"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ParseDirection accepts "a-to-b"/"atob"/"a" and "b-to-a"/"btoa"/"b".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a-to-b", "atob", "a_to_b", "a":
		return AToB, nil
	case "b-to-a", "btoa", "b_to_a", "b":
		return BToA, nil
	default:
		return 0, fmt.Errorf("unknown direction: %q", s)
	}
}

// Pool is the state of one concentrated-liquidity pool.
type Pool struct {
	Address   common.Address
	MintA     common.Address
	MintB     common.Address
	VaultA    common.Address
	VaultB    common.Address
	LPMint    common.Address
	Authority common.Address

	// SqrtPrice is sqrt(price of A in B) in Q64.64.
	SqrtPrice       *uint256.Int
	// CurrentTick is normally SqrtPriceToTick(SqrtPrice). After a downward
	// crossing at boundary b it is b-1 while SqrtPrice stays at P(b), so it
	// can sit one below the codec inverse.
	CurrentTick     int32
	ActiveLiquidity *uint256.Int
	TotalLPIssued   uint64
	TickSpacing     uint16

	Ticks *TickRegistry
}

// NewPool creates an empty pool at sqrtPrice.
func NewPool(mintA, mintB common.Address, sqrtPrice *uint256.Int, tickSpacing uint16) (*Pool, error) {
	if mintA == mintB {
		return nil, ErrSameTokenMint.Wrapf("mint %s", mintA.Hex())
	}
	if tickSpacing == 0 {
		return nil, ErrInvalidTickSpacing
	}
	if sqrtPrice == nil {
		return nil, overflow("missing sqrt price")
	}
	tick, err := SqrtPriceToTick(sqrtPrice)
	if err != nil {
		return nil, err
	}

	addrs := DerivePoolAddresses(mintA, mintB)
	return &Pool{
		Address:         addrs.Pool,
		MintA:           mintA,
		MintB:           mintB,
		VaultA:          addrs.VaultA,
		VaultB:          addrs.VaultB,
		LPMint:          addrs.LPMint,
		Authority:       addrs.Authority,
		SqrtPrice:       new(uint256.Int).Set(sqrtPrice),
		CurrentTick:     tick,
		ActiveLiquidity: new(uint256.Int),
		TickSpacing:     tickSpacing,
		Ticks:           NewTickRegistry(tickSpacing),
	}, nil
}

// NewPoolAtTick creates an empty pool priced exactly at tick.
func NewPoolAtTick(mintA, mintB common.Address, tick int32, tickSpacing uint16) (*Pool, error) {
	price, err := TickToSqrtPrice(tick)
	if err != nil {
		return nil, err
	}
	return NewPool(mintA, mintB, price, tickSpacing)
}

// InRange reports whether a [lower, upper) range contributes to active liquidity.
func (p *Pool) InRange(lower, upper int32) bool {
	return lower <= p.CurrentTick && p.CurrentTick < upper
}

// CheckMints fails with InvalidTokenMint unless the pair matches the pool.
func (p *Pool) CheckMints(mintA, mintB common.Address) error {
	if p.MintA != mintA || p.MintB != mintB {
		return ErrInvalidTokenMint.Wrapf("pool %s trades %s/%s", p.Address.Hex(), p.MintA.Hex(), p.MintB.Hex())
	}
	return nil
}

// Validate checks the pool's structural invariants.
func (p *Pool) Validate() error {
	if p.MintA == p.MintB {
		return ErrSameTokenMint
	}
	if p.TickSpacing == 0 || p.Ticks == nil || p.Ticks.Spacing() != p.TickSpacing {
		return ErrInvalidTickSpacing
	}
	addrs := DerivePoolAddresses(p.MintA, p.MintB)
	if p.VaultA != addrs.VaultA || p.VaultB != addrs.VaultB {
		return ErrInvalidVault.Wrapf("pool %s", p.Address.Hex())
	}
	if p.SqrtPrice == nil || p.ActiveLiquidity == nil || !fitsU128(p.ActiveLiquidity) {
		return overflow("pool price or liquidity")
	}

	lo, err := TickToSqrtPrice(p.CurrentTick)
	if err != nil {
		return err
	}
	if p.SqrtPrice.Lt(lo) {
		return ErrInvalidTickIndex.Wrapf("current tick %d above price", p.CurrentTick)
	}
	if p.CurrentTick < MaxTick {
		hi, err := TickToSqrtPrice(p.CurrentTick + 1)
		if err != nil {
			return err
		}
		// Equality is the resting point after a downward crossing.
		if p.SqrtPrice.Gt(hi) {
			return ErrInvalidTickIndex.Wrapf("current tick %d below price", p.CurrentTick)
		}
	}

	if p.Ticks.NetSum().Sign() != 0 {
		return ErrInvalidTickIndex.Wrap("liquidity net does not sum to zero")
	}
	if err := p.Ticks.verifyAll(); err != nil {
		return err
	}
	implied, err := p.Ticks.ActiveLiquidityAt(p.CurrentTick)
	if err != nil {
		return err
	}
	if !implied.Eq(p.ActiveLiquidity) {
		return ErrInvalidTickIndex.Wrapf("active liquidity %s, ticks imply %s", p.ActiveLiquidity.Dec(), implied.Dec())
	}
	return nil
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	out := *p
	out.SqrtPrice = new(uint256.Int).Set(p.SqrtPrice)
	out.ActiveLiquidity = new(uint256.Int).Set(p.ActiveLiquidity)
	out.Ticks = p.Ticks.clone()
	return &out
}
