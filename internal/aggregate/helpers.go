package aggregate

import (
	"fmt"
	"math/big"
	"strings"

	"liquidityEngine/internal/dex"
)

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}

func absAdd(target *big.Int, value *big.Int) {
	if value == nil || target == nil {
		return
	}
	abs := new(big.Int).Abs(value)
	target.Add(target, abs)
}

// q96ToQ64 reports chain prices in the engine's Q64.64 format.
func q96ToQ64(sqrtX96 *big.Int) string {
	return dex.SqrtPriceX96ToQ64(sqrtX96).String()
}
