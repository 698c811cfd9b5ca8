package clmm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Seeds used to derive the deterministic addresses of a pool's records.
const (
	seedPool      = "pool"
	seedAuthority = "authority"
	seedVault     = "vault_token"
	seedLPMint    = "lp_mint"
)

// PoolAddresses holds the derived addresses owned by one pool.
type PoolAddresses struct {
	Pool      common.Address
	Authority common.Address
	VaultA    common.Address
	VaultB    common.Address
	LPMint    common.Address
}

// DerivePoolAddresses derives every pool-owned address from the mint pair.
func DerivePoolAddresses(mintA, mintB common.Address) PoolAddresses {
	return PoolAddresses{
		Pool:      derive(seedPool, mintA.Bytes(), mintB.Bytes()),
		Authority: derive(seedAuthority, mintA.Bytes(), mintB.Bytes()),
		VaultA:    derive(seedVault, mintA.Bytes(), mintB.Bytes(), []byte("A")),
		VaultB:    derive(seedVault, mintA.Bytes(), mintB.Bytes(), []byte("B")),
		LPMint:    derive(seedLPMint, mintA.Bytes(), mintB.Bytes()),
	}
}

func derive(seed string, parts ...[]byte) common.Address {
	data := make([][]byte, 0, len(parts)+1)
	data = append(data, []byte(seed))
	data = append(data, parts...)
	return common.BytesToAddress(crypto.Keccak256(data...)[12:])
}
