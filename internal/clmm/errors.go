package clmm

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error namespace for engine errors.
const Codespace = "clmm"

// Input validation.
var (
	ErrZeroAmount         = errorsmod.Register(Codespace, 1, "quantity must be greater than zero")
	ErrTickMismatch       = errorsmod.Register(Codespace, 2, "upper tick must be greater than lower tick")
	ErrUnalignedTick      = errorsmod.Register(Codespace, 3, "tick must be aligned with tick spacing")
	ErrInvalidTokenMint   = errorsmod.Register(Codespace, 4, "wrong token mint")
	ErrInvalidTickIndex   = errorsmod.Register(Codespace, 5, "tick index does not match")
	ErrQuantityMismatch   = errorsmod.Register(Codespace, 6, "max quantity must be greater than or equal to min quantity")
	ErrSameTokenMint      = errorsmod.Register(Codespace, 7, "token A and token B must be different")
	ErrInvalidTickSpacing = errorsmod.Register(Codespace, 8, "tick spacing must be positive")
)

// Arithmetic safety.
var (
	ErrArithmeticOverflow = errorsmod.Register(Codespace, 20, "arithmetic overflow or division by zero")
	ErrAmountTooLarge     = errorsmod.Register(Codespace, 21, "amount too large")
)

// Economic policy.
var (
	ErrSlippageExceeded        = errorsmod.Register(Codespace, 30, "slippage exceeded the minimum quantity")
	ErrZeroSwapOutput          = errorsmod.Register(Codespace, 31, "swap produced no output")
	ErrPoolEmpty               = errorsmod.Register(Codespace, 32, "liquidity pool is empty")
	ErrInsufficientLPTokens    = errorsmod.Register(Codespace, 33, "insufficient liquidity shares to redeem")
	ErrInsufficientFundsInPool = errorsmod.Register(Codespace, 34, "insufficient funds in pool")
)

// Structural.
var (
	ErrMissingTickAccounts = errorsmod.Register(Codespace, 40, "missing tick boundaries")
	ErrInvalidVault        = errorsmod.Register(Codespace, 41, "invalid vault account")
	ErrPoolNotFound        = errorsmod.Register(Codespace, 42, "pool not found")
	ErrPoolExists          = errorsmod.Register(Codespace, 43, "pool already exists")
)

func overflow(op string) error {
	return ErrArithmeticOverflow.Wrap(op)
}
