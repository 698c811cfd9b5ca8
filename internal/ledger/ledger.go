package ledger

import (
	"context"
	"fmt"
	"math"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
)

// Codespace is the error namespace for ledger errors.
const Codespace = "ledger"

var (
	ErrInsufficientBalance = errorsmod.Register(Codespace, 1, "insufficient balance")
	ErrInvalidInstruction  = errorsmod.Register(Codespace, 2, "invalid instruction")
	ErrBalanceOverflow     = errorsmod.Register(Codespace, 3, "balance overflow")
)

// Kind is the type of a ledger instruction.
type Kind uint8

const (
	KindTransfer Kind = iota
	KindMint
	KindBurn
)

func (k Kind) String() string {
	switch k {
	case KindTransfer:
		return "transfer"
	case KindMint:
		return "mint"
	case KindBurn:
		return "burn"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Instruction moves, creates or destroys Amount units of Mint.
type Instruction struct {
	Kind   Kind
	Mint   common.Address
	From   common.Address
	To     common.Address
	Amount uint64
}

func Transfer(mint, from, to common.Address, amount uint64) Instruction {
	return Instruction{Kind: KindTransfer, Mint: mint, From: from, To: to, Amount: amount}
}

func Mint(mint, to common.Address, amount uint64) Instruction {
	return Instruction{Kind: KindMint, Mint: mint, To: to, Amount: amount}
}

func Burn(mint, from common.Address, amount uint64) Instruction {
	return Instruction{Kind: KindBurn, Mint: mint, From: from, Amount: amount}
}

// Account identifies one balance.
type Account struct {
	Mint  common.Address
	Owner common.Address
}

// SupplyAccount holds the outstanding supply of mint. The zero owner is
// reserved for it and rejected in instructions.
func SupplyAccount(mint common.Address) Account {
	return Account{Mint: mint}
}

// Ledger is the token custody the engine moves assets through.
type Ledger interface {
	Balance(ctx context.Context, mint, owner common.Address) (uint64, error)
	Supply(ctx context.Context, mint common.Address) (uint64, error)
	// Execute applies every instruction or none of them.
	Execute(ctx context.Context, batch []Instruction) error
}

// Resolve applies batch in order on top of the balances returned by read and
// returns the final value of every account it touched. Zero-amount
// instructions are skipped.
func Resolve(batch []Instruction, read func(Account) (uint64, error)) (map[Account]uint64, error) {
	out := make(map[Account]uint64)
	get := func(acc Account) (uint64, error) {
		if v, ok := out[acc]; ok {
			return v, nil
		}
		v, err := read(acc)
		if err != nil {
			return 0, err
		}
		out[acc] = v
		return v, nil
	}
	debit := func(acc Account, amount uint64) error {
		v, err := get(acc)
		if err != nil {
			return err
		}
		if v < amount {
			return ErrInsufficientBalance.Wrapf("%s holds %d of %s, needs %d", acc.Owner.Hex(), v, acc.Mint.Hex(), amount)
		}
		out[acc] = v - amount
		return nil
	}
	credit := func(acc Account, amount uint64) error {
		v, err := get(acc)
		if err != nil {
			return err
		}
		if v > math.MaxUint64-amount {
			return ErrBalanceOverflow.Wrapf("%s of %s", acc.Owner.Hex(), acc.Mint.Hex())
		}
		out[acc] = v + amount
		return nil
	}

	for i, ins := range batch {
		if ins.Amount == 0 {
			continue
		}
		if err := validate(ins); err != nil {
			return nil, errorsmod.Wrapf(err, "instruction %d", i)
		}
		var err error
		switch ins.Kind {
		case KindTransfer:
			if err = debit(Account{ins.Mint, ins.From}, ins.Amount); err == nil {
				err = credit(Account{ins.Mint, ins.To}, ins.Amount)
			}
		case KindMint:
			if err = credit(Account{ins.Mint, ins.To}, ins.Amount); err == nil {
				err = credit(SupplyAccount(ins.Mint), ins.Amount)
			}
		case KindBurn:
			if err = debit(Account{ins.Mint, ins.From}, ins.Amount); err == nil {
				err = debit(SupplyAccount(ins.Mint), ins.Amount)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func validate(ins Instruction) error {
	var zero common.Address
	if ins.Mint == zero {
		return ErrInvalidInstruction.Wrap("missing mint")
	}
	switch ins.Kind {
	case KindTransfer:
		if ins.From == zero || ins.To == zero {
			return ErrInvalidInstruction.Wrap("transfer needs both accounts")
		}
		if ins.From == ins.To {
			return ErrInvalidInstruction.Wrap("transfer to self")
		}
	case KindMint:
		if ins.To == zero {
			return ErrInvalidInstruction.Wrap("mint needs a recipient")
		}
	case KindBurn:
		if ins.From == zero {
			return ErrInvalidInstruction.Wrap("burn needs a holder")
		}
	default:
		return ErrInvalidInstruction.Wrapf("unknown kind %s", ins.Kind)
	}
	return nil
}
