package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/model"
)

const (
	mintA = "0x00000000000000000000000000000000000000aa"
	mintB = "0x00000000000000000000000000000000000000bb"
	alice = "0x0000000000000000000000000000000000000001"
)

type cli struct {
	t      *testing.T
	common []string
	events string
}

func newCLI(t *testing.T) *cli {
	dir := t.TempDir()
	events := filepath.Join(dir, "events.jsonl")
	return &cli{
		t:      t,
		events: events,
		common: []string{"--store", "badger", "--badger-dir", filepath.Join(dir, "badger"), "--log-level", "error"},
	}
}

func (c *cli) run(args ...string) []byte {
	c.t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	full := append([]string{}, args...)
	full = append(full, c.common...)
	if args[0] != "decode" {
		full = append(full, "--events", c.events)
	}
	root.SetArgs(full)
	require.NoError(c.t, root.Execute(), strings.Join(args, " "))
	return out.Bytes()
}

func TestPoolLifecycle(t *testing.T) {
	c := newCLI(t)

	var created model.Pool
	require.NoError(t, json.Unmarshal(c.run("init-pool", "--mint-a", mintA, "--mint-b", mintB, "--tick-spacing", "10"), &created))
	require.Equal(t, int32(0), created.CurrentTick)
	require.Equal(t, "18446744073709551616", created.SqrtPrice)

	c.run("mint", "--mint", mintA, "--owner", alice, "--amount", "10000")
	c.run("mint", "--mint", mintB, "--owner", alice, "--amount", "10000")

	var added map[string]interface{}
	require.NoError(t, json.Unmarshal(c.run("add-liquidity", "--pool", created.Address, "--owner", alice,
		"--lower", "-100", "--upper", "100", "--max-a", "1000", "--max-b", "1000"), &added))
	require.Greater(t, added["shares_minted"].(float64), float64(0))

	var quoted, swapped swapView
	require.NoError(t, json.Unmarshal(c.run("quote", "--pool", created.Address, "--amount-in", "100"), &quoted))
	require.NoError(t, json.Unmarshal(c.run("swap", "--pool", created.Address, "--trader", alice, "--amount-in", "100"), &swapped))
	require.Equal(t, quoted.AmountOut, swapped.AmountOut)
	require.Greater(t, swapped.AmountOut, uint64(0))
	require.Less(t, swapped.Tick, int32(0))

	var pools []poolView
	require.NoError(t, json.Unmarshal(c.run("show"), &pools))
	require.Len(t, pools, 1)
	require.Equal(t, swapped.Tick, pools[0].CurrentTick)
	require.Greater(t, pools[0].ReserveA, pools[0].ReserveB)

	typed := filepath.Join(t.TempDir(), "typed.jsonl")
	errs := filepath.Join(t.TempDir(), "errors.jsonl")
	c.run("decode", "--in", c.events, "--out", typed, "--errors", errs)

	data, err := os.ReadFile(typed)
	require.NoError(t, err)
	var names []string
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		var ev model.TypedEventRecord
		require.NoError(t, json.Unmarshal(line, &ev))
		require.Equal(t, model.SourceEngine, ev.Source)
		names = append(names, ev.EventName)
	}
	require.Equal(t, []string{model.EventPoolInitialized, model.EventLiquidityAdded, model.EventSwap}, names)
}

func TestSwapRequiresTrader(t *testing.T) {
	c := newCLI(t)
	var created model.Pool
	require.NoError(t, json.Unmarshal(c.run("init-pool", "--mint-a", mintA, "--mint-b", mintB), &created))

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"swap", "--pool", created.Address, "--amount-in", "1"}, c.common...))
	require.Error(t, root.Execute())
}
