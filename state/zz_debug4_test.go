package state_test

import (
	"math/big"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/minichain-lab/minichain/chain"
	"github.com/minichain-lab/minichain/helper/hex"
	"github.com/minichain-lab/minichain/helper/kvdb"
	"github.com/minichain-lab/minichain/state"
	"github.com/minichain-lab/minichain/state/itrie"
	"github.com/minichain-lab/minichain/types"
)

func TestDebugDeployObjs(t *testing.T) {
	senderAddr := types.StringToAddress("0xa0a0")
	db := itrie.NewStateDB(kvdb.NewMemoryDB(), hclog.NewNullLogger())
	params := &chain.Params{ChainID: chain.DefaultChainID, GasPrice: chain.DefaultGasPrice, BlockGasLimit: chain.DefaultBlockGasLimit}
	executor := state.NewExecutor(params, db, hclog.NewNullLogger())

	oneEther := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	root, err := executor.WriteGenesis(chain.GenesisAlloc{senderAddr: {Balance: oneEther}})
	if err != nil {
		t.Fatal(err)
	}

	header := &types.Header{Number: 1, GasLimit: params.BlockGasLimit}
	transition, err := executor.BeginTxn(root, header)
	if err != nil {
		t.Fatal(err)
	}

	storeAndLogRuntime := hex.MustDecodeHex("0x60003560005560003560005260003560206000a100")
	l := byte(len(storeAndLogRuntime))
	init := []byte{0x60, l, 0x60, 0x0c, 0x60, 0x00, 0x39, 0x60, l, 0x60, 0x00, 0xf3}
	deployCode := append(init, storeAndLogRuntime...)

	_, err = transition.Write(&types.Transaction{
		From:     senderAddr,
		Value:    new(big.Int),
		Gas:      1000000,
		GasPrice: big.NewInt(1),
		Input:    deployCode,
		Nonce:    0,
	})
	if err != nil {
		t.Fatal(err)
	}

	t.Logf("nonce in txn overlay before commit: %d", transition.Txn().GetNonce(senderAddr))
}
