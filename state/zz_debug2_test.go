package state_test

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/minichain-lab/minichain/helper/kvdb"
	"github.com/minichain-lab/minichain/state"
	itrie "github.com/minichain-lab/minichain/state/itrie"
	"github.com/minichain-lab/minichain/types"
)

func TestDebugNonceCommit(t *testing.T) {
	addr := types.StringToAddress("0x1")
	db := itrie.NewStateDB(kvdb.NewMemoryDB(), hclog.NewNullLogger())
	snap := db.NewSnapshot()

	txn := state.NewTxn(snap)
	txn.IncrNonce(addr)
	t.Logf("nonce in overlay: %d", txn.GetNonce(addr))

	objs := txn.Commit(true)
	for _, o := range objs {
		t.Logf("committed obj addr=%x nonce=%d deleted=%v", o.Address, o.Nonce, o.Deleted)
	}
}
