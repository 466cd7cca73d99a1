package state_test

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/minichain-lab/minichain/helper/kvdb"
	"github.com/minichain-lab/minichain/state"
	itrie "github.com/minichain-lab/minichain/state/itrie"
	"github.com/minichain-lab/minichain/types"
)

func TestDebugNonceSnapshotCommit(t *testing.T) {
	addr := types.StringToAddress("0x1")
	db := itrie.NewStateDB(kvdb.NewMemoryDB(), hclog.NewNullLogger())
	snap := db.NewSnapshot()

	txn := state.NewTxn(snap)
	txn.IncrNonce(addr)
	objs := txn.Commit(true)

	newSnap, root, err := snap.Commit(objs)
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("root=%x", root)

	account, err := newSnap.GetAccount(addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("account nonce=%d balance=%v", account.Nonce, account.Balance)
}
