package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"xdao.co/caspub/cidutil"
	"xdao.co/caspub/ledger"
	"xdao.co/caspub/ledger/memledger"
	"xdao.co/caspub/ledger/testkit"
	"xdao.co/caspub/merkle"
)

func testBlocks(t *testing.T, n int) []merkle.Block {
	t.Helper()
	blocks := make([]merkle.Block, n)
	for i := range blocks {
		data := []byte(fmt.Sprintf("block payload %d", i))
		id, err := cidutil.Compute(data, cidutil.Raw, cidutil.SHA2_256)
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
		blocks[i] = merkle.Block{ID: id, Data: data}
	}
	return blocks
}

// recordingConn finalizes every submission and records the nonce option each
// one carried.
type recordingConn struct {
	mu     sync.Mutex
	nonces []*uint64
	base   uint64
}

func (r *recordingConn) Endpoint() string { return "mem://recording" }
func (r *recordingConn) Close() error     { return nil }

func (r *recordingConn) AccountNonce(ctx context.Context, account ledger.AccountID) (uint64, error) {
	return r.base, nil
}

func (r *recordingConn) AccountQuota(ctx context.Context, account ledger.AccountID) (*ledger.Quota, error) {
	return nil, ledger.ErrUnauthorized
}

func (r *recordingConn) Submit(ctx context.Context, call ledger.Call, signer ledger.Signer, opts ledger.CallOptions) (<-chan ledger.StatusEvent, error) {
	r.mu.Lock()
	if opts.Nonce != nil {
		n := *opts.Nonce
		r.nonces = append(r.nonces, &n)
	} else {
		r.nonces = append(r.nonces, nil)
	}
	r.mu.Unlock()

	store, _ := call.(ledger.StoreCall)
	id, err := cidutil.Compute(store.Data, store.Codec, store.Hash)
	if err != nil {
		return nil, err
	}
	idx := uint64(0)
	ch := make(chan ledger.StatusEvent, 8)
	ch <- ledger.StatusEvent{Phase: ledger.PhaseSigning}
	ch <- ledger.StatusEvent{Phase: ledger.PhaseBroadcasting}
	ch <- ledger.StatusEvent{Phase: ledger.PhaseIncluded, TxHash: "0xtx", BlockHash: "0xb"}
	ch <- ledger.StatusEvent{Phase: ledger.PhaseFinalized, TxHash: "0xtx", BlockHash: "0xb", StoredIndex: &idx, StoredCID: id.String()}
	close(ch)
	return ch, nil
}

func TestSequential_OrderAndReceipts(t *testing.T) {
	conn := &recordingConn{}
	blocks := testBlocks(t, 5)
	u := Uploader{Conn: conn, Signer: testkit.NewTestSigner(t, 1)}

	results, err := u.Sequential(context.Background(), blocks)
	if err != nil {
		t.Fatalf("Sequential failed: %v", err)
	}
	if len(results) != len(blocks) {
		t.Fatalf("results: got %d want %d", len(results), len(blocks))
	}
	for i, r := range results {
		if !r.ID.Equals(blocks[i].ID) {
			t.Fatalf("result %d out of order", i)
		}
		if r.Receipt == nil || r.Receipt.StoredCID != blocks[i].ID.String() {
			t.Fatalf("result %d missing receipt", i)
		}
	}
	// Sequential relies on the connection's own nonce lookup.
	for i, n := range conn.nonces {
		if n != nil {
			t.Fatalf("submission %d carried a pre-assigned nonce", i)
		}
	}
}

func TestSequential_AbortsOnFirstFailure(t *testing.T) {
	l := memledger.New()
	signer := testkit.NewTestSigner(t, 2)
	blocks := testBlocks(t, 4)

	authorizeForTest(t, l, signer)
	injected := errors.New("broadcast refused")
	l.FailSubmit = func(call ledger.Call) error {
		store, ok := call.(ledger.StoreCall)
		if ok && bytes.Equal(store.Data, blocks[2].Data) {
			return injected
		}
		return nil
	}

	u := Uploader{Conn: l, Signer: signer}
	results, err := u.Sequential(context.Background(), blocks)
	if !errors.Is(err, injected) {
		t.Fatalf("got %v want injected failure", err)
	}
	if len(results) != 2 {
		t.Fatalf("completed results: got %d want 2", len(results))
	}
	// Finalized blocks stay stored; the failed one and its successor do not.
	if l.Len() != 2 {
		t.Fatalf("stored blocks: got %d want 2", l.Len())
	}
}

func TestParallel_AssignsDistinctIncreasingNonces(t *testing.T) {
	conn := &recordingConn{base: 100}
	blocks := testBlocks(t, 10)
	u := Uploader{Conn: conn, Signer: testkit.NewTestSigner(t, 3)}

	results, err := u.Parallel(context.Background(), blocks, 4)
	if err != nil {
		t.Fatalf("Parallel failed: %v", err)
	}
	if len(results) != len(blocks) {
		t.Fatalf("results: got %d want %d", len(results), len(blocks))
	}
	for i, r := range results {
		if !r.ID.Equals(blocks[i].ID) {
			t.Fatalf("result %d out of input order", i)
		}
	}

	var nonces []uint64
	for i, n := range conn.nonces {
		if n == nil {
			t.Fatalf("submission %d missing pre-assigned nonce", i)
		}
		nonces = append(nonces, *n)
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
	for i, n := range nonces {
		if n != 100+uint64(i) {
			t.Fatalf("nonces not contiguous from base: %v", nonces)
		}
	}
}

func TestParallel_AgainstMemledger(t *testing.T) {
	l := memledger.New()
	signer := testkit.NewTestSigner(t, 4)
	authorizeForTest(t, l, signer)

	blocks := testBlocks(t, 12)
	u := Uploader{Conn: l, Signer: signer}
	results, err := u.Parallel(context.Background(), blocks, 4)
	if err != nil {
		t.Fatalf("Parallel failed: %v", err)
	}
	if len(results) != len(blocks) {
		t.Fatalf("results: got %d want %d", len(results), len(blocks))
	}
	if l.Len() != len(blocks) {
		t.Fatalf("stored blocks: got %d want %d", l.Len(), len(blocks))
	}

	nonce, err := l.AccountNonce(context.Background(), signer.Address())
	if err != nil {
		t.Fatalf("AccountNonce failed: %v", err)
	}
	if nonce != uint64(len(blocks)) {
		t.Fatalf("nonce after upload: got %d want %d", nonce, len(blocks))
	}
}

func TestParallel_PartialFailureKeepsFinalizedSiblings(t *testing.T) {
	l := memledger.New()
	signer := testkit.NewTestSigner(t, 5)
	authorizeForTest(t, l, signer)

	blocks := testBlocks(t, 8)
	injected := errors.New("one bad block")
	l.FailSubmit = func(call ledger.Call) error {
		store, ok := call.(ledger.StoreCall)
		if ok && bytes.Equal(store.Data, blocks[5].Data) {
			return injected
		}
		return nil
	}

	u := Uploader{Conn: l, Signer: signer}
	results, err := u.Parallel(context.Background(), blocks, 2)
	if !errors.Is(err, injected) {
		t.Fatalf("got %v want injected failure", err)
	}
	// No rollback: every returned result is a real finalized receipt.
	for _, r := range results {
		if _, ok := l.Block(r.ID.String()); !ok {
			t.Fatalf("result %s not on the ledger", r.ID)
		}
	}
	if _, ok := l.Block(blocks[5].ID.String()); ok {
		t.Fatalf("failed block ended up stored")
	}
	if len(results) > l.Len() {
		t.Fatalf("results %d exceed stored %d", len(results), l.Len())
	}
}

func authorizeForTest(t *testing.T, l *memledger.Ledger, signer ledger.Signer) {
	t.Helper()
	auth := ledger.Authorizer{Conn: l}
	if err := auth.Ensure(context.Background(), signer, signer.Address()); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
}
