package ledger

import (
	"context"
	"errors"
	"testing"

	"xdao.co/caspub/cidutil"
)

// fakeConn scripts status event sequences and counts submissions.
type fakeConn struct {
	endpoint string
	events   []StatusEvent
	nonce    uint64
	quota    *Quota

	submits int
	lastOpt CallOptions
}

func (f *fakeConn) Endpoint() string { return f.endpoint }
func (f *fakeConn) Close() error     { return nil }

func (f *fakeConn) AccountNonce(ctx context.Context, account AccountID) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeConn) AccountQuota(ctx context.Context, account AccountID) (*Quota, error) {
	if f.quota == nil {
		return nil, ErrUnauthorized
	}
	return f.quota.Clone(), nil
}

func (f *fakeConn) Submit(ctx context.Context, call Call, signer Signer, opts CallOptions) (<-chan StatusEvent, error) {
	f.submits++
	f.lastOpt = opts
	ch := make(chan StatusEvent, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type staticSigner struct{ addr AccountID }

func (s staticSigner) Address() AccountID            { return s.addr }
func (s staticSigner) Sign(m []byte) ([]byte, error) { return []byte("sig"), nil }

func okSequence(storedCID string) []StatusEvent {
	idx := uint64(7)
	return []StatusEvent{
		{Phase: PhaseSigning},
		{Phase: PhaseBroadcasting},
		{Phase: PhaseIncluded, TxHash: "0xtx", BlockHash: "0xprov"},
		{Phase: PhaseFinalized, TxHash: "0xtx", BlockHash: "0xfinal", StoredIndex: &idx, StoredCID: storedCID},
	}
}

func TestSubmitBlock_RejectsOversizedBeforeAnyNetworkCall(t *testing.T) {
	conn := &fakeConn{endpoint: "mem://local"}
	data := make([]byte, MaxBlockBytes+1)
	id, err := cidutil.Compute(data, cidutil.Raw, cidutil.SHA2_256)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	_, err = SubmitBlock(context.Background(), conn, staticSigner{"a"}, id, data, SubmitOptions{})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("got %v want ErrPayloadTooLarge", err)
	}
	if conn.submits != 0 {
		t.Fatalf("network calls: got %d want 0", conn.submits)
	}
}

func TestSubmitBlock_FinalizedReceipt(t *testing.T) {
	data := []byte("finalize me")
	id, err := cidutil.Compute(data, cidutil.Raw, cidutil.SHA2_256)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	conn := &fakeConn{events: okSequence(id.String())}

	var seen []Phase
	rcpt, err := SubmitBlock(context.Background(), conn, staticSigner{"a"}, id, data, SubmitOptions{
		Observer: func(ev StatusEvent) { seen = append(seen, ev.Phase) },
	})
	if err != nil {
		t.Fatalf("SubmitBlock failed: %v", err)
	}
	if rcpt.TxHash != "0xtx" || rcpt.BlockHash != "0xfinal" {
		t.Fatalf("receipt: %+v", rcpt)
	}
	if rcpt.StoredIndex == nil || *rcpt.StoredIndex != 7 {
		t.Fatalf("stored index: %v", rcpt.StoredIndex)
	}

	want := []Phase{PhaseSigning, PhaseBroadcasting, PhaseIncluded, PhaseFinalized}
	if len(seen) != len(want) {
		t.Fatalf("observed phases: %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("phase %d: got %v want %v", i, seen[i], want[i])
		}
	}
}

func TestSubmitBlock_StoredCIDMismatch(t *testing.T) {
	data := []byte("mismatch")
	id, err := cidutil.Compute(data, cidutil.Raw, cidutil.SHA2_256)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	other, err := cidutil.Compute([]byte("other"), cidutil.Raw, cidutil.SHA2_256)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	conn := &fakeConn{events: okSequence(other.String())}

	_, err = SubmitBlock(context.Background(), conn, staticSigner{"a"}, id, data, SubmitOptions{})
	if !errors.Is(err, ErrCIDMismatch) {
		t.Fatalf("got %v want ErrCIDMismatch", err)
	}
}

func TestSubmitBlock_BackwardTransitionsDropped(t *testing.T) {
	data := []byte("out of order")
	id, err := cidutil.Compute(data, cidutil.Raw, cidutil.SHA2_256)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	idx := uint64(0)
	conn := &fakeConn{events: []StatusEvent{
		{Phase: PhaseBroadcasting},
		{Phase: PhaseSigning}, // must be ignored
		{Phase: PhaseBroadcasting},
		{Phase: PhaseIncluded, TxHash: "0xtx", BlockHash: "0xb"},
		{Phase: PhaseFinalized, TxHash: "0xtx", BlockHash: "0xb", StoredIndex: &idx, StoredCID: id.String()},
	}}

	var seen []Phase
	if _, err := SubmitBlock(context.Background(), conn, staticSigner{"a"}, id, data, SubmitOptions{
		Observer: func(ev StatusEvent) { seen = append(seen, ev.Phase) },
	}); err != nil {
		t.Fatalf("SubmitBlock failed: %v", err)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("observer saw a non-forward transition: %v", seen)
		}
	}
}

func TestSubmitBlock_DispatchErrorAtFinalization(t *testing.T) {
	data := []byte("reverted")
	id, err := cidutil.Compute(data, cidutil.Raw, cidutil.SHA2_256)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	conn := &fakeConn{events: []StatusEvent{
		{Phase: PhaseSigning},
		{Phase: PhaseBroadcasting},
		{Phase: PhaseIncluded, TxHash: "0xtx", BlockHash: "0xb"},
		{Phase: PhaseFinalized, Err: &ModuleError{Pallet: "ContentStore", Name: "QuotaExceeded"}},
	}}

	_, err = SubmitBlock(context.Background(), conn, staticSigner{"a"}, id, data, SubmitOptions{})
	var me *ModuleError
	if !errors.As(err, &me) {
		t.Fatalf("got %v want ModuleError", err)
	}
	if me.Pallet != "ContentStore" || me.Name != "QuotaExceeded" {
		t.Fatalf("decoded module error: %+v", me)
	}
}

func TestSubmitBlock_StreamClosedEarly(t *testing.T) {
	data := []byte("truncated stream")
	id, err := cidutil.Compute(data, cidutil.Raw, cidutil.SHA2_256)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	conn := &fakeConn{events: []StatusEvent{{Phase: PhaseSigning}, {Phase: PhaseBroadcasting}}}

	if _, err := SubmitBlock(context.Background(), conn, staticSigner{"a"}, id, data, SubmitOptions{}); err == nil {
		t.Fatalf("expected error for stream closed before terminal state")
	}
}

func TestSubmitBlock_ExplicitNoncePassedThrough(t *testing.T) {
	data := []byte("explicit nonce")
	id, err := cidutil.Compute(data, cidutil.Raw, cidutil.SHA2_256)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	conn := &fakeConn{events: okSequence(id.String())}

	nonce := uint64(42)
	if _, err := SubmitBlock(context.Background(), conn, staticSigner{"a"}, id, data, SubmitOptions{Nonce: &nonce}); err != nil {
		t.Fatalf("SubmitBlock failed: %v", err)
	}
	if conn.lastOpt.Nonce == nil || *conn.lastOpt.Nonce != 42 {
		t.Fatalf("nonce not passed through: %v", conn.lastOpt.Nonce)
	}
}
