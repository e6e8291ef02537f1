// Package testkit provides a conformance suite for ledger.Conn
// implementations.
package testkit

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"xdao.co/caspub/cidutil"
	"xdao.co/caspub/keys"
	"xdao.co/caspub/ledger"
)

// NewConn constructs a fresh, isolated Conn instance for a test, with a
// signer the chain accepts for privileged authorize calls.
type NewConn func(t *testing.T) (ledger.Conn, ledger.Signer)

// NewTestSigner returns a deterministic ed25519 signer for tests.
func NewTestSigner(t *testing.T, seedByte byte) ledger.Signer {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = seedByte
	}
	s, err := keys.NewMemorySigner(seed)
	if err != nil {
		t.Fatalf("NewMemorySigner failed: %v", err)
	}
	return s
}

// RunConnConformance runs the Conn contract checks against newConn.
func RunConnConformance(t *testing.T, newConn NewConn) {
	t.Helper()
	ctx := context.Background()

	authorize := func(t *testing.T, conn ledger.Conn, sudo ledger.Signer, target ledger.AccountID, txs uint64, bytes int64) {
		t.Helper()
		call := ledger.AuthorizeCall{Account: target, Transactions: txs, Bytes: big.NewInt(bytes)}
		if _, err := ledger.SubmitCall(ctx, conn, call, sudo, ledger.CallOptions{}, nil); err != nil {
			t.Fatalf("authorize failed: %v", err)
		}
	}

	t.Run("QuotaAbsentUntilAuthorized", func(t *testing.T) {
		conn, sudo := newConn(t)
		defer conn.Close()
		account := ledger.AccountID("unauthorized-account")

		_, err := conn.AccountQuota(ctx, account)
		if !errors.Is(err, ledger.ErrUnauthorized) {
			t.Fatalf("AccountQuota before authorize: got %v want ErrUnauthorized", err)
		}

		authorize(t, conn, sudo, account, 10, 1000)

		q, err := conn.AccountQuota(ctx, account)
		if err != nil {
			t.Fatalf("AccountQuota after authorize: %v", err)
		}
		if q.Transactions != 10 {
			t.Fatalf("transactions: got %d want 10", q.Transactions)
		}
		if q.Bytes.Cmp(big.NewInt(1000)) != 0 {
			t.Fatalf("bytes: got %s want 1000", q.Bytes)
		}
	})

	t.Run("StoreRoundTripConsumesQuota", func(t *testing.T) {
		conn, sudo := newConn(t)
		defer conn.Close()
		authorize(t, conn, sudo, sudo.Address(), 10, 1000)

		data := []byte("store round trip payload")
		id, err := cidutil.Compute(data, cidutil.Raw, cidutil.SHA2_256)
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}

		rcpt, err := ledger.SubmitBlock(ctx, conn, sudo, id, data, ledger.SubmitOptions{})
		if err != nil {
			t.Fatalf("SubmitBlock failed: %v", err)
		}
		if rcpt.TxHash == "" || rcpt.BlockHash == "" {
			t.Fatalf("finalized receipt missing hashes: %+v", rcpt)
		}
		if rcpt.StoredCID != id.String() {
			t.Fatalf("stored CID: got %s want %s", rcpt.StoredCID, id)
		}

		q, err := conn.AccountQuota(ctx, sudo.Address())
		if err != nil {
			t.Fatalf("AccountQuota failed: %v", err)
		}
		if q.Transactions != 9 {
			t.Fatalf("transactions after store: got %d want 9", q.Transactions)
		}
		want := big.NewInt(1000 - int64(len(data)))
		if q.Bytes.Cmp(want) != 0 {
			t.Fatalf("bytes after store: got %s want %s", q.Bytes, want)
		}
	})

	t.Run("StoreUnauthorizedReverts", func(t *testing.T) {
		conn, sudo := newConn(t)
		defer conn.Close()

		data := []byte("no quota for this")
		id, err := cidutil.Compute(data, cidutil.Raw, cidutil.SHA2_256)
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
		_, err = ledger.SubmitBlock(ctx, conn, sudo, id, data, ledger.SubmitOptions{})
		var me *ledger.ModuleError
		if !errors.As(err, &me) {
			t.Fatalf("got %v want a ModuleError dispatch failure", err)
		}
	})

	t.Run("NonceAdvancesPerSubmission", func(t *testing.T) {
		conn, sudo := newConn(t)
		defer conn.Close()
		authorize(t, conn, sudo, sudo.Address(), 100, 1<<20)

		before, err := conn.AccountNonce(ctx, sudo.Address())
		if err != nil {
			t.Fatalf("AccountNonce failed: %v", err)
		}

		for i := 0; i < 3; i++ {
			data := []byte{byte(i)}
			id, err := cidutil.Compute(data, cidutil.Raw, cidutil.SHA2_256)
			if err != nil {
				t.Fatalf("Compute failed: %v", err)
			}
			if _, err := ledger.SubmitBlock(ctx, conn, sudo, id, data, ledger.SubmitOptions{}); err != nil {
				t.Fatalf("SubmitBlock %d failed: %v", i, err)
			}
		}

		after, err := conn.AccountNonce(ctx, sudo.Address())
		if err != nil {
			t.Fatalf("AccountNonce failed: %v", err)
		}
		if after != before+3 {
			t.Fatalf("nonce: got %d want %d", after, before+3)
		}
	})

	t.Run("ExplicitNonceRejectsReuse", func(t *testing.T) {
		conn, sudo := newConn(t)
		defer conn.Close()
		authorize(t, conn, sudo, sudo.Address(), 100, 1<<20)

		base, err := conn.AccountNonce(ctx, sudo.Address())
		if err != nil {
			t.Fatalf("AccountNonce failed: %v", err)
		}

		data := []byte("explicit nonce")
		id, err := cidutil.Compute(data, cidutil.Raw, cidutil.SHA2_256)
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
		nonce := base
		if _, err := ledger.SubmitBlock(ctx, conn, sudo, id, data, ledger.SubmitOptions{Nonce: &nonce}); err != nil {
			t.Fatalf("SubmitBlock with explicit nonce failed: %v", err)
		}

		other := []byte("explicit nonce reuse")
		otherID, err := cidutil.Compute(other, cidutil.Raw, cidutil.SHA2_256)
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
		reuse := base
		_, err = ledger.SubmitBlock(ctx, conn, sudo, otherID, other, ledger.SubmitOptions{Nonce: &reuse})
		if !errors.Is(err, ledger.ErrInvalidNonce) {
			t.Fatalf("nonce reuse: got %v want ErrInvalidNonce", err)
		}
	})

	t.Run("NilSignerRejected", func(t *testing.T) {
		conn, _ := newConn(t)
		defer conn.Close()
		_, err := conn.Submit(ctx, ledger.StoreCall{Data: []byte("x"), Codec: cidutil.Raw, Hash: cidutil.SHA2_256}, nil, ledger.CallOptions{})
		if err == nil {
			t.Fatalf("Submit accepted a nil signer")
		}
	})
}
