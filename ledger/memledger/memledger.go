// Package memledger is an in-memory content ledger used for development and
// tests. It implements ledger.Conn with real nonce ordering, per-account
// quotas, server-side identifier recomputation, and a sudo account — enough
// behavior to exercise the full upload pipeline without a chain.
package memledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"xdao.co/caspub/cidutil"
	"xdao.co/caspub/ledger"
)

const endpoint = "mem://local"

type account struct {
	nonce      uint64
	usedNonces map[uint64]bool
	quota      *ledger.Quota
}

// Ledger is one isolated in-memory chain instance.
type Ledger struct {
	mu       sync.Mutex
	accounts map[ledger.AccountID]*account
	blocks   map[string][]byte
	sudo     ledger.AccountID
	height   uint64
	stored   uint64

	// FailSubmit, when set, rejects matching submissions before inclusion.
	// Test hook for fault injection.
	FailSubmit func(call ledger.Call) error

	calls CallCounts
}

// CallCounts tracks how many network-equivalent calls the ledger served.
type CallCounts struct {
	Submits      uint64
	NonceQueries uint64
	QuotaQueries uint64
}

// Total returns the total number of calls.
func (c CallCounts) Total() uint64 {
	return c.Submits + c.NonceQueries + c.QuotaQueries
}

// New returns a fresh, empty ledger. Instances are isolated from each other.
func New() *Ledger {
	return &Ledger{
		accounts: make(map[ledger.AccountID]*account),
		blocks:   make(map[string][]byte),
	}
}

var _ ledger.Conn = (*Ledger)(nil)

// SetSudo restricts authorize calls to the given account. The zero value
// accepts authorize calls from any signer (dev-chain behavior).
func (l *Ledger) SetSudo(id ledger.AccountID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sudo = id
}

// Calls returns a snapshot of the call counters.
func (l *Ledger) Calls() CallCounts {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// Block returns stored block bytes by identifier string.
func (l *Ledger) Block(id string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.blocks[id]
	return b, ok
}

// Len returns the number of stored blocks.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.blocks)
}

func (l *Ledger) Endpoint() string { return endpoint }

func (l *Ledger) Close() error { return nil }

func (l *Ledger) AccountNonce(ctx context.Context, id ledger.AccountID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls.NonceQueries++
	return l.account(id).nonce, nil
}

func (l *Ledger) AccountQuota(ctx context.Context, id ledger.AccountID) (*ledger.Quota, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls.QuotaQueries++
	acct := l.account(id)
	if acct.quota == nil {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUnauthorized, id)
	}
	return acct.quota.Clone(), nil
}

// Submit processes the call synchronously and returns a buffered channel
// already holding the full status sequence. Deterministic by construction.
func (l *Ledger) Submit(ctx context.Context, call ledger.Call, signer ledger.Signer, opts ledger.CallOptions) (<-chan ledger.StatusEvent, error) {
	if signer == nil {
		return nil, errors.New("memledger: nil signer")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan ledger.StatusEvent, 8)
	defer close(ch)

	emit := func(ev ledger.StatusEvent) { ch <- ev }
	fail := func(err error) (<-chan ledger.StatusEvent, error) {
		emit(ledger.StatusEvent{Phase: ledger.PhaseFailed, Err: err})
		return ch, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls.Submits++

	if l.FailSubmit != nil {
		if err := l.FailSubmit(call); err != nil {
			return fail(err)
		}
	}

	emit(ledger.StatusEvent{Phase: ledger.PhaseSigning})
	sig, err := signer.Sign(ledger.SigningPayload(call))
	if err != nil {
		return fail(fmt.Errorf("memledger: signing failed: %w", err))
	}
	_ = sig // dev chain: signature accepted without a key registry

	from := signer.Address()
	acct := l.account(from)

	nonce := acct.nonce
	if opts.Nonce != nil {
		nonce = *opts.Nonce
	}
	if nonce < acct.nonce || acct.usedNonces[nonce] {
		return fail(fmt.Errorf("%w: %d (account at %d)", ledger.ErrInvalidNonce, nonce, acct.nonce))
	}

	emit(ledger.StatusEvent{Phase: ledger.PhaseBroadcasting})

	acct.usedNonces[nonce] = true
	for acct.usedNonces[acct.nonce] {
		acct.nonce++
	}

	l.height++
	txHash := txHash(from, nonce, call)
	blockHash := blockHashAt(l.height)
	emit(ledger.StatusEvent{Phase: ledger.PhaseIncluded, TxHash: txHash, BlockHash: blockHash})

	final := ledger.StatusEvent{Phase: ledger.PhaseFinalized, TxHash: txHash, BlockHash: blockHash}
	switch c := call.(type) {
	case ledger.StoreCall:
		l.applyStore(acct, c, &final)
	case ledger.AuthorizeCall:
		l.applyAuthorize(from, c, &final)
	default:
		final.Err = fmt.Errorf("memledger: unsupported call type %T", call)
	}
	emit(final)
	return ch, nil
}

func (l *Ledger) applyStore(acct *account, c ledger.StoreCall, final *ledger.StatusEvent) {
	if len(c.Data) > ledger.MaxBlockBytes {
		final.Err = &ledger.ModuleError{Pallet: "ContentStore", Name: "PayloadTooLarge"}
		return
	}
	if acct.quota == nil {
		final.Err = &ledger.ModuleError{Pallet: "ContentStore", Name: "NotAuthorized"}
		return
	}
	if !acct.quota.CanStore(len(c.Data)) {
		final.Err = &ledger.ModuleError{Pallet: "ContentStore", Name: "QuotaExceeded"}
		return
	}

	// The ledger recomputes the identifier from bytes and metadata; the
	// submitted identifier is never trusted.
	id, err := cidutil.Compute(c.Data, c.Codec, c.Hash)
	if err != nil {
		final.Err = &ledger.ModuleError{Pallet: "ContentStore", Name: "UnsupportedFormat"}
		return
	}

	acct.quota.Transactions--
	acct.quota.Bytes.Sub(acct.quota.Bytes, big.NewInt(int64(len(c.Data))))

	l.blocks[id.String()] = append([]byte(nil), c.Data...)
	idx := l.stored
	l.stored++

	final.StoredIndex = &idx
	final.StoredCID = id.String()
}

func (l *Ledger) applyAuthorize(from ledger.AccountID, c ledger.AuthorizeCall, final *ledger.StatusEvent) {
	if l.sudo != "" && from != l.sudo {
		final.Err = &ledger.ModuleError{Pallet: "Sudo", Name: "RequireSudo"}
		return
	}
	target := l.account(c.Account)
	if target.quota != nil {
		final.Err = &ledger.ModuleError{Pallet: "ContentStore", Name: "AlreadyAuthorized"}
		return
	}
	bytes := c.Bytes
	if bytes == nil {
		bytes = new(big.Int)
	}
	target.quota = &ledger.Quota{
		Transactions: c.Transactions,
		Bytes:        new(big.Int).Set(bytes),
	}
}

// account returns the account record, creating an empty one on first touch.
// Callers hold l.mu.
func (l *Ledger) account(id ledger.AccountID) *account {
	acct, ok := l.accounts[id]
	if !ok {
		acct = &account{usedNonces: make(map[uint64]bool)}
		l.accounts[id] = acct
	}
	return acct
}

func txHash(from ledger.AccountID, nonce uint64, call ledger.Call) string {
	h := sha256.New()
	h.Write([]byte(from))
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h.Write(n[:])
	h.Write(ledger.SigningPayload(call))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

func blockHashAt(height uint64) string {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], height)
	sum := sha256.Sum256(n[:])
	return "0x" + hex.EncodeToString(sum[:])
}
