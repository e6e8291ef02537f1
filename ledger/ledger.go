// Package ledger defines the boundary to the content ledger — the chain that
// stores blocks as individually authorized transactions — and the client-side
// submission and authorization logic built on that boundary.
//
// The wire protocol of the underlying chain RPC is out of scope here: a Conn
// implementation supplies it (see memledger and grpcnode).
package ledger

import (
	"context"
	"fmt"
	"math/big"

	"xdao.co/caspub/cidutil"
)

// AccountID identifies a ledger account.
type AccountID string

// Signer is the signing capability required to authorize transactions.
//
// It is an explicit interface, validated once at the boundary: a Conn must
// reject a nil Signer up front rather than failing mid-submission.
type Signer interface {
	// Address returns the account the signature authorizes for.
	Address() AccountID
	// Sign signs a message and returns the signature bytes.
	Sign(message []byte) ([]byte, error)
}

// Call is the closed set of transactions this pipeline submits.
type Call interface{ isCall() }

// StoreCall stores one content block. Codec and hash travel as transaction
// metadata so the ledger independently recomputes the identifier; the client
// never submits its own identifier as ledger truth.
type StoreCall struct {
	Data  []byte
	Codec cidutil.Codec
	Hash  cidutil.HashAlg
}

func (StoreCall) isCall() {}

// AuthorizeCall establishes a write quota for an account. It is privileged:
// production chains only accept it from the sudo/root origin.
type AuthorizeCall struct {
	Account      AccountID
	Transactions uint64
	// Bytes is the byte budget. The ledger tracks it as a u128.
	Bytes *big.Int
}

func (AuthorizeCall) isCall() {}

// SigningPayload returns the canonical byte string a signer commits to for a
// call. Both sides of a remote connection must agree on it.
func SigningPayload(call Call) []byte {
	switch c := call.(type) {
	case StoreCall:
		return c.Data
	case AuthorizeCall:
		bytes := c.Bytes
		if bytes == nil {
			bytes = new(big.Int)
		}
		return []byte(fmt.Sprintf("authorize:%s:%d:%s", c.Account, c.Transactions, bytes))
	default:
		return nil
	}
}

// CallOptions adjusts a single submission.
type CallOptions struct {
	// Nonce, when non-nil, is used instead of querying the account's current
	// transaction ordering number. Required for parallel submission, where
	// concurrent dynamic lookups would race for the same value.
	Nonce *uint64
}

// Conn is a connection to a content ledger.
//
// Contract:
// - Submit MUST emit status events in forward order and close the channel
//   after a terminal event (Finalized or Failed).
// - Submit MUST reject a nil Signer before doing any work.
// - AccountNonce MUST return the next usable ordering number.
// - AccountQuota MUST return ErrUnauthorized for accounts with no quota.
type Conn interface {
	// Endpoint returns the endpoint this connection targets.
	Endpoint() string
	// AccountNonce returns the account's next transaction ordering number.
	AccountNonce(ctx context.Context, account AccountID) (uint64, error)
	// AccountQuota returns the account's remaining write quota.
	AccountQuota(ctx context.Context, account AccountID) (*Quota, error)
	// Submit signs and submits a call, reporting progress on the returned
	// channel until a terminal status.
	Submit(ctx context.Context, call Call, signer Signer, opts CallOptions) (<-chan StatusEvent, error)
	// Close releases the connection.
	Close() error
}
