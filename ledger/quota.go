package ledger

import "math/big"

// Default quotas for development-endpoint self-authorization.
const DefaultTransactionQuota = 1_000_000

// DefaultByteQuota returns the default development byte budget: 1 TiB.
func DefaultByteQuota() *big.Int {
	return new(big.Int).SetUint64(1 << 40)
}

// Quota is an account's remaining write budget. It is mutated only by the
// ledger; this client treats it as read-only and re-queries it per operation
// rather than caching it.
type Quota struct {
	Transactions uint64
	// Bytes is the remaining byte budget. The ledger tracks it as a u128.
	Bytes *big.Int
}

// Clone returns an independent copy.
func (q *Quota) Clone() *Quota {
	if q == nil {
		return nil
	}
	out := &Quota{Transactions: q.Transactions}
	if q.Bytes != nil {
		out.Bytes = new(big.Int).Set(q.Bytes)
	}
	return out
}

// CanStore reports whether the quota covers one more transaction of n bytes.
func (q *Quota) CanStore(n int) bool {
	if q == nil || q.Transactions == 0 || q.Bytes == nil {
		return false
	}
	return q.Bytes.Cmp(big.NewInt(int64(n))) >= 0
}
