package ledger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
)

// Authorizer checks and, on development endpoints, establishes per-account
// write quotas.
type Authorizer struct {
	Conn Conn
	// Log defaults to a nop logger.
	Log *zap.Logger
}

func (a Authorizer) log() *zap.Logger {
	if a.Log != nil {
		return a.Log
	}
	return zap.NewNop()
}

// Check returns the account's remaining quota, or ErrUnauthorized when the
// account holds none.
func (a Authorizer) Check(ctx context.Context, account AccountID) (*Quota, error) {
	q, err := a.Conn.AccountQuota(ctx, account)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, account)
	}
	return q, nil
}

// Authorize submits the privileged authorize call granting target the given
// quota. Against a production endpoint without privilege it fails with
// ErrInsufficientPrivilege; it never attempts a workaround.
func (a Authorizer) Authorize(ctx context.Context, sudo Signer, target AccountID, q Quota) error {
	bytes := q.Bytes
	if bytes == nil {
		bytes = DefaultByteQuota()
	}
	call := AuthorizeCall{Account: target, Transactions: q.Transactions, Bytes: bytes}
	_, err := SubmitCall(ctx, a.Conn, call, sudo, CallOptions{}, nil)
	if err != nil {
		return rewordAuthError(err)
	}
	return nil
}

// Ensure makes sure account can write before an upload begins.
//
// Against production endpoints this is a no-op: authorization there is an
// out-of-band operational process. Against development endpoints it
// self-authorizes with generous default quotas, using the caller's own
// signer as a stand-in sudo key; already-authorized and missing-privilege
// outcomes are logged and treated as non-fatal so repeated runs stay
// idempotent.
func (a Authorizer) Ensure(ctx context.Context, signer Signer, account AccountID) error {
	if !IsDevEndpoint(a.Conn.Endpoint()) {
		return nil
	}

	if q, err := a.Check(ctx, account); err == nil {
		a.log().Debug("account already holds a write quota",
			zap.String("account", string(account)),
			zap.Uint64("transactions", q.Transactions))
		return nil
	} else if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	err := a.Authorize(ctx, signer, account, Quota{
		Transactions: DefaultTransactionQuota,
		Bytes:        DefaultByteQuota(),
	})
	switch {
	case err == nil:
		a.log().Info("authorized account on development chain",
			zap.String("account", string(account)),
			zap.Uint64("transactions", uint64(DefaultTransactionQuota)))
		return nil
	case errors.Is(err, ErrAlreadyAuthorized):
		a.log().Debug("account was already authorized", zap.String("account", string(account)))
		return nil
	case errors.Is(err, ErrInsufficientPrivilege):
		a.log().Warn("cannot self-authorize without the dev sudo key; continuing",
			zap.String("account", string(account)), zap.Error(err))
		return nil
	default:
		return err
	}
}

// IsDevEndpoint reports whether endpoint targets a local development chain:
// a mem:// endpoint, or a host that is loopback or unspecified.
func IsDevEndpoint(endpoint string) bool {
	if strings.HasPrefix(endpoint, "mem://") {
		return true
	}
	host := endpoint
	for _, scheme := range []string{"grpc://", "http://", "https://", "ws://", "wss://"} {
		host = strings.TrimPrefix(host, scheme)
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}
