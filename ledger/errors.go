package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge is raised client-side, before any network call, for
	// blocks over MaxBlockBytes.
	ErrPayloadTooLarge = errors.New("ledger: payload exceeds maximum transaction size")

	// ErrUnauthorized means the account holds no write quota.
	ErrUnauthorized = errors.New("ledger: account has no storage authorization")

	// ErrAlreadyAuthorized means the account already holds a quota. Callers
	// running against development chains treat it as success.
	ErrAlreadyAuthorized = errors.New("ledger: account is already authorized")

	// ErrInsufficientPrivilege means an authorize call was attempted without
	// the sudo origin.
	ErrInsufficientPrivilege = errors.New("ledger: authorization requires sudo privilege")

	// ErrCIDMismatch means the identifier the ledger recomputed for stored
	// bytes does not match the client's precomputed identifier.
	ErrCIDMismatch = errors.New("ledger: stored identifier does not match precomputed identifier")

	// ErrInvalidNonce means the submission's ordering number was already
	// used or is below the account's current value.
	ErrInvalidNonce = errors.New("ledger: invalid transaction ordering number")
)

// ModuleError is a decoded ledger dispatch failure: the pallet that rejected
// the transaction and its error variant name.
type ModuleError struct {
	Pallet string
	Name   string
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("ledger: transaction reverted: %s.%s", e.Pallet, e.Name)
}

// Well-known module error variant names, pattern-matched when rewording
// authorization failures into actionable guidance.
const (
	moduleAlreadyAuthorized = "AlreadyAuthorized"
	moduleBadOrigin         = "BadOrigin"
	moduleRequireSudo       = "RequireSudo"
	moduleNotAuthorized     = "NotAuthorized"
	moduleQuotaExceeded     = "QuotaExceeded"
)

// rewordAuthError maps well-known authorization module errors onto the
// package sentinels so callers can match them with errors.Is. All other
// errors pass through unmodified.
func rewordAuthError(err error) error {
	var me *ModuleError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Name {
	case moduleAlreadyAuthorized:
		return fmt.Errorf("%w (%s.%s)", ErrAlreadyAuthorized, me.Pallet, me.Name)
	case moduleBadOrigin, moduleRequireSudo:
		return fmt.Errorf("%w: sign with the chain's sudo key or ask an operator to authorize the account (%s.%s)",
			ErrInsufficientPrivilege, me.Pallet, me.Name)
	default:
		return err
	}
}
