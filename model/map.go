package model

import (
	"errors"

	"xdao.co/caspub/cidutil"
	"xdao.co/caspub/ledger"
	"xdao.co/caspub/merkle"
)

// MapError projects an internal error onto a stable CodedError for CLI and
// API consumers. Unknown errors map to ErrInternal.
func MapError(err error) *CodedError {
	if err == nil {
		return nil
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded
	}

	code := ErrInternal
	switch {
	case errors.Is(err, merkle.ErrPathNotFound):
		code = ErrPathNotFound
	case errors.Is(err, merkle.ErrInvalidChunkSize):
		code = ErrInvalidRequest
	case errors.Is(err, ledger.ErrPayloadTooLarge):
		code = ErrPayloadTooLarge
	case errors.Is(err, ledger.ErrUnauthorized), errors.Is(err, ledger.ErrInsufficientPrivilege):
		code = ErrNotAuthorized
	case errors.Is(err, ledger.ErrCIDMismatch):
		code = ErrCIDMismatch
	case errors.Is(err, cidutil.ErrUnsupportedCodec), errors.Is(err, cidutil.ErrUnsupportedHash):
		code = ErrInvalidRequest
	case errors.Is(err, cidutil.ErrNotContentNamespace):
		code = ErrInvalidCID
	default:
		var me *ledger.ModuleError
		if errors.As(err, &me) {
			switch me.Name {
			case "NotAuthorized":
				code = ErrNotAuthorized
			case "QuotaExceeded":
				code = ErrQuotaExhausted
			case "PayloadTooLarge":
				code = ErrPayloadTooLarge
			default:
				code = ErrTransactionError
			}
		}
	}
	return NewError(code, err.Error())
}
