package model

import (
	"errors"
	"fmt"
	"testing"

	"xdao.co/caspub/ledger"
	"xdao.co/caspub/merkle"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil is nil", nil, ""},
		{"path not found", fmt.Errorf("open: %w", merkle.ErrPathNotFound), ErrPathNotFound},
		{"payload too large", ledger.ErrPayloadTooLarge, ErrPayloadTooLarge},
		{"unauthorized", ledger.ErrUnauthorized, ErrNotAuthorized},
		{"cid mismatch", ledger.ErrCIDMismatch, ErrCIDMismatch},
		{"quota module error", &ledger.ModuleError{Pallet: "ContentStore", Name: "QuotaExceeded"}, ErrQuotaExhausted},
		{"unknown module error", &ledger.ModuleError{Pallet: "ContentStore", Name: "Whatever"}, ErrTransactionError},
		{"unknown error", errors.New("boom"), ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coded := MapError(tt.err)
			if tt.err == nil {
				if coded != nil {
					t.Fatalf("got %v want nil", coded)
				}
				return
			}
			if coded.Code != tt.want {
				t.Fatalf("code: got %s want %s", coded.Code, tt.want)
			}
		})
	}
}

func TestMapError_PassesCodedThrough(t *testing.T) {
	orig := NewError(ErrInvalidCID, "bad identifier")
	got := MapError(fmt.Errorf("wrap: %w", orig))
	if got != orig {
		t.Fatalf("coded error not passed through")
	}
}
