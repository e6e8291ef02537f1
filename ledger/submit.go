package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/caspub/cidutil"
)

// MaxBlockBytes is the per-transaction size ceiling, enforced client-side
// before any network call.
const MaxBlockBytes = 8 << 20

// Receipt is the durable result of a finalized submission.
type Receipt struct {
	TxHash      string
	BlockHash   string
	StoredIndex *uint64
	// StoredCID is the identifier the ledger recomputed from the submitted
	// bytes and metadata.
	StoredCID string
}

// Observer receives submission status events as they happen.
type Observer func(StatusEvent)

// SubmitOptions adjusts one block submission.
type SubmitOptions struct {
	// Nonce pre-assigns the transaction ordering number (parallel uploads).
	Nonce *uint64
	// Observer, when set, receives every status transition.
	Observer Observer
}

// SubmitBlock commits one content-addressed block as a single ledger
// transaction and waits for finalization.
//
// The block's codec and hash algorithm are taken from its identifier and
// sent as transaction metadata; the ledger recomputes the identifier from
// the bytes, and a recomputed identifier that differs from id fails with
// ErrCIDMismatch. Only a Finalized status makes the block durably stored;
// Included is provisional.
func SubmitBlock(ctx context.Context, conn Conn, signer Signer, id cid.Cid, data []byte, opts SubmitOptions) (*Receipt, error) {
	if len(data) > MaxBlockBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(data), MaxBlockBytes)
	}

	prefix := id.Prefix()
	codec := cidutil.Codec(prefix.Codec)
	hash := cidutil.HashAlg(prefix.MhType)
	if !cidutil.SupportedCodec(codec) {
		return nil, fmt.Errorf("%w: 0x%x", cidutil.ErrUnsupportedCodec, prefix.Codec)
	}
	if !cidutil.SupportedHash(hash) {
		return nil, fmt.Errorf("%w: 0x%x", cidutil.ErrUnsupportedHash, prefix.MhType)
	}

	call := StoreCall{Data: data, Codec: codec, Hash: hash}
	rcpt, err := SubmitCall(ctx, conn, call, signer, CallOptions{Nonce: opts.Nonce}, opts.Observer)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", id, err)
	}
	if rcpt.StoredCID != "" && rcpt.StoredCID != id.String() {
		return nil, fmt.Errorf("%w: ledger computed %s, client computed %s", ErrCIDMismatch, rcpt.StoredCID, id)
	}
	return rcpt, nil
}

// SubmitCall drives one call through the submission state machine and
// returns its finalized receipt.
func SubmitCall(ctx context.Context, conn Conn, call Call, signer Signer, opts CallOptions, obs Observer) (*Receipt, error) {
	events, err := conn.Submit(ctx, call, signer, opts)
	if err != nil {
		return nil, err
	}
	return driveSubmission(ctx, events, obs)
}

// driveSubmission consumes status events until a terminal phase. Events that
// would move the state machine backward (or repeat a phase) are protocol
// violations from the connection and are dropped.
func driveSubmission(ctx context.Context, events <-chan StatusEvent, obs Observer) (*Receipt, error) {
	var last Phase
	var rcpt Receipt
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil, errors.New("ledger: status stream closed before a terminal state")
			}
			if ev.Phase <= last {
				continue
			}
			last = ev.Phase
			if obs != nil {
				obs(ev)
			}

			switch ev.Phase {
			case PhaseIncluded:
				rcpt.TxHash = ev.TxHash
				rcpt.BlockHash = ev.BlockHash
			case PhaseFinalized:
				if ev.Err != nil {
					// Dispatch failure: included on chain, rejected by the
					// runtime. ModuleError carries the decoded pallet+variant.
					return nil, ev.Err
				}
				if ev.TxHash != "" {
					rcpt.TxHash = ev.TxHash
				}
				if ev.BlockHash != "" {
					rcpt.BlockHash = ev.BlockHash
				}
				rcpt.StoredIndex = ev.StoredIndex
				rcpt.StoredCID = ev.StoredCID
				return &rcpt, nil
			case PhaseFailed:
				if ev.Err != nil {
					return nil, ev.Err
				}
				return nil, errors.New("ledger: submission failed")
			}
		}
	}
}
