package upload

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"xdao.co/caspub/cidutil"
	"xdao.co/caspub/gateway"
	"xdao.co/caspub/ledger"
	"xdao.co/caspub/merkle"
)

// Options adjusts one Publish run.
type Options struct {
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// ChunkSize and Hash are passed through to the merkle builder.
	ChunkSize int
	Hash      cidutil.HashAlg
	// Builder, when set, overrides the default merkle builder entirely.
	Builder *merkle.Builder
	// Concurrency > 1 uploads blocks in parallel with pre-assigned nonces.
	Concurrency int
	// Gateways to probe after the upload finalizes. Empty skips verification.
	Gateways []gateway.NamedGateway
	// Log defaults to a nop logger.
	Log *zap.Logger
	// Observer, when set, receives every submission status event.
	Observer ledger.Observer
}

// Outcome is the result of publishing one path.
type Outcome struct {
	// Root is the directory-wrapped tree root; resolving it through a
	// path-aware gateway preserves the original base name.
	Root cid.Cid
	// TotalBytes is the source byte count the tree covers.
	TotalBytes uint64
	// Results holds one finalized receipt per uploaded block.
	Results []BlockResult
	// Reports holds the per-gateway verification outcomes, nil when
	// verification was skipped.
	Reports []gateway.NamedReport
}

// Publish merkleizes path, uploads every block as its own ledger
// transaction, and optionally verifies resolvability through gateways.
//
// The tree is always wrapped in a directory node, for files and directories
// alike, so the published root carries the base name. Authorization is
// ensured up front: on development chains the account self-authorizes,
// against production chains a missing quota fails before any block is sent.
func Publish(ctx context.Context, conn ledger.Conn, signer ledger.Signer, path string, opts Options) (*Outcome, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	auth := ledger.Authorizer{Conn: conn, Log: log}
	if err := auth.Ensure(ctx, signer, signer.Address()); err != nil {
		return nil, fmt.Errorf("authorization: %w", err)
	}
	if _, err := auth.Check(ctx, signer.Address()); err != nil {
		return nil, fmt.Errorf("authorization: %w", err)
	}

	builder := merkle.Builder{Fs: opts.Fs, ChunkSize: opts.ChunkSize, Hash: opts.Hash}
	if opts.Builder != nil {
		builder = *opts.Builder
	}
	tree, err := builder.Directory(path)
	if err != nil {
		return nil, err
	}
	log.Info("merkleized",
		zap.String("root", tree.Root.String()),
		zap.Int("blocks", tree.Len()),
		zap.Uint64("bytes", tree.TotalBytes()))

	uploader := Uploader{Conn: conn, Signer: signer, Log: log, Observer: opts.Observer}
	var results []BlockResult
	if opts.Concurrency > 1 {
		results, err = uploader.Parallel(ctx, tree.Blocks(), opts.Concurrency)
	} else {
		results, err = uploader.Sequential(ctx, tree.Blocks())
	}
	if err != nil {
		return &Outcome{Root: tree.Root, TotalBytes: tree.TotalBytes(), Results: results}, err
	}

	outcome := &Outcome{Root: tree.Root, TotalBytes: tree.TotalBytes(), Results: results}
	if len(opts.Gateways) > 0 {
		ids := make([]cid.Cid, 0, len(results))
		for _, r := range results {
			ids = append(ids, r.ID)
		}
		v := gateway.Verifier{}
		outcome.Reports = v.ProbeAll(ctx, ids, opts.Gateways)
		for _, nr := range outcome.Reports {
			log.Info("gateway probe",
				zap.String("gateway", nr.Gateway.Name),
				zap.Int("resolvable", nr.Report.Resolvable),
				zap.Int("total", nr.Report.Total))
		}
	}
	return outcome, nil
}
