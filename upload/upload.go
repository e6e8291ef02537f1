// Package upload schedules per-block ledger submissions for a merkle tree.
//
// Two modes: Sequential submits blocks one at a time with the connection's
// own nonce lookup; Parallel fetches the account nonce once and pre-assigns
// ordering numbers so concurrent submissions cannot race for the same value.
package upload

import (
	"context"
	"fmt"
	"sync"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/caspub/ledger"
	"xdao.co/caspub/merkle"
)

// BlockResult pairs a block identifier with its finalized receipt.
type BlockResult struct {
	ID      cid.Cid
	Size    int
	Receipt *ledger.Receipt
}

// Uploader submits blocks as individual ledger transactions.
type Uploader struct {
	Conn   ledger.Conn
	Signer ledger.Signer
	// Log defaults to a nop logger.
	Log *zap.Logger
	// Observer, when set, receives every submission status event.
	Observer ledger.Observer
}

func (u Uploader) log() *zap.Logger {
	if u.Log != nil {
		return u.Log
	}
	return zap.NewNop()
}

// Sequential submits blocks in input order, one transaction at a time,
// aborting on the first failure. The results completed so far are returned
// alongside the error; finalized blocks stay on the ledger.
func (u Uploader) Sequential(ctx context.Context, blocks []merkle.Block) ([]BlockResult, error) {
	results := make([]BlockResult, 0, len(blocks))
	for i, b := range blocks {
		rcpt, err := ledger.SubmitBlock(ctx, u.Conn, u.Signer, b.ID, b.Data, ledger.SubmitOptions{
			Observer: u.Observer,
		})
		if err != nil {
			return results, fmt.Errorf("block %d/%d: %w", i+1, len(blocks), err)
		}
		results = append(results, BlockResult{ID: b.ID, Size: len(b.Data), Receipt: rcpt})
		u.log().Info("block finalized",
			zap.String("cid", b.ID.String()),
			zap.String("progress", fmt.Sprintf("%d/%d", i+1, len(blocks))))
	}
	return results, nil
}

// Parallel submits blocks with at most concurrency transactions in flight.
//
// The account nonce is fetched once; block i is pre-assigned base+i in input
// order, so ordering numbers stay collision-free regardless of completion
// order. The first failure cancels the remaining queue, but siblings that
// already finalized keep their receipts: there is no rollback on a
// content-addressed ledger, and re-running an upload resubmits only what is
// missing.
func (u Uploader) Parallel(ctx context.Context, blocks []merkle.Block, concurrency int) ([]BlockResult, error) {
	if concurrency <= 1 || len(blocks) <= 1 {
		return u.Sequential(ctx, blocks)
	}
	if concurrency > len(blocks) {
		concurrency = len(blocks)
	}

	base, err := u.Conn.AccountNonce(ctx, u.Signer.Address())
	if err != nil {
		return nil, fmt.Errorf("account nonce: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		index int
		block merkle.Block
	}
	jobs := make(chan job)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		firstErr  error
		completed int
	)
	results := make([]BlockResult, len(blocks))

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				nonce := base + uint64(j.index)
				rcpt, err := ledger.SubmitBlock(ctx, u.Conn, u.Signer, j.block.ID, j.block.Data, ledger.SubmitOptions{
					Nonce:    &nonce,
					Observer: u.Observer,
				})
				if err != nil {
					fail(fmt.Errorf("block %d/%d: %w", j.index+1, len(blocks), err))
					continue
				}
				mu.Lock()
				results[j.index] = BlockResult{ID: j.block.ID, Size: len(j.block.Data), Receipt: rcpt}
				completed++
				n := completed
				mu.Unlock()
				u.log().Info("block finalized",
					zap.String("cid", j.block.ID.String()),
					zap.Uint64("nonce", nonce),
					zap.String("progress", fmt.Sprintf("%d/%d", n, len(blocks))))
			}
		}()
	}

feed:
	for i, b := range blocks {
		select {
		case jobs <- job{index: i, block: b}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		done := make([]BlockResult, 0, len(blocks))
		for _, r := range results {
			if r.Receipt != nil {
				done = append(done, r)
			}
		}
		return done, firstErr
	}
	return results, nil
}
