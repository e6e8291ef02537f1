// Package grpcnode connects the upload pipeline to a ledger node over gRPC.
//
// The client signs locally and ships the signature with the call; the node
// never sees a private key. Submission status streams back as server-side
// events, so the client observes the same Signing → Broadcasting → Included →
// Finalized progression a local connection would produce.
package grpcnode

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/caspub/ledger"
)

// Client is a ledger.Conn talking to a remote LedgerNode service.
type Client struct {
	endpoint string
	cc       *grpc.ClientConn
	client   LedgerNodeClient
}

var _ ledger.Conn = (*Client)(nil)

// Dial connects to a LedgerNode endpoint. Without explicit options the
// connection is insecure; production deployments pass transport credentials.
func Dial(ctx context.Context, endpoint string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	cc, err := grpc.DialContext(ctx, endpoint, opts...)
	if err != nil {
		return nil, err
	}
	return NewClient(endpoint, cc), nil
}

// NewClient wraps an established gRPC connection. The caller keeps ownership
// of cc only until Close.
func NewClient(endpoint string, cc *grpc.ClientConn) *Client {
	return &Client{endpoint: endpoint, cc: cc, client: NewLedgerNodeClient(cc)}
}

func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) Close() error { return c.cc.Close() }

func (c *Client) AccountNonce(ctx context.Context, account ledger.AccountID) (uint64, error) {
	out, err := c.client.AccountNonce(ctx, wrapperspb.String(string(account)))
	if err != nil {
		return 0, fromStatus(err)
	}
	return out.GetValue(), nil
}

func (c *Client) AccountQuota(ctx context.Context, account ledger.AccountID) (*ledger.Quota, error) {
	out, err := c.client.AccountQuota(ctx, wrapperspb.String(string(account)))
	if err != nil {
		return nil, fromStatus(err)
	}
	return decodeQuota(out)
}

// Submit signs the call locally and streams it to the node. The returned
// channel reports the local signing step first, then the node's events.
func (c *Client) Submit(ctx context.Context, call ledger.Call, signer ledger.Signer, opts ledger.CallOptions) (<-chan ledger.StatusEvent, error) {
	if signer == nil {
		return nil, errors.New("grpcnode: nil signer")
	}

	ch := make(chan ledger.StatusEvent, 8)
	go func() {
		defer close(ch)
		emit := func(ev ledger.StatusEvent) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		}

		emit(ledger.StatusEvent{Phase: ledger.PhaseSigning})
		signature, err := signer.Sign(ledger.SigningPayload(call))
		if err != nil {
			emit(ledger.StatusEvent{Phase: ledger.PhaseFailed, Err: err})
			return
		}

		req, err := encodeSubmitRequest(call, signer.Address(), signature, opts.Nonce)
		if err != nil {
			emit(ledger.StatusEvent{Phase: ledger.PhaseFailed, Err: err})
			return
		}
		stream, err := c.client.Submit(ctx, req)
		if err != nil {
			emit(ledger.StatusEvent{Phase: ledger.PhaseFailed, Err: fromStatus(err)})
			return
		}

		for {
			msg, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				emit(ledger.StatusEvent{Phase: ledger.PhaseFailed, Err: fromStatus(err)})
				return
			}
			ev, err := decodeStatusEvent(msg)
			if err != nil {
				emit(ledger.StatusEvent{Phase: ledger.PhaseFailed, Err: err})
				return
			}
			emit(ev)
			if ev.Phase.Terminal() {
				return
			}
		}
	}()
	return ch, nil
}
