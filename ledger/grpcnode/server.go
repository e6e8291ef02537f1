package grpcnode

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/caspub/ledger"
)

// Server exposes a ledger.Conn backend over the LedgerNode gRPC service.
type Server struct {
	UnimplementedLedgerNodeServer

	Backend ledger.Conn
	// Log defaults to a nop logger.
	Log *zap.Logger
}

func (s *Server) log() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

func (s *Server) AccountNonce(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	nonce, err := s.Backend.AccountNonce(ctx, ledger.AccountID(in.GetValue()))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.UInt64(nonce), nil
}

func (s *Server) AccountQuota(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	q, err := s.Backend.AccountQuota(ctx, ledger.AccountID(in.GetValue()))
	if err != nil {
		if errors.Is(err, ledger.ErrUnauthorized) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := encodeQuota(q)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Submit decodes one pre-signed submission, replays it against the backend,
// and streams the status events back in order.
func (s *Server) Submit(in *structpb.Struct, stream LedgerNode_SubmitServer) error {
	call, address, signature, nonce, err := decodeSubmitRequest(in)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	signer := &remoteSigner{address: address, signature: signature}
	events, err := s.Backend.Submit(stream.Context(), call, signer, ledger.CallOptions{Nonce: nonce})
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}

	s.log().Debug("submission accepted", zap.String("account", string(address)))
	for ev := range events {
		msg, err := encodeStatusEvent(ev)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// remoteSigner replays a signature the client produced before submitting.
// The private key never crosses the wire.
type remoteSigner struct {
	address   ledger.AccountID
	signature []byte
}

func (r *remoteSigner) Address() ledger.AccountID { return r.address }

func (r *remoteSigner) Sign(message []byte) ([]byte, error) {
	return r.signature, nil
}
