package grpcnode

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/caspub/ledger"
)

// fromStatus maps gRPC status codes back onto the ledger sentinels so callers
// match remote failures exactly like local ones.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ledger.ErrUnauthorized, st.Message())
	default:
		return err
	}
}
