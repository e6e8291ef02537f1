package grpcnode

import (
	"context"
	"flag"
	"strings"
	"time"

	"xdao.co/caspub/ledger"
	"xdao.co/caspub/ledger/connregistry"
)

var dialTimeout = 10 * time.Second

func init() {
	connregistry.MustRegister(connregistry.Connector{
		Name:        "grpc",
		Description: "remote ledger node over gRPC",
		Usage:       connregistry.UsageCLI,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.DurationVar(&dialTimeout, "grpc-dial-timeout", dialTimeout, "gRPC dial timeout")
		},
		Dial: func(ctx context.Context, endpoint string) (ledger.Conn, error) {
			target := strings.TrimPrefix(endpoint, "grpc://")
			ctx, cancel := context.WithTimeout(ctx, dialTimeout)
			defer cancel()
			client, err := Dial(ctx, target)
			if err != nil {
				return nil, err
			}
			// Keep the caller's endpoint string so dev-chain detection sees
			// the original host.
			client.endpoint = endpoint
			return client, nil
		},
	})
}
