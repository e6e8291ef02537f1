package memledger

import (
	"context"
	"flag"

	"xdao.co/caspub/ledger"
	"xdao.co/caspub/ledger/connregistry"
)

func init() {
	connregistry.MustRegister(connregistry.Connector{
		Name:        "mem",
		Description: "in-memory development ledger (state lost on exit)",
		Usage:       connregistry.UsageCLI | connregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			// No flags: mem:// endpoints carry no configuration.
		},
		Dial: func(ctx context.Context, endpoint string) (ledger.Conn, error) {
			return New(), nil
		},
	})
}
