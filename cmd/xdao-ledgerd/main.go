package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"xdao.co/caspub/dlog"
	"xdao.co/caspub/ledger"
	"xdao.co/caspub/ledger/grpcnode"
	"xdao.co/caspub/ledger/memledger"
)

func main() {
	fs := flag.NewFlagSet("xdao-ledgerd", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:9944", "listen address")
	sudo := fs.String("sudo", "", "restrict authorize calls to this account address")
	logLevel := fs.String("log-level", dlog.LogLevelInfo, "log level (debug, info, none)")

	_ = fs.Parse(os.Args[1:])

	log, err := dlog.GetLogger(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	backend := memledger.New()
	if *sudo != "" {
		backend.SetSudo(ledger.AccountID(*sudo))
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpcnode.RegisterLedgerNodeServer(s, &grpcnode.Server{Backend: backend, Log: log})

	fmt.Fprintf(os.Stderr, "xdao-ledgerd listening on %s (in-memory ledger, state lost on exit)\n", lis.Addr().String())
	if err := s.Serve(lis); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
