package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/caspub/bundle"
	"xdao.co/caspub/cidutil"
	"xdao.co/caspub/dlog"
	"xdao.co/caspub/gateway"
	"xdao.co/caspub/keys"
	"xdao.co/caspub/ledger"
	"xdao.co/caspub/ledger/connregistry"
	"xdao.co/caspub/merkle"
	"xdao.co/caspub/model"
	"xdao.co/caspub/upload"

	_ "xdao.co/caspub/ledger/grpcnode"
	_ "xdao.co/caspub/ledger/memledger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "put":
		return cmdPut(args[1:], out, errOut)
	case "cid":
		return cmdCID(args[1:], out, errOut)
	case "contenthash":
		return cmdContenthash(args[1:], out, errOut)
	case "authorize":
		return cmdAuthorize(args[1:], out, errOut)
	case "quota":
		return cmdQuota(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "bundle":
		return cmdBundle(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "xdao-caspub: content-addressable publishing over a ledger")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  xdao-caspub put --endpoint <url> --signer <name> [--concurrency N] [--chunk-size N] [--hash sha2-256|blake2b-256] [--verify] [--json] <path>")
	fmt.Fprintln(w, "  xdao-caspub cid [--codec raw|dag-pb] [--hash sha2-256|blake2b-256] <file>")
	fmt.Fprintln(w, "  xdao-caspub contenthash <CID>")
	fmt.Fprintln(w, "  xdao-caspub authorize --endpoint <url> --signer <name> --target <address> [--transactions N] [--bytes N]")
	fmt.Fprintln(w, "  xdao-caspub quota --endpoint <url> --account <address>")
	fmt.Fprintln(w, "  xdao-caspub verify [--gateway <url> ...] <CID>")
	fmt.Fprintln(w, "  xdao-caspub bundle export --out <file> <path>")
	fmt.Fprintln(w, "  xdao-caspub bundle inspect <file>")
	fmt.Fprintln(w, "  xdao-caspub key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  xdao-caspub key list")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - endpoints: mem://local (in-process dev ledger) or grpc://host:port")
	fmt.Fprintln(w, "  - every block is one ledger transaction; put waits for finalization")
	fmt.Fprintln(w, "  - keys live under ~/.caspub/keys/<name> (0600 seed files)")
	fmt.Fprintln(w, "  - --seed-hex must be 32 bytes (64 hex chars) ed25519 seed")
}

func cmdPut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	endpoint := fs.String("endpoint", "mem://local", "ledger endpoint")
	signerName := fs.String("signer", "", "key name to sign with")
	seedHex := fs.String("seed-hex", "", "ed25519 seed as 64 hex chars (instead of --signer)")
	concurrency := fs.Int("concurrency", 1, "parallel block submissions")
	chunkSize := fs.Int("chunk-size", 0, "chunk size in bytes (default 4 MiB)")
	hashName := fs.String("hash", "sha2-256", "hash algorithm (sha2-256, blake2b-256)")
	verify := fs.Bool("verify", false, "probe public gateways after upload")
	jsonOut := fs.Bool("json", false, "print the full upload record as JSON")
	logLevel := fs.String("log-level", dlog.LogLevelNone, "log level (debug, info, none)")
	connregistry.RegisterFlags(fs, connregistry.UsageCLI)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: xdao-caspub put [flags] <path>")
		return 2
	}

	hash, err := parseHash(*hashName)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	signer, err := loadSigner(*signerName, *seedHex)
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 1
	}
	log, err := dlog.GetLogger(*logLevel)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	conn, err := connregistry.DialEndpoint(ctx, *endpoint, connregistry.UsageCLI)
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer conn.Close()

	opts := upload.Options{
		ChunkSize:   *chunkSize,
		Hash:        hash,
		Concurrency: *concurrency,
		Log:         log,
	}
	if *verify {
		opts.Gateways = gateway.DefaultGateways
	}

	outcome, err := upload.Publish(ctx, conn, signer, fs.Arg(0), opts)
	if err != nil {
		fmt.Fprintln(errOut, model.MapError(err))
		return 1
	}

	if *jsonOut {
		record := uploadRecord(outcome, signer.Address(), conn.Endpoint())
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(record); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		return 0
	}

	fmt.Fprintln(out, outcome.Root)
	fmt.Fprintf(errOut, "contenthash: %s\n", cidutil.ContenthashHex(outcome.Root))
	fmt.Fprintf(errOut, "blocks: %d finalized\n", len(outcome.Results))
	for _, nr := range outcome.Reports {
		fmt.Fprintf(errOut, "gateway %s: %d/%d resolvable\n", nr.Gateway.Name, nr.Report.Resolvable, nr.Report.Total)
	}
	return 0
}

func uploadRecord(outcome *upload.Outcome, account ledger.AccountID, endpoint string) model.UploadRecord {
	record := model.UploadRecord{
		Root:       outcome.Root.String(),
		Account:    string(account),
		Endpoint:   endpoint,
		TotalBytes: outcome.TotalBytes,
	}
	record.Contenthash = cidutil.ContenthashHex(outcome.Root)
	for _, r := range outcome.Results {
		summary := model.BlockSummary{CID: r.ID.String(), Size: r.Size}
		if r.ID.Prefix().Codec == uint64(cidutil.DagPB) {
			summary.Codec = "dag-pb"
		} else {
			summary.Codec = "raw"
		}
		if r.Receipt != nil {
			summary.TxHash = r.Receipt.TxHash
			summary.BlockHash = r.Receipt.BlockHash
			summary.StoredIndex = r.Receipt.StoredIndex
		}
		record.Blocks = append(record.Blocks, summary)
	}
	for _, nr := range outcome.Reports {
		report := model.GatewayReport{
			Gateway:    nr.Gateway.Name,
			URL:        nr.Gateway.URL,
			Total:      nr.Report.Total,
			Resolvable: nr.Report.Resolvable,
		}
		for _, id := range nr.Report.Missing {
			report.Missing = append(report.Missing, id.String())
		}
		record.Gateways = append(record.Gateways, report)
	}
	return record
}

func cmdCID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("cid", flag.ContinueOnError)
	fs.SetOutput(errOut)
	codecName := fs.String("codec", "raw", "codec (raw, dag-pb)")
	hashName := fs.String("hash", "sha2-256", "hash algorithm (sha2-256, blake2b-256)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: xdao-caspub cid [--codec raw|dag-pb] [--hash sha2-256|blake2b-256] <file>")
		return 2
	}

	codec, err := parseCodec(*codecName)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	hash, err := parseHash(*hashName)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	id, err := cidutil.Compute(b, codec, hash)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintln(out, id)
	return 0
}

func cmdContenthash(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("contenthash", flag.ContinueOnError)
	fs.SetOutput(errOut)
	decode := fs.Bool("decode", false, "treat the argument as a contenthash and print its CID")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: xdao-caspub contenthash [--decode] <CID|0xhex>")
		return 2
	}

	if *decode {
		id, err := cidutil.ParseContenthashHex(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		fmt.Fprintln(out, id)
		return 0
	}

	id, err := cidutil.Parse(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "invalid CID: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, cidutil.ContenthashHex(id))
	return 0
}

func cmdAuthorize(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("authorize", flag.ContinueOnError)
	fs.SetOutput(errOut)
	endpoint := fs.String("endpoint", "mem://local", "ledger endpoint")
	signerName := fs.String("signer", "", "sudo key name to sign with")
	seedHex := fs.String("seed-hex", "", "ed25519 seed as 64 hex chars (instead of --signer)")
	target := fs.String("target", "", "account address to authorize")
	transactions := fs.Uint64("transactions", ledger.DefaultTransactionQuota, "transaction quota")
	byteQuota := fs.Int64("bytes", 0, "byte quota (default 1 TiB)")
	connregistry.RegisterFlags(fs, connregistry.UsageCLI)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *target == "" {
		fmt.Fprintln(errOut, "usage: xdao-caspub authorize --endpoint <url> --signer <name> --target <address>")
		return 2
	}

	signer, err := loadSigner(*signerName, *seedHex)
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 1
	}

	ctx := context.Background()
	conn, err := connregistry.DialEndpoint(ctx, *endpoint, connregistry.UsageCLI)
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer conn.Close()

	quota := ledger.Quota{Transactions: *transactions}
	if *byteQuota > 0 {
		quota.Bytes = big.NewInt(*byteQuota)
	}
	auth := ledger.Authorizer{Conn: conn, Log: zap.NewNop()}
	if err := auth.Authorize(ctx, signer, ledger.AccountID(*target), quota); err != nil {
		fmt.Fprintln(errOut, model.MapError(err))
		return 1
	}
	fmt.Fprintf(out, "authorized %s\n", *target)
	return 0
}

func cmdQuota(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("quota", flag.ContinueOnError)
	fs.SetOutput(errOut)
	endpoint := fs.String("endpoint", "mem://local", "ledger endpoint")
	account := fs.String("account", "", "account address")
	connregistry.RegisterFlags(fs, connregistry.UsageCLI)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *account == "" {
		fmt.Fprintln(errOut, "usage: xdao-caspub quota --endpoint <url> --account <address>")
		return 2
	}

	ctx := context.Background()
	conn, err := connregistry.DialEndpoint(ctx, *endpoint, connregistry.UsageCLI)
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer conn.Close()

	auth := ledger.Authorizer{Conn: conn}
	q, err := auth.Check(ctx, ledger.AccountID(*account))
	if err != nil {
		fmt.Fprintln(errOut, model.MapError(err))
		return 1
	}

	status := model.QuotaStatus{
		Account:      *account,
		Transactions: q.Transactions,
		Bytes:        q.Bytes.String(),
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var gateways stringList
	fs.Var(&gateways, "gateway", "gateway base URL (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: xdao-caspub verify [--gateway <url> ...] <CID>")
		return 2
	}
	id, err := cidutil.Parse(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "invalid CID: %v\n", err)
		return 1
	}

	targets := gateway.DefaultGateways
	if len(gateways) > 0 {
		targets = nil
		for _, u := range gateways {
			targets = append(targets, gateway.NamedGateway{Name: u, URL: u})
		}
	}

	v := gateway.Verifier{}
	reports := v.ProbeAll(context.Background(), []cid.Cid{id}, targets)
	resolvable := false
	for _, nr := range reports {
		state := "missing"
		if nr.Report.Resolvable == nr.Report.Total {
			state = "resolvable"
			resolvable = true
		}
		fmt.Fprintf(out, "%s\t%s\n", nr.Gateway.Name, state)
	}
	if !resolvable {
		return 1
	}
	return 0
}

func cmdBundle(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-caspub bundle <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: export, inspect")
		return 2
	}
	switch args[0] {
	case "export":
		fs := flag.NewFlagSet("bundle export", flag.ContinueOnError)
		fs.SetOutput(errOut)
		outPath := fs.String("out", "", "output bundle file")
		chunkSize := fs.Int("chunk-size", 0, "chunk size in bytes (default 4 MiB)")
		hashName := fs.String("hash", "sha2-256", "hash algorithm (sha2-256, blake2b-256)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if *outPath == "" || fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: xdao-caspub bundle export --out <file> <path>")
			return 2
		}
		hash, err := parseHash(*hashName)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}

		tree, err := merkle.Builder{ChunkSize: *chunkSize, Hash: hash}.Directory(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(errOut, model.MapError(err))
			return 1
		}
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		ids := make([]cid.Cid, 0, tree.Len())
		for _, b := range tree.Blocks() {
			ids = append(ids, b.ID)
		}
		if err := bundle.Export(f, tree, ids, bundle.ExportOptions{Root: tree.Root, IncludeIndex: true}); err != nil {
			f.Close()
			fmt.Fprintln(errOut, err)
			return 1
		}
		if err := f.Close(); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		fmt.Fprintln(out, tree.Root)
		return 0
	case "inspect":
		fs := flag.NewFlagSet("bundle inspect", flag.ContinueOnError)
		fs.SetOutput(errOut)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: xdao-caspub bundle inspect <file>")
			return 2
		}
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		defer f.Close()
		blocks, err := bundle.Import(f)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		for _, b := range blocks {
			fmt.Fprintf(out, "%s\t%d\n", b.ID, len(b.Data))
		}
		return 0
	default:
		fmt.Fprintf(errOut, "unknown bundle subcommand: %s\n", args[0])
		return 2
	}
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-caspub key <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: init, list")
		return 2
	}
	switch args[0] {
	case "init":
		fs := flag.NewFlagSet("key init", flag.ContinueOnError)
		fs.SetOutput(errOut)
		name := fs.String("name", "", "key name")
		seedHex := fs.String("seed-hex", "", "ed25519 seed as 64 hex chars (generated when empty)")
		force := fs.Bool("force", false, "overwrite an existing key")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if *name == "" {
			fmt.Fprintln(errOut, "usage: xdao-caspub key init --name <name> [--seed-hex <64hex>] [--force]")
			return 2
		}

		var seed []byte
		if *seedHex != "" {
			var err error
			seed, err = keys.ParseSeedHex(*seedHex)
			if err != nil {
				fmt.Fprintf(errOut, "invalid seed: %v\n", err)
				return 2
			}
		} else {
			seed = make([]byte, 32)
			if _, err := rand.Read(seed); err != nil {
				fmt.Fprintln(errOut, err)
				return 1
			}
		}

		ks, err := keys.OpenKeyStore("")
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		address, path, err := ks.InitializeAccountKey(*name, seed, *force)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		fmt.Fprintf(out, "%s\t%s\n", address, path)
		return 0
	case "list":
		fs := flag.NewFlagSet("key list", flag.ContinueOnError)
		fs.SetOutput(errOut)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		ks, err := keys.OpenKeyStore("")
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		names, err := ks.List()
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		for _, name := range names {
			signer, err := ks.LoadSigner(name)
			if err != nil {
				fmt.Fprintf(out, "%s\t(unreadable: %v)\n", name, err)
				continue
			}
			fmt.Fprintf(out, "%s\t%s\n", name, signer.Address())
		}
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n", args[0])
		return 2
	}
}

func loadSigner(name, seedHex string) (ledger.Signer, error) {
	switch {
	case seedHex != "":
		seed, err := keys.ParseSeedHex(seedHex)
		if err != nil {
			return nil, err
		}
		return keys.NewMemorySigner(seed)
	case name != "":
		ks, err := keys.OpenKeyStore("")
		if err != nil {
			return nil, err
		}
		return ks.LoadSigner(name)
	default:
		return nil, errors.New("either --signer or --seed-hex is required")
	}
}

func parseCodec(name string) (cidutil.Codec, error) {
	switch strings.ToLower(name) {
	case "raw":
		return cidutil.Raw, nil
	case "dag-pb", "dagpb":
		return cidutil.DagPB, nil
	default:
		return 0, fmt.Errorf("unknown codec %q (raw, dag-pb)", name)
	}
}

func parseHash(name string) (cidutil.HashAlg, error) {
	switch strings.ToLower(name) {
	case "sha2-256", "sha256":
		return cidutil.SHA2_256, nil
	case "blake2b-256", "blake2b":
		return cidutil.Blake2b256, nil
	default:
		return 0, fmt.Errorf("unknown hash %q (sha2-256, blake2b-256)", name)
	}
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
