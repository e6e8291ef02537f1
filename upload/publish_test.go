package upload

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"xdao.co/caspub/gateway"
	"xdao.co/caspub/ledger"
	"xdao.co/caspub/ledger/memledger"
	"xdao.co/caspub/ledger/testkit"
)

func publishFixture(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"site/index.html":  "<html>home</html>",
		"site/css/app.css": "body { margin: 0 }",
		"site/logo.png":    strings.Repeat("p", 4096),
	}
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", path, err)
		}
	}
	return fs
}

func TestPublish_EndToEnd(t *testing.T) {
	l := memledger.New()
	signer := testkit.NewTestSigner(t, 1)
	fs := publishFixture(t)

	outcome, err := Publish(context.Background(), l, signer, "site", Options{
		Fs:          fs,
		Concurrency: 3,
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !outcome.Root.Defined() {
		t.Fatalf("undefined root")
	}
	if len(outcome.Results) != l.Len() {
		t.Fatalf("results %d vs stored %d", len(outcome.Results), l.Len())
	}
	// The wrapping directory node itself must be on the ledger.
	if _, ok := l.Block(outcome.Root.String()); !ok {
		t.Fatalf("root block not stored")
	}
	if outcome.Reports != nil {
		t.Fatalf("unexpected gateway reports without gateways")
	}
}

func TestPublish_SequentialMatchesParallelRoot(t *testing.T) {
	signer := testkit.NewTestSigner(t, 2)

	seq, err := Publish(context.Background(), memledger.New(), signer, "site", Options{Fs: publishFixture(t)})
	if err != nil {
		t.Fatalf("sequential Publish failed: %v", err)
	}
	par, err := Publish(context.Background(), memledger.New(), signer, "site", Options{Fs: publishFixture(t), Concurrency: 4})
	if err != nil {
		t.Fatalf("parallel Publish failed: %v", err)
	}
	if !seq.Root.Equals(par.Root) {
		t.Fatalf("roots diverge: %s vs %s", seq.Root, par.Root)
	}
}

func TestPublish_GatewayVerification(t *testing.T) {
	l := memledger.New()
	signer := testkit.NewTestSigner(t, 3)

	// The fake gateway resolves exactly what the ledger stores.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/ipfs/")
		if _, ok := l.Block(id); ok {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	outcome, err := Publish(context.Background(), l, signer, "site", Options{
		Fs:       publishFixture(t),
		Gateways: []gateway.NamedGateway{{Name: "test", URL: srv.URL}},
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(outcome.Reports) != 1 {
		t.Fatalf("reports: %d", len(outcome.Reports))
	}
	report := outcome.Reports[0].Report
	if report.Total != len(outcome.Results) || report.Resolvable != report.Total {
		t.Fatalf("verification report: %+v", report)
	}
}

func TestPublish_ProductionWithoutQuotaFailsEarly(t *testing.T) {
	conn := &recordingConn{}
	prod := productionConn{conn}
	signer := testkit.NewTestSigner(t, 4)

	_, err := Publish(context.Background(), prod, signer, "site", Options{Fs: publishFixture(t)})
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("got %v want ErrUnauthorized", err)
	}
	if len(conn.nonces) != 0 {
		t.Fatalf("blocks were submitted despite missing quota")
	}
}

func TestPublish_MissingPath(t *testing.T) {
	l := memledger.New()
	signer := testkit.NewTestSigner(t, 5)
	_, err := Publish(context.Background(), l, signer, "does/not/exist", Options{Fs: afero.NewMemMapFs()})
	if err == nil {
		t.Fatalf("expected error for missing path")
	}
}

// productionConn masks the dev endpoint so Ensure treats the connection as a
// production chain.
type productionConn struct{ *recordingConn }

func (productionConn) Endpoint() string { return "grpc://ledger.example.com:443" }
