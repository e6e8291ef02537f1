package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/caspub/model"
)

const testSeedHex = "0101010101010101010101010101010101010101010101010101010101010101"

func writeSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	site := filepath.Join(dir, "site")
	if err := os.MkdirAll(filepath.Join(site, "css"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	files := map[string]string{
		"index.html":  "<html>home</html>",
		"css/app.css": "body { margin: 0 }",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(site, name), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return site
}

func TestRun_PutAgainstMemLedger(t *testing.T) {
	site := writeSite(t)
	var out, errOut bytes.Buffer

	code := run([]string{"put", "--endpoint", "mem://local", "--seed-hex", testSeedHex, site}, &out, &errOut)
	if code != 0 {
		t.Fatalf("put exited %d: %s", code, errOut.String())
	}
	root := strings.TrimSpace(out.String())
	if !strings.HasPrefix(root, "bafy") {
		t.Fatalf("root is not a dag-pb CIDv1: %q", root)
	}
}

func TestRun_PutJSONRecord(t *testing.T) {
	site := writeSite(t)
	var out, errOut bytes.Buffer

	code := run([]string{"put", "--endpoint", "mem://local", "--seed-hex", testSeedHex, "--json", "--concurrency", "2", site}, &out, &errOut)
	if code != 0 {
		t.Fatalf("put exited %d: %s", code, errOut.String())
	}

	var record model.UploadRecord
	if err := json.Unmarshal(out.Bytes(), &record); err != nil {
		t.Fatalf("invalid JSON record: %v", err)
	}
	if record.Root == "" || len(record.Blocks) == 0 {
		t.Fatalf("incomplete record: %+v", record)
	}
	if record.Contenthash == "" || !strings.HasPrefix(record.Contenthash, "0xe301") {
		t.Fatalf("contenthash: %q", record.Contenthash)
	}
	if record.TotalBytes == 0 {
		t.Fatalf("total bytes missing")
	}
	for _, b := range record.Blocks {
		if b.TxHash == "" || b.BlockHash == "" {
			t.Fatalf("block %s missing receipt hashes", b.CID)
		}
	}
}

func TestRun_CIDCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var out, errOut bytes.Buffer
	code := run([]string{"cid", path}, &out, &errOut)
	if code != 0 {
		t.Fatalf("cid exited %d: %s", code, errOut.String())
	}
	got := strings.TrimSpace(out.String())
	want := "bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku"
	if got != want {
		t.Fatalf("cid: got %s want %s", got, want)
	}
}

func TestRun_ContenthashRoundTrip(t *testing.T) {
	const id = "bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku"

	var out, errOut bytes.Buffer
	if code := run([]string{"contenthash", id}, &out, &errOut); code != 0 {
		t.Fatalf("contenthash exited %d: %s", code, errOut.String())
	}
	hexHash := strings.TrimSpace(out.String())
	if !strings.HasPrefix(hexHash, "0xe301") {
		t.Fatalf("contenthash: %q", hexHash)
	}

	out.Reset()
	if code := run([]string{"contenthash", "--decode", hexHash}, &out, &errOut); code != 0 {
		t.Fatalf("decode exited %d: %s", code, errOut.String())
	}
	if strings.TrimSpace(out.String()) != id {
		t.Fatalf("round trip: got %s want %s", out.String(), id)
	}
}

func TestRun_BundleExportInspect(t *testing.T) {
	site := writeSite(t)
	bundlePath := filepath.Join(t.TempDir(), "site.bundle")

	var out, errOut bytes.Buffer
	code := run([]string{"bundle", "export", "--out", bundlePath, site}, &out, &errOut)
	if code != 0 {
		t.Fatalf("export exited %d: %s", code, errOut.String())
	}
	root := strings.TrimSpace(out.String())

	out.Reset()
	code = run([]string{"bundle", "inspect", bundlePath}, &out, &errOut)
	if code != 0 {
		t.Fatalf("inspect exited %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), root) {
		t.Fatalf("inspect output missing root %s:\n%s", root, out.String())
	}
}

func TestRun_QuotaAndAuthorize(t *testing.T) {
	// mem:// connections are per-process instances, so quota against a fresh
	// connection reports unauthorized.
	var out, errOut bytes.Buffer
	code := run([]string{"quota", "--endpoint", "mem://local", "--account", "nobody"}, &out, &errOut)
	if code == 0 {
		t.Fatalf("expected failure for unauthorized account")
	}
	if !strings.Contains(errOut.String(), string(model.ErrNotAuthorized)) {
		t.Fatalf("error output: %s", errOut.String())
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"bogus"}, &out, &errOut); code != 2 {
		t.Fatalf("exit code: %d", code)
	}
}
