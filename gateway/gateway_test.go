package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/caspub/cidutil"
)

func testCID(t *testing.T, data string) cid.Cid {
	t.Helper()
	id, err := cidutil.CIDv1RawSHA256CID([]byte(data))
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
	}
	return id
}

func TestVerify_ResolvableContent(t *testing.T) {
	id := testCID(t, "resolvable")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method: got %s want HEAD", r.Method)
		}
		if r.URL.Path != "/ipfs/"+id.String() {
			t.Errorf("path: got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := Verifier{}.Verify(context.Background(), id, srv.URL)
	if !res.Resolvable {
		t.Fatalf("expected resolvable, got %+v", res)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", res.StatusCode)
	}
}

func TestVerify_MissingContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res := Verifier{}.Verify(context.Background(), testCID(t, "missing"), srv.URL)
	if res.Resolvable {
		t.Fatalf("expected unresolvable, got %+v", res)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status: got %d", res.StatusCode)
	}
}

func TestVerify_UnreachableGatewayIsNotAnError(t *testing.T) {
	// Reserved TEST-NET-1 address; nothing listens there. The 1ms timeout
	// keeps the test fast.
	v := Verifier{Timeout: time.Millisecond}
	res := v.Verify(context.Background(), testCID(t, "unreachable"), "http://192.0.2.1:1")
	if res.Resolvable {
		t.Fatalf("expected unresolvable for unreachable gateway")
	}
	if res.StatusCode != 0 {
		t.Fatalf("status: got %d want 0", res.StatusCode)
	}
}

func TestVerify_InvalidGatewayURL(t *testing.T) {
	res := Verifier{}.Verify(context.Background(), testCID(t, "bad url"), "not a url")
	if res.Resolvable {
		t.Fatalf("expected unresolvable for invalid URL")
	}
}

func TestVerifyMany_CountsAndMissing(t *testing.T) {
	present := testCID(t, "present")
	absent := testCID(t, "absent")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ipfs/"+present.String() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	report := Verifier{}.VerifyMany(context.Background(), []cid.Cid{present, absent}, srv.URL)
	if report.Total != 2 || report.Resolvable != 1 {
		t.Fatalf("report: %+v", report)
	}
	if len(report.Missing) != 1 || !report.Missing[0].Equals(absent) {
		t.Fatalf("missing: %v", report.Missing)
	}
}

func TestProbeAll_IndependentGateways(t *testing.T) {
	id := testCID(t, "probe all")
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	v := Verifier{Timeout: 50 * time.Millisecond}
	reports := v.ProbeAll(context.Background(), []cid.Cid{id}, []NamedGateway{
		{Name: "down", URL: "http://192.0.2.1:1"},
		{Name: "up", URL: up.URL},
	})
	if len(reports) != 2 {
		t.Fatalf("reports: %d", len(reports))
	}
	if reports[0].Gateway.Name != "down" || reports[0].Report.Resolvable != 0 {
		t.Fatalf("down gateway report: %+v", reports[0])
	}
	if reports[1].Gateway.Name != "up" || reports[1].Report.Resolvable != 1 {
		t.Fatalf("up gateway report: %+v", reports[1])
	}
}
