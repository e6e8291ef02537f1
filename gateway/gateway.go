// Package gateway probes public IPFS gateways for uploaded content.
//
// Verification is best-effort: a gateway that is down, slow, or has not yet
// discovered the content must never fail an upload that the ledger already
// finalized. Probes therefore report booleans, not errors.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
)

// DefaultTimeout bounds one gateway probe.
const DefaultTimeout = 30 * time.Second

// Result is the outcome of probing one identifier on one gateway.
type Result struct {
	Resolvable bool
	// StatusCode is the HTTP status, 0 when the request never completed.
	StatusCode int
}

// Report aggregates probes of many identifiers against one gateway.
type Report struct {
	Total      int
	Resolvable int
	// Missing lists the identifiers the gateway could not resolve.
	Missing []cid.Cid
}

// Verifier checks content resolvability over a gateway's HTTP interface.
type Verifier struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
}

func (v Verifier) client() *http.Client {
	if v.Client != nil {
		return v.Client
	}
	return http.DefaultClient
}

func (v Verifier) timeout() time.Duration {
	if v.Timeout > 0 {
		return v.Timeout
	}
	return DefaultTimeout
}

// Verify probes one identifier with a HEAD request to
// <gateway>/ipfs/<cid>. Transport failures and timeouts report
// Resolvable: false; Verify never returns an error.
func (v Verifier) Verify(ctx context.Context, id cid.Cid, gatewayURL string) Result {
	probeURL, err := probeURL(gatewayURL, id)
	if err != nil {
		return Result{}
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
	if err != nil {
		return Result{}
	}
	resp, err := v.client().Do(req)
	if err != nil {
		return Result{}
	}
	resp.Body.Close()

	return Result{
		Resolvable: resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
	}
}

// VerifyMany probes identifiers strictly sequentially, keeping the load on
// public gateways polite.
func (v Verifier) VerifyMany(ctx context.Context, ids []cid.Cid, gatewayURL string) Report {
	report := Report{Total: len(ids)}
	for _, id := range ids {
		if v.Verify(ctx, id, gatewayURL).Resolvable {
			report.Resolvable++
		} else {
			report.Missing = append(report.Missing, id)
		}
	}
	return report
}

func probeURL(gatewayURL string, id cid.Cid) (string, error) {
	base := strings.TrimSuffix(gatewayURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("gateway: invalid URL %q", gatewayURL)
	}
	return base + "/ipfs/" + id.String(), nil
}
