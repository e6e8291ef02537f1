package gateway

import (
	"context"

	"github.com/ipfs/go-cid"
)

// NamedGateway is a gateway endpoint with a display name for reports.
type NamedGateway struct {
	Name string
	URL  string
}

// NamedReport is one gateway's aggregate probe outcome.
type NamedReport struct {
	Gateway NamedGateway
	Report  Report
}

// DefaultGateways are well-known public gateways, probed in order.
var DefaultGateways = []NamedGateway{
	{Name: "ipfs.io", URL: "https://ipfs.io"},
	{Name: "dweb.link", URL: "https://dweb.link"},
}

// ProbeAll probes every identifier against every gateway, in order, and
// returns one report per gateway. Gateways are independent: one being
// unreachable does not stop the others.
func (v Verifier) ProbeAll(ctx context.Context, ids []cid.Cid, gateways []NamedGateway) []NamedReport {
	reports := make([]NamedReport, 0, len(gateways))
	for _, gw := range gateways {
		reports = append(reports, NamedReport{
			Gateway: gw,
			Report:  v.VerifyMany(ctx, ids, gw.URL),
		})
	}
	return reports
}
