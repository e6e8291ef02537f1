package cidutil

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
)

// The content-addressing namespace prefix used when an identifier is embedded
// into a resolver "contenthash" record (EIP-1577 ipfs-ns).
const (
	contenthashNS      = 0xe3
	contenthashVersion = 0x01
)

// ErrNotContentNamespace is returned when contenthash bytes do not carry the
// content-addressing namespace prefix or are too short to hold one.
var ErrNotContentNamespace = errors.New("cidutil: not a content-namespace contenthash")

// Contenthash returns the resolver contenthash encoding of id:
// 0xE3 0x01 followed by the identifier's binary form.
func Contenthash(id cid.Cid) []byte {
	raw := id.Bytes()
	out := make([]byte, 0, len(raw)+2)
	out = append(out, contenthashNS, contenthashVersion)
	return append(out, raw...)
}

// ContenthashHex renders Contenthash as a 0x-prefixed hex string, the form
// stored in resolver records.
func ContenthashHex(id cid.Cid) string {
	return "0x" + hex.EncodeToString(Contenthash(id))
}

// ParseContenthash strips the content-namespace prefix and decodes the
// embedded identifier. Any malformed input fails with
// ErrNotContentNamespace; low-level decoding errors never escape.
func ParseContenthash(b []byte) (cid.Cid, error) {
	if len(b) < 3 {
		return cid.Undef, fmt.Errorf("%w: %d bytes", ErrNotContentNamespace, len(b))
	}
	if b[0] != contenthashNS || b[1] != contenthashVersion {
		return cid.Undef, fmt.Errorf("%w: prefix 0x%02x%02x", ErrNotContentNamespace, b[0], b[1])
	}
	id, err := cid.Cast(b[2:])
	if err != nil || !id.Defined() {
		return cid.Undef, fmt.Errorf("%w: malformed identifier payload", ErrNotContentNamespace)
	}
	return id, nil
}

// ParseContenthashHex decodes a 0x-prefixed hex contenthash record.
func ParseContenthashHex(s string) (cid.Cid, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: invalid hex", ErrNotContentNamespace)
	}
	return ParseContenthash(b)
}
