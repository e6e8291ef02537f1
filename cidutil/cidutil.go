// Package cidutil computes and parses the content identifiers used across
// the publish pipeline.
//
// Identifiers are always CIDv1. Two codecs are supported: raw for opaque
// leaf/chunk bytes, and dag-pb for directory and file-manifest nodes. Two
// hash algorithms are supported, both with 32-byte digests: sha2-256 and
// blake2b-256.
//
// Everything in this package is a pure function: no network, no disk, no
// randomness. Identical (codec, hash, bytes) inputs always yield identical
// identifiers.
package cidutil

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/multiformats/go-varint"
)

// Codec is the format interpretation tag on a content identifier.
type Codec uint64

const (
	// Raw marks opaque bytes (file content, chunks).
	Raw Codec = cid.Raw
	// DagPB marks a dag-pb manifest node (file or directory).
	DagPB Codec = cid.DagProtobuf
)

// HashAlg is a multihash algorithm code.
type HashAlg uint64

const (
	// SHA2_256 is the default hash algorithm.
	SHA2_256 HashAlg = multihash.SHA2_256
	// Blake2b256 is blake2b with a 32-byte digest (multihash code 0xb220).
	Blake2b256 HashAlg = multihash.BLAKE2B_MIN + 31
)

// DigestSize is the only supported digest length.
const DigestSize = 32

var (
	ErrUnsupportedCodec = errors.New("cidutil: unsupported codec")
	ErrUnsupportedHash  = errors.New("cidutil: unsupported hash algorithm")
)

// SupportedCodec reports whether c is one of the pipeline's codecs.
func SupportedCodec(c Codec) bool {
	return c == Raw || c == DagPB
}

// SupportedHash reports whether h is one of the pipeline's hash algorithms.
func SupportedHash(h HashAlg) bool {
	return h == SHA2_256 || h == Blake2b256
}

// Compute derives the content identifier of data under the given codec and
// hash algorithm.
func Compute(data []byte, codec Codec, hash HashAlg) (cid.Cid, error) {
	if !SupportedCodec(codec) {
		return cid.Undef, fmt.Errorf("%w: 0x%x", ErrUnsupportedCodec, uint64(codec))
	}
	if !SupportedHash(hash) {
		return cid.Undef, fmt.Errorf("%w: 0x%x", ErrUnsupportedHash, uint64(hash))
	}
	sum, err := multihash.Sum(data, uint64(hash), DigestSize)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(uint64(codec), sum), nil
}

// ComputeString is Compute rendered to the canonical string form.
func ComputeString(data []byte, codec Codec, hash HashAlg) (string, error) {
	id, err := Compute(data, codec, hash)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Parse decodes the canonical string form of a content identifier.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, errors.New("cidutil: undefined cid")
	}
	return id, nil
}

// CIDv1RawSHA256 returns a CIDv1 string using the "raw" multicodec
// and a sha2-256 multihash.
func CIDv1RawSHA256(data []byte) string {
	id, err := Compute(data, Raw, SHA2_256)
	if err != nil {
		// Compute only errors for unsupported codec/hash values; with Raw and
		// SHA2_256 this is unreachable.
		return ""
	}
	return id.String()
}

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	return Compute(data, Raw, SHA2_256)
}

// Layout is the decoded binary layout of a content identifier:
// [version][codec varint][hash varint][digest length varint][digest bytes].
type Layout struct {
	Version    uint64
	Codec      Codec
	Hash       HashAlg
	DigestSize uint64
}

// Describe decodes the binary layout of id.
func Describe(id cid.Cid) (Layout, error) {
	return DescribeBytes(id.Bytes())
}

// DescribeBytes decodes the binary layout of raw identifier bytes.
func DescribeBytes(b []byte) (Layout, error) {
	var out Layout
	fields := []*uint64{&out.Version, (*uint64)(&out.Codec), (*uint64)(&out.Hash), &out.DigestSize}
	for _, f := range fields {
		v, n, err := varint.FromUvarint(b)
		if err != nil {
			return Layout{}, fmt.Errorf("cidutil: truncated identifier: %w", err)
		}
		*f = v
		b = b[n:]
	}
	if uint64(len(b)) != out.DigestSize {
		return Layout{}, fmt.Errorf("cidutil: digest length mismatch: header says %d, have %d", out.DigestSize, len(b))
	}
	return out, nil
}
