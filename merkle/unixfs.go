package merkle

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Hand-written dag-pb / UnixFS wire encoding.
//
// Like the gRPC transport, this is intentionally codegen-free: the two
// message shapes are tiny and frozen by the dag-pb spec, and canonical field
// ordering (links before data, link fields hash/name/tsize) matters for
// identifier stability, so an explicit encoder is safer than generated
// marshaling.

// UnixFS node types (Data.Type).
const (
	unixfsDirectory = 1
	unixfsFile      = 2
)

// link is one dag-pb PBLink: child identifier bytes, entry name (empty for
// file chunks), and the cumulative encoded size of the child subtree.
type link struct {
	hash  []byte
	name  string
	tsize uint64
}

// encodeDagPB serializes a PBNode in canonical dag-pb form: repeated Links
// (field 2) first, then the UnixFS Data payload (field 1).
func encodeDagPB(links []link, unixfsData []byte) []byte {
	var out []byte
	for _, l := range links {
		var lb []byte
		lb = protowire.AppendTag(lb, 1, protowire.BytesType)
		lb = protowire.AppendBytes(lb, l.hash)
		lb = protowire.AppendTag(lb, 2, protowire.BytesType)
		lb = protowire.AppendString(lb, l.name)
		lb = protowire.AppendTag(lb, 3, protowire.VarintType)
		lb = protowire.AppendVarint(lb, l.tsize)

		out = protowire.AppendTag(out, 2, protowire.BytesType)
		out = protowire.AppendBytes(out, lb)
	}
	out = protowire.AppendTag(out, 1, protowire.BytesType)
	out = protowire.AppendBytes(out, unixfsData)
	return out
}

// encodeUnixFSFile serializes the UnixFS Data message for a chunked file:
// Type=File, filesize, and one blocksize per chunk in order.
func encodeUnixFSFile(filesize uint64, blockSizes []uint64) []byte {
	var out []byte
	out = protowire.AppendTag(out, 1, protowire.VarintType)
	out = protowire.AppendVarint(out, unixfsFile)
	out = protowire.AppendTag(out, 3, protowire.VarintType)
	out = protowire.AppendVarint(out, filesize)
	for _, s := range blockSizes {
		out = protowire.AppendTag(out, 4, protowire.VarintType)
		out = protowire.AppendVarint(out, s)
	}
	return out
}

// encodeUnixFSDirectory serializes the UnixFS Data message for a directory
// node. Entries live in the enclosing PBNode links.
func encodeUnixFSDirectory() []byte {
	var out []byte
	out = protowire.AppendTag(out, 1, protowire.VarintType)
	out = protowire.AppendVarint(out, unixfsDirectory)
	return out
}
