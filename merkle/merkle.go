// Package merkle assembles files and directory trees into sets of
// content-addressed blocks linked by a UnixFS-compatible Merkle-DAG.
//
// A small file becomes a single raw block. A large (or explicitly forced)
// file is split into raw chunk blocks described by one dag-pb manifest whose
// identifier is the file's identifier. Directories become dag-pb nodes
// linking entry names to child identifiers; Directory always wraps the
// result under a synthetic top-level directory node so one root identifier
// represents the upload regardless of input shape.
//
// Merkleization is deterministic: traversal order is stable (sorted), and
// identical trees always yield identical root identifiers.
package merkle

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/ipfs/go-cid"
	"github.com/spf13/afero"

	"xdao.co/caspub/cidutil"
)

// MaxSingleBlock is the single-block threshold: files at or below it are
// emitted as one raw block unless chunking is forced. It matches the ledger's
// per-transaction size ceiling.
const MaxSingleBlock = 8 << 20

// ErrPathNotFound is returned when the input path does not exist.
var ErrPathNotFound = errors.New("merkle: path not found")

// Builder merkleizes files and directories. The zero value uses the OS
// filesystem, 4 MiB chunks, the 8 MiB single-block threshold, and sha2-256.
type Builder struct {
	// Fs is the filesystem to read from. Nil means the OS filesystem.
	Fs afero.Fs
	// ChunkSize is the raw chunk size for chunked files.
	ChunkSize int
	// SingleBlockLimit is the largest file emitted as a single raw block.
	SingleBlockLimit int
	// ForceChunked forces every file through the chunked-manifest path.
	ForceChunked bool
	// Hash selects the identifier hash algorithm for every block.
	Hash cidutil.HashAlg
}

// Tree is the result of one merkleize call: a root identifier and the full
// block set behind it, deduplicated by identifier.
type Tree struct {
	Root cid.Cid

	blocks *blockMap
}

// Blocks returns every block in the set, leaves before the manifests that
// reference them. Callers must treat the result as a set keyed by ID.
func (t *Tree) Blocks() []Block {
	return t.blocks.blocks()
}

// Block returns the block for id, or ErrMissingBlock if the identifier is
// not part of this tree.
func (t *Tree) Block(id cid.Cid) (Block, error) {
	b, ok := t.blocks.get(id)
	if !ok {
		return Block{}, fmt.Errorf("%w: %s", ErrMissingBlock, id)
	}
	return Block{ID: id, Data: b}, nil
}

// Len returns the number of distinct blocks.
func (t *Tree) Len() int {
	return len(t.blocks.order)
}

// TotalBytes returns the total byte size of all blocks in the set.
func (t *Tree) TotalBytes() uint64 {
	var n uint64
	for _, id := range t.blocks.order {
		n += uint64(len(t.blocks.byID[id]))
	}
	return n
}

func (b Builder) fs() afero.Fs {
	if b.Fs != nil {
		return b.Fs
	}
	return afero.NewOsFs()
}

func (b Builder) chunkSize() int {
	if b.ChunkSize > 0 {
		return b.ChunkSize
	}
	return DefaultChunkSize
}

func (b Builder) singleBlockLimit() int {
	if b.SingleBlockLimit > 0 {
		return b.SingleBlockLimit
	}
	return MaxSingleBlock
}

func (b Builder) hash() cidutil.HashAlg {
	if b.Hash != 0 {
		return b.Hash
	}
	return cidutil.SHA2_256
}

// File merkleizes in-memory file content without directory wrapping: the
// returned root is the file's own identifier.
func (b Builder) File(data []byte) (*Tree, error) {
	m := newBlockMap()
	id, _, err := b.addFile(m, data)
	if err != nil {
		return nil, err
	}
	return &Tree{Root: id, blocks: m}, nil
}

// FilePath merkleizes the file at path without directory wrapping.
func (b Builder) FilePath(path string) (*Tree, error) {
	data, err := b.readFile(path)
	if err != nil {
		return nil, err
	}
	return b.File(data)
}

// Directory merkleizes the file or directory tree at root and wraps it under
// a synthetic top-level directory node linking the entry's base name, so a
// single root identifier always represents the upload.
func (b Builder) Directory(root string) (*Tree, error) {
	m := newBlockMap()
	id, size, err := b.addPath(m, root)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(filepath.Clean(root))
	wrap := encodeDagPB([]link{{hash: id.Bytes(), name: name, tsize: size}}, encodeUnixFSDirectory())
	wrapID, err := cidutil.Compute(wrap, cidutil.DagPB, b.hash())
	if err != nil {
		return nil, err
	}
	m.add(wrapID, wrap)
	return &Tree{Root: wrapID, blocks: m}, nil
}

// addFile emits the blocks for one file's content and returns the file's
// identifier and the cumulative encoded size of its subtree.
func (b Builder) addFile(m *blockMap, data []byte) (cid.Cid, uint64, error) {
	if len(data) <= b.singleBlockLimit() && !b.ForceChunked {
		id, err := cidutil.Compute(data, cidutil.Raw, b.hash())
		if err != nil {
			return cid.Undef, 0, err
		}
		m.add(id, data)
		return id, uint64(len(data)), nil
	}

	chunks, err := SplitChunks(data, b.chunkSize())
	if err != nil {
		return cid.Undef, 0, err
	}

	links := make([]link, 0, len(chunks))
	sizes := make([]uint64, 0, len(chunks))
	var filesize uint64
	for _, c := range chunks {
		id, err := cidutil.Compute(c, cidutil.Raw, b.hash())
		if err != nil {
			return cid.Undef, 0, err
		}
		m.add(id, c)
		links = append(links, link{hash: id.Bytes(), tsize: uint64(len(c))})
		sizes = append(sizes, uint64(len(c)))
		filesize += uint64(len(c))
	}

	node := encodeDagPB(links, encodeUnixFSFile(filesize, sizes))
	id, err := cidutil.Compute(node, cidutil.DagPB, b.hash())
	if err != nil {
		return cid.Undef, 0, err
	}
	m.add(id, node)
	return id, filesize + uint64(len(node)), nil
}

// addPath merkleizes the file or directory at path.
func (b Builder) addPath(m *blockMap, path string) (cid.Cid, uint64, error) {
	info, err := b.fs().Stat(path)
	if err != nil {
		return cid.Undef, 0, pathErr(path, err)
	}
	if !info.IsDir() {
		data, err := b.readFile(path)
		if err != nil {
			return cid.Undef, 0, err
		}
		return b.addFile(m, data)
	}
	return b.addDir(m, path)
}

// addDir merkleizes a directory. Entries are visited in sorted order so the
// node's link order, and therefore its identifier, is stable. An empty
// directory is a valid node with zero links.
func (b Builder) addDir(m *blockMap, dir string) (cid.Cid, uint64, error) {
	entries, err := afero.ReadDir(b.fs(), dir)
	if err != nil {
		return cid.Undef, 0, pathErr(dir, err)
	}

	links := make([]link, 0, len(entries))
	var total uint64
	for _, e := range entries {
		childID, childSize, err := b.addPath(m, filepath.Join(dir, e.Name()))
		if err != nil {
			return cid.Undef, 0, err
		}
		links = append(links, link{hash: childID.Bytes(), name: e.Name(), tsize: childSize})
		total += childSize
	}

	node := encodeDagPB(links, encodeUnixFSDirectory())
	id, err := cidutil.Compute(node, cidutil.DagPB, b.hash())
	if err != nil {
		return cid.Undef, 0, err
	}
	m.add(id, node)
	return id, total + uint64(len(node)), nil
}

func (b Builder) readFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(b.fs(), path)
	if err != nil {
		return nil, pathErr(path, err)
	}
	return data, nil
}

func pathErr(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	return fmt.Errorf("merkle: %s: %w", path, err)
}
