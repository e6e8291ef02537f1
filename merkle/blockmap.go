package merkle

import (
	"errors"

	"github.com/ipfs/go-cid"
)

// ErrMissingBlock is returned when a referenced identifier is not present in
// the assembled block set. It indicates an internal invariant violation.
var ErrMissingBlock = errors.New("merkle: referenced block not in set")

// Block is one content-addressed unit: its identifier and the exact bytes the
// identifier was derived from. Blocks are immutable once created.
type Block struct {
	ID   cid.Cid
	Data []byte
}

// blockMap is a scoped, insertion-ordered block set deduplicated by
// identifier. It exists only for the duration of one merkleize call and is
// owned by the resulting Tree; there is no ambient or process-wide store.
type blockMap struct {
	order []cid.Cid
	byID  map[cid.Cid][]byte
}

func newBlockMap() *blockMap {
	return &blockMap{byID: make(map[cid.Cid][]byte)}
}

// add records a block unless its identifier is already present. The same
// chunk content appearing twice is emitted once.
func (m *blockMap) add(id cid.Cid, data []byte) {
	if _, ok := m.byID[id]; ok {
		return
	}
	m.order = append(m.order, id)
	m.byID[id] = data
}

func (m *blockMap) get(id cid.Cid) ([]byte, bool) {
	b, ok := m.byID[id]
	return b, ok
}

func (m *blockMap) blocks() []Block {
	out := make([]Block, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, Block{ID: id, Data: m.byID[id]})
	}
	return out
}
