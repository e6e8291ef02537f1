// Package bundle exports and imports deterministic TAR bundles of merkle
// tree blocks, for offline transfer and mirroring of published content.
package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/caspub/cidutil"
	"xdao.co/caspub/merkle"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

var (
	// ErrInvalidCID marks an undefined or unparseable identifier.
	ErrInvalidCID = errors.New("bundle: invalid CID")
	// ErrCIDMismatch marks block bytes that do not hash to their claimed
	// identifier.
	ErrCIDMismatch = errors.New("bundle: block bytes do not match CID")
)

var epoch0 = time.Unix(0, 0).UTC()

// BlockSource supplies block bytes by identifier. *merkle.Tree satisfies it.
type BlockSource interface {
	Block(id cid.Cid) (merkle.Block, error)
}

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Root is optional, non-authoritative metadata naming the tree root.
	Root cid.Cid
	// IncludeIndex controls whether index.json is included.
	IncludeIndex bool
}

// Export writes a deterministic TAR bundle containing the blocks for the
// given CIDs.
//
// The bundle bytes are deterministic: entry order is lexicographic and TAR
// headers are normalized. All exported bytes are validated against their
// CIDs before they are written.
func Export(w io.Writer, src BlockSource, ids []cid.Cid, opts ExportOptions) error {
	if src == nil {
		return fmt.Errorf("bundle: nil block source")
	}

	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return ErrInvalidCID
		}
		uniq[id.String()] = id
	}

	cidStrings := make([]string, 0, len(uniq))
	for s := range uniq {
		cidStrings = append(cidStrings, s)
	}
	sort.Strings(cidStrings)

	tw := tar.NewWriter(w)

	blocks := make([]indexBlock, 0, len(cidStrings))
	for _, s := range cidStrings {
		id := uniq[s]
		b, err := src.Block(id)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if err := validate(id, b.Data); err != nil {
			_ = tw.Close()
			return err
		}

		entryPath := "blocks/" + id.String()
		if err := writeFile(tw, entryPath, b.Data); err != nil {
			_ = tw.Close()
			return err
		}
		blocks = append(blocks, indexBlock{
			CID:   id.String(),
			Size:  len(b.Data),
			Codec: codecName(cidutil.Codec(id.Prefix().Codec)),
		})
	}

	if opts.IncludeIndex {
		idx := indexJSON{
			Version: FormatVersion,
			Blocks:  blocks,
		}
		if opts.Root.Defined() {
			idx.Root = opts.Root.String()
		}
		b, err := json.Marshal(idx)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if err := writeFile(tw, "index.json", append(b, '\n')); err != nil {
			_ = tw.Close()
			return err
		}
	}

	return tw.Close()
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown controls whether unknown TAR entries are ignored.
	//
	// Default (false) is fail-closed: unknown entries cause Import to return an error.
	IgnoreUnknown bool
}

// Import reads a bundle from r and returns its blocks, sorted by identifier.
//
// Default behavior is fail-closed: unknown entries cause an error.
// Use ImportWithOptions to allow ignoring unknown entries.
func Import(r io.Reader) ([]merkle.Block, error) {
	return ImportWithOptions(r, ImportOptions{})
}

// ImportWithOptions reads a bundle from r, validating that each block's
// bytes hash to the identifier its entry name claims.
func ImportWithOptions(r io.Reader, opts ImportOptions) ([]merkle.Block, error) {
	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var blocks []merkle.Block

	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return blocks, nil
		}
		if err != nil {
			return nil, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return nil, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}

		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return nil, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		// Non-authoritative metadata.
		if name == "index.json" {
			_, _ = io.Copy(io.Discard, tr)
			continue
		}

		if !strings.HasPrefix(name, "blocks/") {
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return nil, fmt.Errorf("bundle: unknown entry: %s", name)
		}

		cidStr := strings.TrimPrefix(name, "blocks/")
		id, derr := cid.Decode(cidStr)
		if derr != nil || !id.Defined() {
			return nil, ErrInvalidCID
		}

		payload, rerr := io.ReadAll(tr)
		if rerr != nil {
			return nil, rerr
		}
		if err := validate(id, payload); err != nil {
			return nil, err
		}

		key := id.String()
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("bundle: duplicate block entry: %s", key)
		}
		seen[key] = struct{}{}
		blocks = append(blocks, merkle.Block{ID: id, Data: payload})
	}
}

// validate recomputes the identifier with the codec and hash the claimed CID
// itself declares, so raw and dag-pb blocks verify alike.
func validate(id cid.Cid, data []byte) error {
	prefix := id.Prefix()
	got, err := cidutil.Compute(data, cidutil.Codec(prefix.Codec), cidutil.HashAlg(prefix.MhType))
	if err != nil {
		return err
	}
	if !got.Equals(id) {
		return fmt.Errorf("%w: computed %s, claimed %s", ErrCIDMismatch, got, id)
	}
	return nil
}

func codecName(c cidutil.Codec) string {
	switch c {
	case cidutil.Raw:
		return "raw"
	case cidutil.DagPB:
		return "dag-pb"
	default:
		return fmt.Sprintf("0x%x", uint64(c))
	}
}

type indexJSON struct {
	Version int          `json:"version"`
	Root    string       `json:"root,omitempty"`
	Blocks  []indexBlock `json:"blocks"`
}

type indexBlock struct {
	CID   string `json:"cid"`
	Size  int    `json:"size"`
	Codec string `json:"codec"`
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		Uid:      0,
		Gid:      0,
		Uname:    "",
		Gname:    "",
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}

	parts := strings.Split(name, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." {
			return ""
		}
		if part == ".." {
			return ""
		}
		out = append(out, part)
	}
	return strings.Join(out, "/")
}
