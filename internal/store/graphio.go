package store

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	sgerrors "github.com/standardbeagle/symgraph/internal/errors"
	"github.com/standardbeagle/symgraph/internal/graph"
	"github.com/standardbeagle/symgraph/internal/types"
)

// edgeKey builds edg/<src>/<kind>/<dst> with escaped id segments.
func edgeKey(e types.Edge) string {
	return prefixEdge + url.PathEscape(string(e.Src)) + "/" + string(e.Kind) + "/" + url.PathEscape(string(e.Dst))
}

// parseEdgeKey inverts edgeKey. The input has the edg/ prefix stripped.
func parseEdgeKey(key string) (types.Edge, error) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 {
		return types.Edge{}, fmt.Errorf("%w: malformed edge key %q", sgerrors.ErrStoreCorrupt, key)
	}
	src, err := url.PathUnescape(parts[0])
	if err != nil {
		return types.Edge{}, fmt.Errorf("%w: bad edge src %q", sgerrors.ErrStoreCorrupt, parts[0])
	}
	dst, err := url.PathUnescape(parts[2])
	if err != nil {
		return types.Edge{}, fmt.Errorf("%w: bad edge dst %q", sgerrors.ErrStoreCorrupt, parts[2])
	}
	return types.Edge{
		Src:  types.SymbolID(src),
		Dst:  types.SymbolID(dst),
		Kind: types.EdgeKind(parts[1]),
	}, nil
}

// LoadGraph reconstructs the in-memory graph with one pass over sym/
// and one over edg/.
func (s *Store) LoadGraph() (*graph.Graph, error) {
	g := graph.New()

	err := s.scanPrefix(prefixSym, func(_ string, value []byte) error {
		var sym types.Symbol
		if err := json.Unmarshal(value, &sym); err != nil {
			return fmt.Errorf("%w: undecodable symbol: %v", sgerrors.ErrStoreCorrupt, err)
		}
		_, err := g.Add(&sym, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = s.scanPrefix(prefixEdge, func(key string, _ []byte) error {
		e, err := parseEdgeKey(key)
		if err != nil {
			return err
		}
		if err := g.AddEdge(e.Src, e.Dst, e.Kind); err != nil {
			// An edge whose endpoint is missing means a torn write,
			// which the transactional commit is supposed to preclude.
			return fmt.Errorf("%w: dangling edge %s -%s-> %s", sgerrors.ErrStoreCorrupt, e.Src, e.Kind, e.Dst)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ApplyDelta performs all writes of one update cycle in a single
// transaction. On crash either all or none of the delta is visible.
// The delta's last-write-wins staging guarantees a key is never both
// deleted and written here.
func (s *Store) ApplyDelta(d *Delta) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &sgerrors.StoreError{Operation: "begin", Underlying: err}
	}
	defer tx.Rollback()

	del, err := tx.Prepare(`DELETE FROM kv WHERE key = ?`)
	if err != nil {
		return &sgerrors.StoreError{Operation: "prepare", Underlying: err}
	}
	defer del.Close()
	put, err := tx.Prepare(`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`)
	if err != nil {
		return &sgerrors.StoreError{Operation: "prepare", Underlying: err}
	}
	defer put.Close()

	for id := range d.delSymbols {
		if _, err := del.Exec(prefixSym + string(id)); err != nil {
			return &sgerrors.StoreError{Key: string(id), Operation: "delete", Underlying: err}
		}
	}
	for e := range d.delEdges {
		if _, err := del.Exec(edgeKey(e)); err != nil {
			return &sgerrors.StoreError{Key: edgeKey(e), Operation: "delete", Underlying: err}
		}
	}
	for path := range d.delFiles {
		if _, err := del.Exec(prefixFile + path); err != nil {
			return &sgerrors.StoreError{Key: path, Operation: "delete", Underlying: err}
		}
	}

	for _, sym := range d.putSymbols {
		value, err := json.Marshal(sym)
		if err != nil {
			return &sgerrors.StoreError{Key: string(sym.ID), Operation: "encode", Underlying: err}
		}
		if _, err := put.Exec(prefixSym+string(sym.ID), value); err != nil {
			return &sgerrors.StoreError{Key: string(sym.ID), Operation: "put", Underlying: err}
		}
	}
	for e := range d.putEdges {
		if _, err := put.Exec(edgeKey(e), []byte{}); err != nil {
			return &sgerrors.StoreError{Key: edgeKey(e), Operation: "put", Underlying: err}
		}
	}
	for _, rec := range d.putFiles {
		value, err := json.Marshal(rec)
		if err != nil {
			return &sgerrors.StoreError{Key: rec.Path, Operation: "encode", Underlying: err}
		}
		if _, err := put.Exec(prefixFile+rec.Path, value); err != nil {
			return &sgerrors.StoreError{Key: rec.Path, Operation: "put", Underlying: err}
		}
	}
	for k, v := range d.Meta {
		if _, err := put.Exec(prefixMeta+k, []byte(v)); err != nil {
			return &sgerrors.StoreError{Key: k, Operation: "put", Underlying: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &sgerrors.StoreError{Operation: "commit", Underlying: err}
	}
	return nil
}

// Reset clears every sym/, edg/ and file/ key. Used before a full
// rebuild; meta/ survives so the schema version stays put.
func (s *Store) Reset() error {
	tx, err := s.db.Begin()
	if err != nil {
		return &sgerrors.StoreError{Operation: "begin", Underlying: err}
	}
	defer tx.Rollback()
	for _, prefix := range []string{prefixSym, prefixEdge, prefixFile} {
		if _, err := tx.Exec(`DELETE FROM kv WHERE key >= ? AND key < ?`,
			prefix, prefixUpperBound(prefix)); err != nil {
			return &sgerrors.StoreError{Key: prefix, Operation: "clear", Underlying: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &sgerrors.StoreError{Operation: "commit", Underlying: err}
	}
	return nil
}

// FileRecord reads one file record; (zero, false) when absent.
func (s *Store) FileRecord(path string) (types.FileRecord, bool, error) {
	value, ok, err := s.get(prefixFile + path)
	if err != nil || !ok {
		return types.FileRecord{}, false, err
	}
	var rec types.FileRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return types.FileRecord{}, false, fmt.Errorf("%w: undecodable file record for %s", sgerrors.ErrStoreCorrupt, path)
	}
	return rec, true, nil
}

// PutFileRecord writes one file record outside a delta. The indexer
// itself stages records through Delta; this exists for repair tooling.
func (s *Store) PutFileRecord(rec types.FileRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return &sgerrors.StoreError{Key: rec.Path, Operation: "encode", Underlying: err}
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`, prefixFile+rec.Path, value)
	if err != nil {
		return &sgerrors.StoreError{Key: rec.Path, Operation: "put", Underlying: err}
	}
	return nil
}

// AllFileRecords returns every file record keyed by path.
func (s *Store) AllFileRecords() (map[string]types.FileRecord, error) {
	out := make(map[string]types.FileRecord)
	err := s.scanPrefix(prefixFile, func(path string, value []byte) error {
		var rec types.FileRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("%w: undecodable file record for %s", sgerrors.ErrStoreCorrupt, path)
		}
		out[path] = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
