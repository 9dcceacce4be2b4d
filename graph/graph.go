// Package graph implements the directed labeled property graph: dual
// forward/backward bucket indexing with per-bucket merge-on-link semantics,
// with both buckets of a link/unlink written atomically via a storage
// transaction.
//
// Each edge lives in two derived buckets (forward keyed by from/relation,
// backward keyed by to/relation); the read-modify-write of both is folded
// into a single storage.Transaction so a crash can never leave the two sides
// asymmetric.
package graph

import (
	"time"

	"github.com/opendb-io/opendb/codec"
	"github.com/opendb-io/opendb/opendberr"
	"github.com/opendb-io/opendb/storage"
)

// separator joins (endpoint, relation) into a bucket key. It must never
// appear in an id or relation (Link/Unlink reject it, see validateToken).
const separator = "\x00"

// Edge is a directed, labeled, weighted relationship between two ids.
type Edge struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Relation  string  `json:"relation"`
	Weight    float64 `json:"weight"`
	Timestamp int64   `json:"timestamp"`
}

// Manager implements the graph store.
type Manager struct {
	backend storage.Backend
	now     func() time.Time
}

// New constructs a graph Manager.
func New(backend storage.Backend) *Manager {
	return &Manager{backend: backend, now: time.Now}
}

func validateToken(op, field, value string) error {
	if value == "" {
		return opendberr.Newf(opendberr.InvalidInput, op, "%s must not be empty", field)
	}
	for i := 0; i < len(value); i++ {
		if value[i] == 0 {
			return opendberr.Newf(opendberr.Graph, op, "%s must not contain the NUL separator byte", field)
		}
	}
	return nil
}

func bucketKey(endpoint, relation string) []byte {
	return []byte(endpoint + separator + relation)
}

// LinkOptions overrides Link's defaults.
type LinkOptions struct {
	Weight    float64 // used only when HasWeight is set; otherwise 1.0
	Timestamp int64   // used only when HasTime is set; otherwise the current wall clock
	HasWeight bool
	HasTime   bool
}

// Link creates or updates the (from, relation, to) edge (spec §4.6):
// replaces any existing entry sharing the triple (updating weight and
// timestamp) or appends a new one, then writes both the forward and
// backward buckets atomically.
func (m *Manager) Link(from, to, relation string, opts LinkOptions) error {
	if err := validateToken("graph.Link", "from", from); err != nil {
		return err
	}
	if err := validateToken("graph.Link", "to", to); err != nil {
		return err
	}
	if err := validateToken("graph.Link", "relation", relation); err != nil {
		return err
	}

	weight := 1.0
	if opts.HasWeight {
		weight = opts.Weight
	}
	timestamp := m.now().Unix()
	if opts.HasTime {
		timestamp = opts.Timestamp
	}
	edge := Edge{From: from, To: to, Relation: relation, Weight: weight, Timestamp: timestamp}

	fwdKey := bucketKey(from, relation)
	bwdKey := bucketKey(to, relation)

	tx, err := m.backend.BeginTransaction()
	if err != nil {
		return opendberr.Wrap(opendberr.Transaction, "graph.Link", err)
	}
	defer tx.Rollback()

	fwd, err := readBucket(tx, storage.GraphForward, fwdKey)
	if err != nil {
		return err
	}
	bwd, err := readBucket(tx, storage.GraphBackward, bwdKey)
	if err != nil {
		return err
	}

	fwd = upsertEdge(fwd, edge)
	bwd = upsertEdge(bwd, edge)

	if err := writeBucket(tx, storage.GraphForward, fwdKey, fwd); err != nil {
		return err
	}
	if err := writeBucket(tx, storage.GraphBackward, bwdKey, bwd); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return opendberr.Wrap(opendberr.Transaction, "graph.Link", err)
	}
	return nil
}

// Unlink removes the (from, relation, to) edge from both buckets, if
// present. Succeeds even if the edge was absent.
func (m *Manager) Unlink(from, to, relation string) error {
	if err := validateToken("graph.Unlink", "from", from); err != nil {
		return err
	}
	if err := validateToken("graph.Unlink", "to", to); err != nil {
		return err
	}
	if err := validateToken("graph.Unlink", "relation", relation); err != nil {
		return err
	}

	fwdKey := bucketKey(from, relation)
	bwdKey := bucketKey(to, relation)

	tx, err := m.backend.BeginTransaction()
	if err != nil {
		return opendberr.Wrap(opendberr.Transaction, "graph.Unlink", err)
	}
	defer tx.Rollback()

	fwd, err := readBucket(tx, storage.GraphForward, fwdKey)
	if err != nil {
		return err
	}
	bwd, err := readBucket(tx, storage.GraphBackward, bwdKey)
	if err != nil {
		return err
	}

	fwd = removeEdge(fwd, from, relation, to)
	bwd = removeEdge(bwd, from, relation, to)

	if err := writeBucket(tx, storage.GraphForward, fwdKey, fwd); err != nil {
		return err
	}
	if err := writeBucket(tx, storage.GraphBackward, bwdKey, bwd); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return opendberr.Wrap(opendberr.Transaction, "graph.Unlink", err)
	}
	return nil
}

// GetRelated returns the edges in the forward bucket id\x00relation.
func (m *Manager) GetRelated(id, relation string) ([]Edge, error) {
	raw, err := m.backend.Get(storage.GraphForward, bucketKey(id, relation))
	if err != nil {
		return nil, opendberr.Wrap(opendberr.Storage, "graph.GetRelated", err)
	}
	return decodeBucketOrEmpty("graph.GetRelated", raw)
}

// GetOutgoing flattens every forward bucket whose key starts with id\x00.
func (m *Manager) GetOutgoing(id string) ([]Edge, error) {
	return m.scanBuckets(storage.GraphForward, id, "graph.GetOutgoing")
}

// GetIncoming flattens every backward bucket whose key starts with id\x00.
func (m *Manager) GetIncoming(id string) ([]Edge, error) {
	return m.scanBuckets(storage.GraphBackward, id, "graph.GetIncoming")
}

func (m *Manager) scanBuckets(cf, id, op string) ([]Edge, error) {
	kvs, err := m.backend.ScanPrefix(cf, []byte(id+separator))
	if err != nil {
		return nil, opendberr.Wrap(opendberr.Storage, op, err)
	}
	var out []Edge
	for _, kv := range kvs {
		edges, err := decodeBucketOrEmpty(op, kv.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, edges...)
	}
	return out, nil
}

func readBucket(tx storage.Transaction, cf string, key []byte) ([]Edge, error) {
	raw, err := tx.Get(cf, key)
	if err != nil {
		return nil, opendberr.Wrap(opendberr.Storage, "graph.readBucket", err)
	}
	return decodeBucketOrEmpty("graph.readBucket", raw)
}

func decodeBucketOrEmpty(op string, raw []byte) ([]Edge, error) {
	if raw == nil {
		return nil, nil
	}
	edges, err := codec.DecodeJSON[[]Edge](raw)
	if err != nil {
		return nil, opendberr.Wrap(opendberr.Graph, op, err)
	}
	return edges, nil
}

func writeBucket(tx storage.Transaction, cf string, key []byte, edges []Edge) error {
	if len(edges) == 0 {
		return opendberr.Wrap(opendberr.Storage, "graph.writeBucket", tx.Delete(cf, key))
	}
	encoded, err := codec.EncodeJSON(edges)
	if err != nil {
		return opendberr.Wrap(opendberr.Codec, "graph.writeBucket", err)
	}
	return opendberr.Wrap(opendberr.Storage, "graph.writeBucket", tx.Put(cf, key, encoded))
}

// upsertEdge replaces the entry sharing e's (from,relation,to) triple, or
// appends e, preserving insertion order otherwise (spec §4.6).
func upsertEdge(edges []Edge, e Edge) []Edge {
	for i, existing := range edges {
		if existing.From == e.From && existing.Relation == e.Relation && existing.To == e.To {
			edges[i] = e
			return edges
		}
	}
	return append(edges, e)
}

func removeEdge(edges []Edge, from, relation, to string) []Edge {
	out := edges[:0]
	for _, e := range edges {
		if e.From == from && e.Relation == relation && e.To == to {
			continue
		}
		out = append(out, e)
	}
	return out
}
