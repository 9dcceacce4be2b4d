package vector

import "github.com/coder/hnsw"

// This file isolates every call into github.com/coder/hnsw so the rest of
// the package works against plain Go types (id string, []float32). hnsw.Graph
// is generic over the node key type; OpenDB uses it keyed by record id.
//
// coder/hnsw's Graph exposes a single "ef" knob (EfSearch) used for both
// insertion and query-time candidate exploration, plus M (max neighbors per
// node). OpenDB's three presets (spec §4.7) map ef_construction onto
// EfSearch and max_neighbors onto M — there is no separate construction-time
// ef in this library.
func newHNSWGraph(params HNSWParams) *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = params.MaxNeighbors
	g.EfSearch = params.EfConstruction
	g.Distance = hnsw.EuclideanDistance
	return g
}

func hnswAdd(g *hnsw.Graph[string], id string, vec []float32) {
	g.Add(hnsw.MakeNode(id, vec))
}

// hnswSearch returns up to want candidate ids with their (approximate)
// nearest-neighbor rank from the graph. The caller re-scores with an exact
// distance before truncating to k, since HNSW search is inherently
// approximate and result ordering must be exact and tie-break
// deterministically for the record counts this database targets.
func hnswSearch(g *hnsw.Graph[string], query []float32, want int) []string {
	nodes := g.Search(query, want)
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.Key
	}
	return ids
}

func hnswLen(g *hnsw.Graph[string]) int {
	return g.Len()
}
