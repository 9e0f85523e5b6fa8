// Package identity tracks the translation between the source database's
// native node ids and the export ids written to flat files. The two id
// spaces are distinct types so they can never be conflated: relationship
// rows reference endpoints by ExportID only, which keeps the files portable
// across databases that number nodes independently.
package identity

import "sync"

// SourceID is a node id as assigned by the source database.
type SourceID int64

// ExportID is the dense sequential id assigned during extraction.
type ExportID int64

// Origin is the first export id handed out in a run.
const Origin ExportID = 1

// Index is built during the node phase and consulted during the edge phase.
// Writers must hold the single-writer-per-label discipline; Assign serializes
// internally so parallel label extractions still produce unique dense ids.
type Index struct {
	mu   sync.Mutex
	next ExportID
	ids  map[SourceID]ExportID
}

func NewIndex() *Index {
	return &Index{next: Origin, ids: make(map[SourceID]ExportID)}
}

// Assign returns the export id for a source node, allocating the next dense
// id on first sight. Re-assigning the same source id is idempotent, which
// covers nodes carrying several exported labels.
func (x *Index) Assign(src SourceID) ExportID {
	x.mu.Lock()
	defer x.mu.Unlock()
	if id, ok := x.ids[src]; ok {
		return id
	}
	id := x.next
	x.next++
	x.ids[src] = id
	return id
}

// Resolve looks up a previously assigned export id. The second return is
// false when the node was never exported, e.g. excluded by a tenant filter.
func (x *Index) Resolve(src SourceID) (ExportID, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	id, ok := x.ids[src]
	return id, ok
}

func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.ids)
}
