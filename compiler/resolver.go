package compiler

import (
	"github.com/csakilan/FoundryBackend/canvas"
)

// DependencySet holds the service nodes one compute node consumes,
// split by kind, in edge-discovery order with duplicates dropped.
type DependencySet struct {
	ObjectStores   []string
	KeyValueTables []string
	RelationalDBs  []string
}

// Empty reports whether the compute node consumes nothing.
func (d *DependencySet) Empty() bool {
	return d == nil ||
		len(d.ObjectStores) == 0 && len(d.KeyValueTables) == 0 && len(d.RelationalDBs) == 0
}

// DependencyMap maps every compute node id to its dependency set. It is
// total over the canvas's compute nodes: a node without incoming edges
// maps to an empty set.
type DependencyMap map[string]*DependencySet

// ResolveDependencies walks the edge list once. An edge contributes
// only when its target is a compute node and both endpoints exist;
// anything else is skipped silently because the editor may submit
// transiently inconsistent graphs. Compute-to-compute edges carry no
// access semantics and are skipped too.
func ResolveDependencies(c *canvas.Canvas) DependencyMap {
	m := make(DependencyMap)
	for _, n := range c.OfKind(canvas.KindCompute) {
		m[n.ID] = &DependencySet{}
	}

	for _, e := range c.Edges {
		source, ok := c.Node(e.Source)
		if !ok {
			continue
		}
		target, ok := c.Node(e.Target)
		if !ok || target.Kind != canvas.KindCompute {
			continue
		}

		set := m[target.ID]
		switch source.Kind {
		case canvas.KindObjectStore:
			set.ObjectStores = appendUnique(set.ObjectStores, source.ID)
		case canvas.KindKeyValueTable:
			set.KeyValueTables = appendUnique(set.KeyValueTables, source.ID)
		case canvas.KindRelationalDB:
			set.RelationalDBs = appendUnique(set.RelationalDBs, source.ID)
		}
	}

	return m
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
