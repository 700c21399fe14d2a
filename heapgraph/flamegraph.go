package heapgraph

const (
	flamegraphProfileType = "graph"
	flamegraphMapName     = "JAVA"
)

// FlamegraphRow is one emitted node of a BuildFlamegraph result: the
// "rows, interned strings, typed columns" shape spec.md assumes an
// external sink holds, modeled here as a plain struct.
type FlamegraphRow struct {
	id int

	ParentID         int // -1 for a node directly under the artificial root
	Depth            int
	Name             string
	SelfSize         uint64
	SelfCount        uint64
	CumulativeSize   uint64
	CumulativeCount  uint64
	ProfileType      string
	MapName          string
}

func (r FlamegraphRow) RowID() int { return r.id }

// flameNode is one node of the in-progress shortest-path spanning tree
// BuildFlamegraph folds into rows. Index 0 is always the artificial root.
type flameNode struct {
	wireID    uint64
	parentIdx int
	depth     int
	classID   int
	selfSize  uint64
	selfCount uint64
	cumSize   uint64
	cumCount  uint64
}

// flameFrame is one entry of FindPathFromRoot's explicit work stack: a
// heap-allocated Go slice standing in for call-stack recursion, since real
// retention chains run far deeper than the OS stack tolerates (spec.md §9).
type flameFrame struct {
	nodeIdx  int
	children []uint64
	next     int
}

// BuildFlamegraph folds (upid, ts)'s graph into a retention flamegraph: a
// tree rooted at every object with root distance 0, following only
// shortest-path-tree edges (a child is only traversed from the parent that
// first reaches it at distance+1), with cumulative size/count folded
// bottom-up.
func (t *Tracker) BuildFlamegraph(upid, ts int64) []FlamegraphRow {
	g, ok := t.Graph(upid, ts)
	if !ok {
		return nil
	}

	var roots []uint64
	for _, wireID := range g.order {
		if g.objects[wireID].RootDistance == 0 {
			roots = append(roots, wireID)
		}
	}
	if len(roots) == 0 {
		return nil
	}

	nodes := []flameNode{{parentIdx: -1, depth: 0}} // sentinel artificial root
	visited := make(map[uint64]bool)

	for _, rootID := range roots {
		t.findPathFromRoot(g, rootID, &nodes, visited)
	}

	for i := 1; i < len(nodes); i++ {
		nodes[i].cumSize = nodes[i].selfSize
		nodes[i].cumCount = nodes[i].selfCount
	}
	for i := len(nodes) - 1; i >= 1; i-- {
		parent := nodes[i].parentIdx
		nodes[parent].cumSize += nodes[i].cumSize
		nodes[parent].cumCount += nodes[i].cumCount
	}

	rows := make([]FlamegraphRow, 0, len(nodes)-1)
	for i := 1; i < len(nodes); i++ {
		n := nodes[i]
		parentID := -1
		if n.parentIdx != 0 {
			parentID = n.parentIdx - 1
		}
		name := ""
		if class, ok := t.classes.Get(n.classID); ok {
			name = t.MaybeDeobfuscate(class.Package, class.Name)
		}
		rows = append(rows, FlamegraphRow{
			id:              i - 1,
			ParentID:        parentID,
			Depth:           n.depth,
			Name:            name,
			SelfSize:        n.selfSize,
			SelfCount:       n.selfCount,
			CumulativeSize:  n.cumSize,
			CumulativeCount: n.cumCount,
			ProfileType:     flamegraphProfileType,
			MapName:         flamegraphMapName,
		})
	}
	return rows
}

// findPathFromRoot walks the shortest-path spanning tree from rootID,
// appending one flameNode per newly-visited object, using an explicit
// work stack rather than recursion (spec.md §4.9/§9).
func (t *Tracker) findPathFromRoot(g *Graph, rootID uint64, nodes *[]flameNode, visited map[uint64]bool) {
	if visited[rootID] {
		return
	}
	visited[rootID] = true
	rootIdx := appendFlameNode(nodes, g, rootID, 0, 1)

	stack := []flameFrame{{nodeIdx: rootIdx}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.children == nil {
			top.children = shortestPathChildren(g, (*nodes)[top.nodeIdx].wireID)
		}
		if top.next >= len(top.children) {
			stack = stack[:len(stack)-1]
			continue
		}
		childID := top.children[top.next]
		top.next++
		if visited[childID] {
			continue
		}
		visited[childID] = true
		childIdx := appendFlameNode(nodes, g, childID, top.nodeIdx, (*nodes)[top.nodeIdx].depth+1)
		stack = append(stack, flameFrame{nodeIdx: childIdx})
	}
}

func appendFlameNode(nodes *[]flameNode, g *Graph, wireID uint64, parentIdx, depth int) int {
	o := g.objects[wireID]
	*nodes = append(*nodes, flameNode{
		wireID:    wireID,
		parentIdx: parentIdx,
		depth:     depth,
		classID:   o.ClassID,
		selfSize:  o.SelfSize,
		selfCount: 1,
	})
	return len(*nodes) - 1
}

// shortestPathChildren returns wireID's outbound references whose target
// sits exactly one edge further from the nearest root than wireID itself —
// the shortest-path spanning tree edges MarkRoot's BFS already discovered.
func shortestPathChildren(g *Graph, wireID uint64) []uint64 {
	o := g.objects[wireID]
	if o.referenceSetID < 0 {
		return nil
	}
	var children []uint64
	setID := o.referenceSetID
	for i := setID; i < len(g.references) && g.references[i].referenceSetID == setID; i++ {
		targetID := g.references[i].targetWireID
		child, ok := g.objects[targetID]
		if !ok || child.RootDistance != o.RootDistance+1 {
			continue
		}
		children = append(children, targetID)
	}
	return children
}
