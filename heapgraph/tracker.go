package heapgraph

import "github.com/AndrewB330/perfetto/internal/logging"

// internedType is a sequence-scoped pending type: its location is resolved
// only at FinalizeProfile, since the location string may intern after the
// type does.
type internedType struct {
	nameStr     string
	locationIid uint64
	hasLocation bool
}

// internedField is one AddInternedFieldName entry, already split into its
// optional owning-type annotation and the bare field name.
type internedField struct {
	typeAnnotation string
	field          string
}

// sequenceState is the per-sequence interning namespace plus the (upid, ts)
// it has committed to and the roots it has buffered for FinalizeProfile.
type sequenceState struct {
	seq uint64

	haveGraph bool
	upid      int64
	ts        int64

	locations   map[uint64]string
	types       map[uint64]internedType
	fieldNames  map[uint64]internedField
	bufferedRoots []SourceRoot

	havePacketIndex bool
	lastPacketIndex int64
}

func newSequenceState(seq uint64) *sequenceState {
	return &sequenceState{
		seq:        seq,
		locations:  make(map[uint64]string),
		types:      make(map[uint64]internedType),
		fieldNames: make(map[uint64]internedField),
	}
}

// classKey identifies one interned type within its owning sequence: the
// namespace Class rows are resolved from at FinalizeProfile.
type classKey struct {
	seq uint64
	iid uint64
}

// ClassRow is the resolved, finalized form of one interned type: its name,
// the package it was attributed to, and (after PopulateSuperClasses) its
// superclass edge.
type ClassRow struct {
	id            int
	Name          string
	Location      string // "" if the location iid never resolved
	Package       string // "" if unattributed
	Normalized    TypeDescriptor
	SuperclassID  int // -1 if unresolved or not an ordinary class
}

func (c ClassRow) RowID() int { return c.id }

// Object is one node of a heap graph: a streamed allocation plus the
// tracker-computed root-reachability state MarkRoot stamps onto it.
type Object struct {
	id       int
	WireID   uint64
	SelfSize uint64
	ClassID  int // -1 until resolved at FinalizeProfile

	pendingType    classKey // (seq, type iid) this object's type was interned under
	hasPendingType bool

	referenceSetID int // -1 if this object owns no outbound references

	RootDistance int // -1 means unreached
	RootType     string
}

func (o Object) RowID() int { return o.id }

// reference is one row of the graph-wide Reference table. Owner rows
// inserted by a single AddObject call share one ReferenceSetID and are
// always contiguous, per spec.md §4.9's "all references from one owner are
// thus contiguous" invariant.
type reference struct {
	ownerWireID    uint64
	fieldName      string
	targetWireID   uint64
	referenceSetID int
}

// Graph is one (upid, ts) heap snapshot: its objects, the flat outbound
// Reference table, and the roots translated at FinalizeProfile.
type Graph struct {
	key        GraphKey
	objects    map[uint64]*Object // wire id -> Object
	order      []uint64           // insertion order, for deterministic iteration
	references []reference
	roots      []uint64 // root wire ids, post-translation
}

func newGraph(key GraphKey) *Graph {
	return &Graph{key: key, objects: make(map[uint64]*Object)}
}

func (g *Graph) getOrCreate(wireID uint64) *Object {
	if o, ok := g.objects[wireID]; ok {
		return o
	}
	o := &Object{id: len(g.order), WireID: wireID, ClassID: -1, referenceSetID: -1, RootDistance: -1}
	g.objects[wireID] = o
	g.order = append(g.order, wireID)
	return o
}

// deobfKey is the lookup key for AddDeobfuscationMapping/MaybeDeobfuscate:
// an optional package scope plus the normalized obfuscated name.
type deobfKey struct {
	pkg         string
	obfuscated  string
}

// Tracker is one offline heap-graph processing session. It is not safe for
// concurrent use: spec.md §5 specifies the offline core is single-threaded,
// one tracker per trace, with sequence ids as the only cross-call key.
type Tracker struct {
	sequences map[uint64]*sequenceState
	graphs    map[GraphKey]*Graph

	classes      Table[ClassRow]
	classesByKey map[classKey]int

	deobfuscation map[deobfKey]string

	Stats Stats
}

// New returns an empty Tracker, ready to ingest one trace.
func New() *Tracker {
	return &Tracker{
		sequences:     make(map[uint64]*sequenceState),
		graphs:        make(map[GraphKey]*Graph),
		classesByKey:  make(map[classKey]int),
		deobfuscation: make(map[deobfKey]string),
	}
}

func (t *Tracker) sequence(seq uint64) *sequenceState {
	s, ok := t.sequences[seq]
	if !ok {
		s = newSequenceState(seq)
		t.sequences[seq] = s
	}
	return s
}

func (t *Tracker) graphFor(key GraphKey) *Graph {
	g, ok := t.graphs[key]
	if !ok {
		g = newGraph(key)
		t.graphs[key] = g
	}
	return g
}

// Graph exposes the (upid, ts) snapshot for read-only inspection (tests,
// BuildFlamegraph callers that want raw object state).
func (t *Tracker) Graph(upid, ts int64) (*Graph, bool) {
	g, ok := t.graphs[GraphKey{UPID: upid, TS: ts}]
	return g, ok
}

func (t *Tracker) logStat(name string) {
	logging.Debug("heapgraph: " + name)
}
