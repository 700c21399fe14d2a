package heapgraph

import "strings"

// AddInternedLocationName records the string a location iid refers to,
// within seq's interning namespace.
func (t *Tracker) AddInternedLocationName(seq, iid uint64, str string) {
	t.sequence(seq).locations[iid] = str
}

// AddInternedType records a type's own name string plus, optionally, the
// iid of its location string (resolved later, at FinalizeProfile, since the
// location may intern after the type does). A nil locationIid means the
// type carries no location.
func (t *Tracker) AddInternedType(seq, iid uint64, nameStr string, locationIid *uint64) {
	it := internedType{nameStr: nameStr}
	if locationIid != nil {
		it.locationIid = *locationIid
		it.hasLocation = true
	}
	t.sequence(seq).types[iid] = it
}

// AddInternedFieldName records one field-name string, splitting off its
// optional leading "TypeName " annotation.
func (t *Tracker) AddInternedFieldName(seq, iid uint64, raw string) {
	annotation, field := splitFieldName(raw)
	t.sequence(seq).fieldNames[iid] = internedField{typeAnnotation: annotation, field: field}
}

// splitFieldName splits "TypeName fieldname" on the first space. A string
// with no space is just the field name, with no owning-type annotation.
func splitFieldName(raw string) (annotation, field string) {
	i := strings.IndexByte(raw, ' ')
	if i < 0 {
		return "", raw
	}
	return raw[:i], raw[i+1:]
}

// AddObject ingests one streamed object: its self size, interned type, and
// outbound references. A sequence may describe only one (upid, ts); a
// mismatched call is counted and dropped rather than silently mixing two
// snapshots into one graph.
func (t *Tracker) AddObject(seq uint64, upid, ts int64, source ObjectSource) {
	s := t.sequence(seq)
	if !s.commitGraph(upid, ts) {
		t.Stats.GraphUpidTsMismatch++
		t.logStat("graph upid/ts mismatch, dropping object")
		return
	}

	g := t.graphFor(GraphKey{UPID: upid, TS: ts})
	owner := g.getOrCreate(source.ID)
	owner.SelfSize = source.SelfSize

	// The type itself resolves to a Class row only at FinalizeProfile; here
	// we just remember which (seq, iid) it came from.
	owner.ClassID = -1
	owner.pendingType = classKey{seq: seq, iid: source.TypeIid}
	owner.hasPendingType = true

	if len(source.References) == 0 {
		return
	}
	setID := len(g.references)
	for _, ref := range source.References {
		if ref.TargetID == 0 {
			continue // null reference
		}
		g.getOrCreate(ref.TargetID)
		_, field := resolveFieldName(s, ref.FieldNameIid)
		g.references = append(g.references, reference{
			ownerWireID:    source.ID,
			fieldName:      field,
			targetWireID:   ref.TargetID,
			referenceSetID: setID,
		})
	}
	if len(g.references) > setID {
		owner.referenceSetID = setID
	}
}

func resolveFieldName(s *sequenceState, iid uint64) (annotation, field string) {
	f, ok := s.fieldNames[iid]
	if !ok {
		return "", ""
	}
	return f.typeAnnotation, f.field
}

// commitGraph records a sequence's (upid, ts) on first use and reports
// whether subsequent calls are consistent with it.
func (s *sequenceState) commitGraph(upid, ts int64) bool {
	if !s.haveGraph {
		s.haveGraph = true
		s.upid = upid
		s.ts = ts
		return true
	}
	return s.upid == upid && s.ts == ts
}

// AddRoot buffers source on seq; roots are translated to internal objects
// and fed to MarkRoot only at FinalizeProfile, once every object and
// reference for the sequence's graph has arrived.
func (t *Tracker) AddRoot(seq uint64, upid, ts int64, source SourceRoot) {
	s := t.sequence(seq)
	if !s.commitGraph(upid, ts) {
		t.Stats.GraphUpidTsMismatch++
		t.logStat("graph upid/ts mismatch, dropping root")
		return
	}
	ids := make([]uint64, len(source.ObjectIDs))
	copy(ids, source.ObjectIDs)
	s.bufferedRoots = append(s.bufferedRoots, SourceRoot{RootType: source.RootType, ObjectIDs: ids})
}

// SetPacketIndex records the wire's packet counter for seq. Sequences begin
// at index 0; any gap is counted and logged rather than treated as fatal.
func (t *Tracker) SetPacketIndex(seq uint64, index int64) {
	s := t.sequence(seq)
	if !s.havePacketIndex {
		s.havePacketIndex = true
		if index != 0 {
			t.Stats.MissingPacket++
			t.logStat("sequence did not start at packet index 0")
		}
		s.lastPacketIndex = index
		return
	}
	if index != s.lastPacketIndex+1 {
		t.Stats.MissingPacket++
		t.logStat("packet index gap detected")
	}
	s.lastPacketIndex = index
}
