package heapgraph

// FinalizeProfile resolves every interned type referenced by (upid, ts)'s
// objects into a Class row, classifies each row's package, and translates
// and applies every root buffered for that graph via MarkRoot. Call it once
// per (upid, ts) after all of that snapshot's AddObject/AddRoot calls have
// landed.
func (t *Tracker) FinalizeProfile(upid, ts int64) {
	key := GraphKey{UPID: upid, TS: ts}
	g, ok := t.graphs[key]
	if !ok {
		return
	}

	for _, wireID := range g.order {
		o := g.objects[wireID]
		if !o.hasPendingType {
			continue
		}
		o.ClassID = t.resolveClass(o.pendingType)
		o.hasPendingType = false
	}

	for _, s := range t.sequences {
		if !s.haveGraph || s.upid != upid || s.ts != ts {
			continue
		}
		for _, root := range s.bufferedRoots {
			for _, wireID := range root.ObjectIDs {
				if _, ok := g.objects[wireID]; !ok {
					continue // unknown id: skipped silently, without a stat
				}
				g.roots = append(g.roots, wireID)
				t.MarkRoot(g, wireID, root.RootType)
			}
		}
		s.bufferedRoots = nil
	}
}

// resolveClass returns the Class row id for the type interned as key,
// creating it on first use: resolving its location string, classifying its
// package, and normalizing its name.
func (t *Tracker) resolveClass(key classKey) int {
	if id, ok := t.classesByKey[key]; ok {
		return id
	}

	var name, location string
	if s, ok := t.sequences[key.seq]; ok {
		if it, ok := s.types[key.iid]; ok {
			name = it.nameStr
			if it.hasLocation {
				if loc, ok := s.locations[it.locationIid]; ok {
					location = loc
				} else {
					t.Stats.UnknownLocationIid++
					t.logStat("unknown location iid")
				}
			}
		}
	}

	row := ClassRow{
		id:           t.classes.Len(),
		Name:         name,
		Location:     location,
		Package:      classifyPackage(location),
		Normalized:   NormalizeTypeName(name),
		SuperclassID: -1,
	}
	t.classes.Append(row)
	t.classesByKey[key] = row.id
	return row.id
}

// Class returns the resolved Class row for id, if it exists.
func (t *Tracker) Class(id int) (ClassRow, bool) {
	return t.classes.Get(id)
}
