package heapgraph

// plainDescriptor strips the static-class/array flags off d, producing the
// descriptor an ordinary Class row for the same name would carry. Building
// superclass map keys in this plain form lets a static-class object (whose
// own normalized type is wrapped) stand in for the ordinary class it
// represents.
func plainDescriptor(d TypeDescriptor) TypeDescriptor {
	return TypeDescriptor{Name: d.Name}
}

const superClassFieldName = "superClass"

// PopulateSuperClasses scans every static-class object across every graph,
// follows its java.lang.Class.superClass reference (matched by field name)
// to another static-class object, and records the name-to-name edge that
// implies. It then writes SuperclassID onto every ordinary Class row whose
// name appears as a map key.
func (t *Tracker) PopulateSuperClasses() {
	edges := make(map[TypeDescriptor]TypeDescriptor)

	for _, g := range t.graphs {
		for _, wireID := range g.order {
			o := g.objects[wireID]
			class, ok := t.classes.Get(o.ClassID)
			if !ok || !class.Normalized.IsStaticClass || class.Normalized.Arrays != 0 {
				continue
			}
			target, ok := superClassTarget(g, o)
			if !ok {
				continue
			}
			targetClass, ok := t.classes.Get(target.ClassID)
			if !ok {
				continue
			}
			edges[plainDescriptor(class.Normalized)] = plainDescriptor(targetClass.Normalized)
		}
	}

	byName := make(map[TypeDescriptor]int)
	t.classes.Each(func(id int, row ClassRow) {
		if isOrdinaryClass(row.Normalized) {
			byName[row.Normalized] = id
		}
	})

	t.classes.Each(func(id int, row ClassRow) {
		if !isOrdinaryClass(row.Normalized) {
			return
		}
		super, ok := edges[row.Normalized]
		if !ok {
			return
		}
		superID, ok := byName[super]
		if !ok {
			return
		}
		row.SuperclassID = superID
		t.classes.Set(id, row)
	})
}

// superClassTarget walks o's outbound references for one whose field name
// matches "superClass" and returns the Object it points at.
func superClassTarget(g *Graph, o *Object) (*Object, bool) {
	if o.referenceSetID < 0 {
		return nil, false
	}
	setID := o.referenceSetID
	for i := setID; i < len(g.references) && g.references[i].referenceSetID == setID; i++ {
		ref := g.references[i]
		if ref.fieldName != superClassFieldName {
			continue
		}
		target, ok := g.objects[ref.targetWireID]
		if !ok {
			return nil, false
		}
		return target, true
	}
	return nil, false
}
