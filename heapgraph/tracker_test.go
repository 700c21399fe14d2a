package heapgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64p(v uint64) *uint64 { return &v }

// TestFinalizeComputesRootDistance is spec scenario 4: ingest objects
// {1: self_size=8, refs:[(f,2)]}, {2: self_size=16, refs:[]},
// root={type:"global", ids:[1]}. After finalize, object 1 has
// root_distance=0, reachable; object 2 has root_distance=1, reachable.
func TestFinalizeComputesRootDistance(t *testing.T) {
	tr := New()
	const seq = 1

	tr.AddInternedLocationName(seq, 10, "/data/app/com.example.app-abc123/base.apk")
	tr.AddInternedType(seq, 1, "A", u64p(10))
	tr.AddInternedType(seq, 2, "B", u64p(10))
	tr.AddInternedFieldName(seq, 100, "A f")

	tr.AddObject(seq, 1, 1000, ObjectSource{
		ID: 1, SelfSize: 8, TypeIid: 1,
		References: []ReferenceSource{{FieldNameIid: 100, TargetID: 2}},
	})
	tr.AddObject(seq, 1, 1000, ObjectSource{ID: 2, SelfSize: 16, TypeIid: 2})
	tr.AddRoot(seq, 1, 1000, SourceRoot{RootType: "global", ObjectIDs: []uint64{1}})

	tr.FinalizeProfile(1, 1000)

	g, ok := tr.Graph(1, 1000)
	require.True(t, ok)

	obj1 := g.objects[1]
	obj2 := g.objects[2]
	assert.Equal(t, 0, obj1.RootDistance)
	assert.Equal(t, "global", obj1.RootType)
	assert.Equal(t, 1, obj2.RootDistance)

	class1, ok := tr.Class(obj1.ClassID)
	require.True(t, ok)
	assert.Equal(t, "com.example.app", class1.Package)
}

// TestBuildFlamegraph is spec scenario 5: with the scenario-4 graph and
// type names "A" for 1 and "B" for 2, BuildFlamegraph yields
// [(depth=1,name="A",self=8,cum=24,count=1), (depth=2,name="B",self=16,cum=16,parent=A)].
func TestBuildFlamegraph(t *testing.T) {
	tr := New()
	const seq = 1

	tr.AddInternedType(seq, 1, "A", nil)
	tr.AddInternedType(seq, 2, "B", nil)
	tr.AddInternedFieldName(seq, 100, "A f")

	tr.AddObject(seq, 1, 1000, ObjectSource{
		ID: 1, SelfSize: 8, TypeIid: 1,
		References: []ReferenceSource{{FieldNameIid: 100, TargetID: 2}},
	})
	tr.AddObject(seq, 1, 1000, ObjectSource{ID: 2, SelfSize: 16, TypeIid: 2})
	tr.AddRoot(seq, 1, 1000, SourceRoot{RootType: "global", ObjectIDs: []uint64{1}})
	tr.FinalizeProfile(1, 1000)

	rows := tr.BuildFlamegraph(1, 1000)
	require.Len(t, rows, 2)

	a, b := rows[0], rows[1]
	assert.Equal(t, 1, a.Depth)
	assert.Equal(t, "A", a.Name)
	assert.EqualValues(t, 8, a.SelfSize)
	assert.EqualValues(t, 24, a.CumulativeSize)
	assert.EqualValues(t, 1, a.SelfCount)
	assert.Equal(t, -1, a.ParentID)
	assert.Equal(t, "graph", a.ProfileType)
	assert.Equal(t, "JAVA", a.MapName)

	assert.Equal(t, 2, b.Depth)
	assert.Equal(t, "B", b.Name)
	assert.EqualValues(t, 16, b.SelfSize)
	assert.EqualValues(t, 16, b.CumulativeSize)
	assert.Equal(t, a.id, b.ParentID)
}

func TestBuildFlamegraphEmptyWhenNoRoots(t *testing.T) {
	tr := New()
	tr.AddObject(1, 1, 1000, ObjectSource{ID: 1, SelfSize: 4, TypeIid: 0})
	tr.FinalizeProfile(1, 1000)
	assert.Nil(t, tr.BuildFlamegraph(1, 1000))
}

func TestBuildFlamegraphUnknownGraphReturnsNil(t *testing.T) {
	tr := New()
	assert.Nil(t, tr.BuildFlamegraph(99, 99))
}

func TestAddObjectDropsOnUpidTsMismatch(t *testing.T) {
	tr := New()
	tr.AddObject(1, 1, 1000, ObjectSource{ID: 1, SelfSize: 1})
	tr.AddObject(1, 2, 2000, ObjectSource{ID: 2, SelfSize: 2})

	assert.EqualValues(t, 1, tr.Stats.GraphUpidTsMismatch)
	_, ok := tr.Graph(2, 2000)
	assert.False(t, ok)
	g, ok := tr.Graph(1, 1000)
	require.True(t, ok)
	_, hasSecond := g.objects[2]
	assert.False(t, hasSecond)
}

func TestAddRootSilentlySkipsUnknownObjectID(t *testing.T) {
	tr := New()
	tr.AddObject(1, 1, 1000, ObjectSource{ID: 1, SelfSize: 1})
	tr.AddRoot(1, 1, 1000, SourceRoot{RootType: "global", ObjectIDs: []uint64{1, 999}})

	assert.NotPanics(t, func() { tr.FinalizeProfile(1, 1000) })
	g, _ := tr.Graph(1, 1000)
	assert.Equal(t, 0, g.objects[1].RootDistance)
}

func TestSetPacketIndexDetectsGap(t *testing.T) {
	tr := New()
	tr.SetPacketIndex(1, 0)
	tr.SetPacketIndex(1, 1)
	tr.SetPacketIndex(1, 3) // gap: skipped 2
	assert.EqualValues(t, 1, tr.Stats.MissingPacket)
}

func TestSetPacketIndexFlagsNonZeroStart(t *testing.T) {
	tr := New()
	tr.SetPacketIndex(1, 5)
	assert.EqualValues(t, 1, tr.Stats.MissingPacket)
}

func TestAddInternedFieldNameSplitsTypeAnnotation(t *testing.T) {
	tr := New()
	tr.AddInternedFieldName(1, 1, "com.example.Foo bar")
	f := tr.sequence(1).fieldNames[1]
	assert.Equal(t, "com.example.Foo", f.typeAnnotation)
	assert.Equal(t, "bar", f.field)

	tr.AddInternedFieldName(1, 2, "noAnnotation")
	f2 := tr.sequence(1).fieldNames[2]
	assert.Equal(t, "", f2.typeAnnotation)
	assert.Equal(t, "noAnnotation", f2.field)
}

func TestUnknownLocationIidIsCounted(t *testing.T) {
	tr := New()
	tr.AddInternedType(1, 1, "A", u64p(404)) // 404 was never interned
	tr.AddObject(1, 1, 1000, ObjectSource{ID: 1, SelfSize: 1, TypeIid: 1})
	tr.FinalizeProfile(1, 1000)
	assert.EqualValues(t, 1, tr.Stats.UnknownLocationIid)
}

func TestPopulateSuperClasses(t *testing.T) {
	tr := New()
	const seq = 1

	// Static-class objects representing Foo and Bar, with Foo.superClass -> Bar.
	tr.AddInternedType(seq, 1, "java.lang.Class<Foo>", nil)
	tr.AddInternedType(seq, 2, "java.lang.Class<Bar>", nil)
	tr.AddInternedType(seq, 3, "Foo", nil) // ordinary instance's class
	tr.AddInternedType(seq, 4, "Bar", nil) // ordinary class the superclass edge resolves to
	tr.AddInternedFieldName(seq, 100, "java.lang.Class superClass")

	tr.AddObject(seq, 1, 1000, ObjectSource{
		ID: 10, SelfSize: 0, TypeIid: 1,
		References: []ReferenceSource{{FieldNameIid: 100, TargetID: 20}},
	})
	tr.AddObject(seq, 1, 1000, ObjectSource{ID: 20, SelfSize: 0, TypeIid: 2})
	tr.AddObject(seq, 1, 1000, ObjectSource{ID: 30, SelfSize: 4, TypeIid: 3})
	tr.AddObject(seq, 1, 1000, ObjectSource{ID: 40, SelfSize: 4, TypeIid: 4})
	tr.FinalizeProfile(1, 1000)

	tr.PopulateSuperClasses()

	g, _ := tr.Graph(1, 1000)
	fooOrdinaryClassID := g.objects[30].ClassID
	row, ok := tr.Class(fooOrdinaryClassID)
	require.True(t, ok)
	require.NotEqual(t, -1, row.SuperclassID)

	super, ok := tr.Class(row.SuperclassID)
	require.True(t, ok)
	assert.Equal(t, "Bar", super.Normalized.Name)
}

func TestDeobfuscation(t *testing.T) {
	tr := New()
	tr.AddDeobfuscationMapping("com.example", "a.b.C", "com.example.RealName")

	assert.Equal(t, "com.example.RealName", tr.MaybeDeobfuscate("com.example", "a.b.C"))
	assert.Equal(t, "a.b.C", tr.MaybeDeobfuscate("other.package", "a.b.C"))
	assert.Equal(t, "unmapped.Name", tr.MaybeDeobfuscate("com.example", "unmapped.Name"))
}

func TestDeobfuscationPreservesArraySuffix(t *testing.T) {
	tr := New()
	tr.AddDeobfuscationMapping("", "a.b.C", "com.example.RealName")
	assert.Equal(t, "com.example.RealName[]", tr.MaybeDeobfuscate("", "a.b.C[]"))
}

func TestClassifyPackageHardcodedPrefixes(t *testing.T) {
	assert.Equal(t, "com.google.android.systemui", classifyPackage("/system_ext/priv-app/SystemUIGoogle/SystemUIGoogle.apk"))
	assert.Equal(t, "com.android.vending", classifyPackage("/product/priv-app/Phonesky/Phonesky.apk"))
	assert.Equal(t, "com.google.android.gms", classifyPackage("some/path/MatchMaker/classes.dex"))
}

func TestClassifyPackageMainPackagePath(t *testing.T) {
	assert.Equal(t, "com.example.app", classifyPackage("/data/app/com.example.app-aB3dEf==/base.apk"))
	assert.Equal(t, "com.example.app", classifyPackage("/data/app/com.example.app/base.apk"))
}

func TestClassifyPackageBaseApkAndUnknown(t *testing.T) {
	assert.Equal(t, "", classifyPackage("base.apk"))
	assert.Equal(t, "", classifyPackage(""))
	assert.Equal(t, "", classifyPackage("/some/other/path/lib.so"))
}
