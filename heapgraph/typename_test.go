package heapgraph

import "testing"

import "github.com/stretchr/testify/assert"

func TestGetStaticClassTypeName(t *testing.T) {
	inner, ok := GetStaticClassTypeName("java.lang.Class<com.example.Foo>")
	assert.True(t, ok)
	assert.Equal(t, "com.example.Foo", inner)

	_, ok = GetStaticClassTypeName("com.example.Foo")
	assert.False(t, ok)
}

func TestNumberOfArrays(t *testing.T) {
	base, n := NumberOfArrays("int[][]")
	assert.Equal(t, "int", base)
	assert.Equal(t, 2, n)

	base, n = NumberOfArrays("int")
	assert.Equal(t, "int", base)
	assert.Equal(t, 0, n)
}

func TestNormalizeDenormalizeRoundTrip(t *testing.T) {
	cases := []string{
		"com.example.Foo",
		"com.example.Foo[]",
		"com.example.Foo[][]",
		"java.lang.Class<com.example.Foo>",
		"java.lang.Class<com.example.Foo[]>",
	}
	for _, tc := range cases {
		got := DenormalizeTypeName(NormalizeTypeName(tc))
		assert.Equal(t, tc, got)
	}
}

func TestIsOrdinaryClassPredicate(t *testing.T) {
	assert.True(t, isOrdinaryClass(TypeDescriptor{Name: "Foo"}))
	assert.False(t, isOrdinaryClass(TypeDescriptor{Name: "Foo", IsStaticClass: true}))
	assert.False(t, isOrdinaryClass(TypeDescriptor{Name: "Foo", Arrays: 1}))
}
