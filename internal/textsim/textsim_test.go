package textsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaroWinklerKnownValues(t *testing.T) {
	cases := []struct {
		a, b     string
		min, max float64
	}{
		{"paper a4", "paper a4", 1, 1},
		{"", "", 1, 1},
		{"abc", "", 0, 0},
		{"", "abc", 0, 0},
		{"123", "123", 1, 1},
		{"MARTHA", "MARHTA", 0.96, 0.962},
		{"DWAYNE", "DUANE", 0.83, 0.85},
		{"paper a4", "toner black", 0, 0.6},
	}
	for _, tc := range cases {
		got := JaroWinkler(tc.a, tc.b)
		assert.GreaterOrEqual(t, got, tc.min, "JW(%q,%q)", tc.a, tc.b)
		assert.LessOrEqual(t, got, tc.max, "JW(%q,%q)", tc.a, tc.b)
	}
}

func TestJaroWinklerBounds(t *testing.T) {
	pairs := [][2]string{
		{"a", "b"}, {"short", "a much longer string"}, {"xyz", "zyx"},
		{"inv-1", "inv-2"}, {"0", "0"},
	}
	for _, p := range pairs {
		got := JaroWinkler(p[0], p[1])
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
		assert.InDelta(t, got, JaroWinkler(p[1], p[0]), 1e-12, "symmetry for %v", p)
	}
}

func TestDistance(t *testing.T) {
	assert.Zero(t, Distance("123", "123"))
	assert.InDelta(t, 1.0, Distance("abc", "xyz"), 1e-12)
}

func TestTrigramSet(t *testing.T) {
	assert.Empty(t, TrigramSet("ab"))
	assert.Empty(t, TrigramSet(""))

	set := TrigramSet("paper")
	assert.Len(t, set, 3)
	_, ok := set["pap"]
	assert.True(t, ok)
}

func TestTrigramCosine(t *testing.T) {
	assert.Equal(t, 1.0, TrigramCosine("paper a4", "paper a4"))
	assert.Equal(t, 0.0, TrigramCosine("", ""))
	assert.Equal(t, 0.0, TrigramCosine("paper a4", ""))

	v := TrigramCosine("paper a4 white", "paper a4")
	assert.Greater(t, v, 0.0)
	assert.LessOrEqual(t, v, 1.0)
}
