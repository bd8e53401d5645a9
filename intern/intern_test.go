package intern

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternIsIdempotent(t *testing.T) {
	in := New()
	a := in.Intern("hello")
	b := in.Intern("hello")
	assert.Equal(t, a, b)
}

func TestInternDistinctStringsGetDistinctIDs(t *testing.T) {
	in := New()
	a := in.Intern("hello")
	b := in.Intern("world")
	assert.NotEqual(t, a, b)
}

func TestInternLookupRoundTrips(t *testing.T) {
	in := New()
	id := in.Intern("round trip")
	assert.Equal(t, "round trip", in.Lookup(id))
}

func TestInternNeverShrinks(t *testing.T) {
	in := New()
	for i := 0; i < 300; i++ {
		in.Intern("s" + strconv.Itoa(i))
	}
	assert.Equal(t, 300, in.Len())

	for i := 0; i < 300; i++ {
		id := in.Intern("s" + strconv.Itoa(i))
		assert.Equal(t, ID(i), id)
	}
	assert.Equal(t, 300, in.Len())
}

func TestInternEqualityProperty(t *testing.T) {
	in := New()
	strs := []string{"a", "b", "a", "abc", "b", ""}
	ids := make([]ID, len(strs))
	for i, s := range strs {
		ids[i] = in.Intern(s)
	}

	for i := range strs {
		for j := range strs {
			if strs[i] == strs[j] {
				assert.Equal(t, ids[i], ids[j])
			} else {
				assert.NotEqual(t, ids[i], ids[j])
			}
		}
	}
}
