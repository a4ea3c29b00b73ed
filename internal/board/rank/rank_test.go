package rank

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBetween(t *testing.T) {
	cases := []struct {
		lo, hi string
	}{
		{"", ""},
		{"", "i"},
		{"i", ""},
		{"a", "b"},
		{"a", "a1"},
		{"a", "a01"},
		{"az", "b"},
		{"1", "2"},
		{"zz", ""},
		{"", "01"},
	}
	for _, tc := range cases {
		got, err := Between(tc.lo, tc.hi)
		require.NoError(t, err, "between %q and %q", tc.lo, tc.hi)
		assert.True(t, Valid(got), "key %q", got)
		assert.Greater(t, got, tc.lo)
		if tc.hi != "" {
			assert.Less(t, got, tc.hi)
		}
	}
}

func TestBetween_Errors(t *testing.T) {
	_, err := Between("b", "a")
	assert.ErrorIs(t, err, ErrNoSpace)

	_, err = Between("a", "a")
	assert.ErrorIs(t, err, ErrNoSpace)

	_, err = Between("a0", "")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = Between("A", "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestBetween_RepeatedInsertAtFront(t *testing.T) {
	hi := "i"
	for i := 0; i < 200; i++ {
		k, err := Before(hi)
		require.NoError(t, err)
		require.Less(t, k, hi)
		hi = k
	}
}

func TestBetween_RepeatedInsertBetweenNeighbours(t *testing.T) {
	lo, hi := "a", "b"
	for i := 0; i < 50; i++ {
		k, err := Between(lo, hi)
		require.NoError(t, err)
		require.Greater(t, k, lo)
		require.Less(t, k, hi)
		if i%2 == 0 {
			lo = k
		} else {
			hi = k
		}
	}
}

func TestInitial(t *testing.T) {
	assert.Nil(t, Initial(0))

	for _, n := range []int{1, 2, 10, 35, 36, 100, 2000} {
		keys := Initial(n)
		require.Len(t, keys, n)
		assert.True(t, sort.StringsAreSorted(keys), "n=%d", n)
		for i, k := range keys {
			assert.True(t, Valid(k), "n=%d key %q", n, k)
			if i > 0 {
				assert.NotEqual(t, keys[i-1], k)
			}
		}
	}
}

func TestTooLong(t *testing.T) {
	assert.False(t, TooLong("abc"))
	long := ""
	for i := 0; i <= MaxLength; i++ {
		long += "z"
	}
	assert.True(t, TooLong(long))
}
