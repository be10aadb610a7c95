package kasid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type seqRand struct {
	vals []int
	i    int
}

func (s *seqRand) Intn(n int) int {
	v := s.vals[s.i%len(s.vals)] % n
	s.i++
	return v
}

func TestGenerator_Format(t *testing.T) {
	g := New(&seqRand{vals: []int{7, 42}})
	require.Equal(t, "K-007-000042", g.Next())

	g = New(&seqRand{vals: []int{999, 999999}})
	require.Equal(t, "K-999-999999", g.Next())
}

func TestGenerator_DefaultSourceIsValid(t *testing.T) {
	g := New(nil)
	for i := 0; i < 100; i++ {
		require.True(t, Valid(g.Next()))
	}
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"K-123-456789":  true,
		"K-000-000000":  true,
		"K-12-3456789":  false,
		"k-123-456789":  false,
		"K-123-4567890": false,
		"":              false,
	}
	for id, want := range cases {
		require.Equal(t, want, Valid(id), id)
	}
}
