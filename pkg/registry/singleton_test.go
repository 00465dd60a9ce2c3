package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestSingletonRegisterFirstWins(t *testing.T) {
	s := NewSingletonMap()
	dep := DependencyId{1}

	id, first := s.Register(dep, func() ResourceId { return 100 })
	assert.True(t, first)
	assert.Equal(t, ResourceId(100), id)

	id2, first2 := s.Register(dep, func() ResourceId { return 200 })
	assert.False(t, first2)
	assert.Equal(t, ResourceId(100), id2)

	got, ok := s.Lookup(dep)
	require.True(t, ok)
	assert.Equal(t, ResourceId(100), got)
}

func TestSingletonRegisterConcurrentRaceHasOneWinner(t *testing.T) {
	s := NewSingletonMap()
	dep := DependencyId{2}

	const n = 32
	results := make([]ResourceId, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			id, _ := s.Register(dep, func() ResourceId { return ResourceId(i + 1) })
			results[i] = id
			return nil
		})
	}
	require.NoError(t, g.Wait())

	first := results[0]
	for _, r := range results {
		assert.Equal(t, first, r)
	}
}

func TestSingletonRemove(t *testing.T) {
	s := NewSingletonMap()
	dep := DependencyId{3}
	s.Register(dep, func() ResourceId { return 5 })

	require.Nil(t, s.Remove(dep))
	_, ok := s.Lookup(dep)
	assert.False(t, ok)

	require.NotNil(t, s.Remove(dep))
}
