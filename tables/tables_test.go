package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableOrderAndOverwrite(t *testing.T) {
	tab := New[int]([]string{"b", "a", "b", "c"})

	assert.Equal(t, 0, tab.Len())
	assert.Empty(t, tab.Names())

	tab.Set("c", 3)
	tab.Set("a", 1)
	tab.Set("z", 26)
	tab.Set("a", 10)

	assert.Equal(t, 3, tab.Len())
	assert.Equal(t, []string{"a", "c", "z"}, tab.Names())

	v, ok := tab.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	_, ok = tab.Get("b")
	assert.False(t, ok)

	var visited []string
	tab.Each(func(name string, row int) {
		visited = append(visited, name)
	})
	assert.Equal(t, []string{"a", "c", "z"}, visited)
}

func TestDistributionAndFits(t *testing.T) {
	d := NewDistribution([]string{"D20210101T000000"})
	row := DistributionRow{VolumeAnalyzed: 5, PeakDensity: 12}
	row.Density[NBins-1] = 1
	d.Set("D20210101T000000", row)

	got, ok := d.Get("D20210101T000000")
	require.True(t, ok)
	assert.Equal(t, 1.0, got.Density[199])

	f := NewFits(nil)
	f.Set("x", FitRow{A: 1, BeadRun: true})
	assert.Equal(t, []string{"x"}, f.Names())
}
