package cachepolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLRUThresholds(t *testing.T) {
	p := NewLRU()

	assert.False(t, p.ShouldPrune(1024, 10))
	assert.True(t, p.ShouldPrune(11*1024*1024, 10))
	assert.True(t, p.ShouldPrune(1024, 1001))

	assert.False(t, p.ShouldCheckSize(999))
	assert.True(t, p.ShouldCheckSize(1001))
}

func TestDefaultLRUPruneShape(t *testing.T) {
	p := NewLRU()
	assert.Equal(t, 0.20, p.PercentQueriesPruneAtOnce())
	assert.Equal(t, 1000, p.MaxPrunableQueriesToKeep())
}
