package pruneforest

import (
	"testing"

	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkPruneFailsUnderKeptSubtree(t *testing.T) {
	f := New()
	f.Keep(pathkey.New("a"))
	err := f.MarkPrune(pathkey.New("a/b"))
	assert.Error(t, err)
}

func TestLeafMostMarkWins(t *testing.T) {
	f := New()
	require.NoError(t, f.MarkPrune(pathkey.New("a")))
	f.Keep(pathkey.New("a/b"))

	assert.True(t, f.ShouldPruneUnkeptDescendants(pathkey.New("a")))
	assert.False(t, f.ShouldPruneUnkeptDescendants(pathkey.New("a/b")))
	assert.True(t, f.ShouldPruneUnkeptDescendants(pathkey.New("a/c")))
}

func TestPrunesAnything(t *testing.T) {
	f := New()
	assert.False(t, f.PrunesAnything())
	f.Keep(pathkey.New("a"))
	assert.False(t, f.PrunesAnything())
	require.NoError(t, f.MarkPrune(pathkey.New("b")))
	assert.True(t, f.PrunesAnything())
}

func TestNumPruned(t *testing.T) {
	f := New()
	assert.Equal(t, 0, f.NumPruned())
	f.Keep(pathkey.New("a"))
	require.NoError(t, f.MarkPrune(pathkey.New("b")))
	require.NoError(t, f.MarkPrune(pathkey.New("c")))
	assert.Equal(t, 2, f.NumPruned())
}
