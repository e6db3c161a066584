package writetree

import (
	"testing"

	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOverwriteRejectsNonIncreasingID(t *testing.T) {
	wt := New()
	require.NoError(t, wt.AddOverwrite(pathkey.New("a"), node.NewLeaf("x"), 1, true))
	err := wt.AddOverwrite(pathkey.New("a"), node.NewLeaf("y"), 1, true)
	assert.Error(t, err)
}

func TestRemoveWriteReportsVisibility(t *testing.T) {
	wt := New()
	require.NoError(t, wt.AddOverwrite(pathkey.New("a"), node.NewLeaf("x"), 1, true))
	require.NoError(t, wt.AddOverwrite(pathkey.New("b"), node.NewLeaf("y"), 2, false))

	assert.True(t, wt.RemoveWrite(1))
	assert.False(t, wt.RemoveWrite(2))
	assert.False(t, wt.RemoveWrite(999))
}

func TestCalcCompleteEventCacheOverlayAtSamePath(t *testing.T) {
	wt := New()
	require.NoError(t, wt.AddOverwrite(pathkey.New("a/b"), node.NewLeaf("x"), 1, true))

	ref := wt.ChildWrites(pathkey.New("a/b"))
	result, known := ref.CalcCompleteEventCache(node.Empty, true)
	require.True(t, known)
	assert.Equal(t, "x", result.Value())
}

func TestCalcCompleteEventCacheDescendantWriteOverlaysParent(t *testing.T) {
	wt := New()
	require.NoError(t, wt.AddOverwrite(pathkey.New("a/b"), node.NewLeaf("x"), 1, true))

	ref := wt.ChildWrites(pathkey.New("a"))
	base := node.Empty.UpdateImmediateChild("c", node.NewLeaf("keep"))
	result, known := ref.CalcCompleteEventCache(base, true)
	require.True(t, known)
	assert.Equal(t, "x", result.GetImmediateChild("b").Value())
	assert.Equal(t, "keep", result.GetImmediateChild("c").Value())
}

func TestCalcCompleteEventCacheAncestorOverwriteNarrows(t *testing.T) {
	wt := New()
	snap := node.Empty.UpdateImmediateChild("b", node.NewLeaf("x"))
	require.NoError(t, wt.AddOverwrite(pathkey.New("a"), snap, 1, true))

	ref := wt.ChildWrites(pathkey.New("a/b"))
	result, known := ref.CalcCompleteEventCache(node.Empty, false)
	require.True(t, known)
	assert.Equal(t, "x", result.Value())
}

func TestHiddenWriteDoesNotAffectEventCache(t *testing.T) {
	wt := New()
	require.NoError(t, wt.AddOverwrite(pathkey.New("a"), node.NewLeaf("x"), 1, false))

	ref := wt.ChildWrites(pathkey.New("a"))
	result, known := ref.CalcCompleteEventCache(node.NewLeaf("server"), true)
	require.True(t, known)
	assert.Equal(t, "server", result.Value())
}

func TestMergeOnlyAffectsNamedChildren(t *testing.T) {
	wt := New()
	require.NoError(t, wt.AddMerge(pathkey.New("a"), map[string]node.Node{
		"b": node.NewLeaf("new-b"),
	}, 1))

	base := node.Empty.
		UpdateImmediateChild("b", node.NewLeaf("old-b")).
		UpdateImmediateChild("c", node.NewLeaf("old-c"))

	ref := wt.ChildWrites(pathkey.New("a"))
	result, known := ref.CalcCompleteEventCache(base, true)
	require.True(t, known)
	assert.Equal(t, "new-b", result.GetImmediateChild("b").Value())
	assert.Equal(t, "old-c", result.GetImmediateChild("c").Value())
}
