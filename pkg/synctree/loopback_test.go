package synctree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/nodetree/syncdb/pkg/query"
	"github.com/nodetree/syncdb/pkg/view"
)

func TestLoopbackListenProviderEchoesSeededDataAsServerOverwrite(t *testing.T) {
	provider := NewLoopbackListenProvider(node.Empty, 5*time.Millisecond)
	tree := New(nil, provider, 1)
	provider.Tree = tree

	provider.Seed(pathkey.New("users"), node.Empty.UpdateImmediateChild("a", node.NewLeaf("1")))
	tree.AddEventRegistration(query.New(pathkey.New("users")), view.Registration{ID: "r1"}, 1)

	require.Eventually(t, func() bool {
		n, known := tree.CalcCompleteEventCache(pathkey.New("users"), nil)
		return known && n.GetImmediateChild("a").Value() == "1"
	}, time.Second, time.Millisecond)
}

func TestLoopbackListenProviderStopListeningIsNoOp(t *testing.T) {
	provider := NewLoopbackListenProvider(node.Empty, time.Millisecond)
	assert.NotPanics(t, func() {
		provider.StopListening(query.New(pathkey.New("users")), 0, false)
	})
}
